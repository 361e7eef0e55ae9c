package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/campuslink/campuslink/config"
	"github.com/campuslink/campuslink/database"
	"github.com/campuslink/campuslink/l10n"
	"github.com/campuslink/campuslink/mail"
	"github.com/campuslink/campuslink/otp"
	"github.com/campuslink/campuslink/settings"
)

const rollInputID = "roll-number"

// Verifier runs the email OTP verification flow behind the verification
// button: modal capture, record lookup, eligibility check, email dispatch and
// the bounded response challenge loop.
type Verifier struct {
	store     Store
	settings  *settings.Store
	fmt       *l10n.Formatter
	mailer    mail.Sender
	registry  *otp.Registry
	onboarder *Onboarder
	platform  Platform
	log       zerolog.Logger

	timeout     time.Duration
	maxAttempts int
	generate    func() (string, error)
}

// NewVerifier wires a Verifier.
func NewVerifier(store Store, set *settings.Store, f *l10n.Formatter, mailer mail.Sender, reg *otp.Registry, ob *Onboarder, p Platform, timeout time.Duration, maxAttempts int, log zerolog.Logger) *Verifier {
	return &Verifier{
		store:       store,
		settings:    set,
		fmt:         f,
		mailer:      mailer,
		registry:    reg,
		onboarder:   ob,
		platform:    p,
		log:         log,
		timeout:     timeout,
		maxAttempts: maxAttempts,
		generate: func() (string, error) {
			return otp.Generate(config.OTPLength, config.OTPCharset)
		},
	}
}

// HandleInteraction dispatches verification button presses and modal submits.
func (v *Verifier) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionMessageComponent:
		if i.MessageComponentData().CustomID == config.VerifyButtonID {
			v.onButton(s, i)
		}
	case discordgo.InteractionModalSubmit:
		if i.ModalSubmitData().CustomID == config.VerifyModalID {
			v.onModalSubmit(s, i)
		}
	}
}

func (v *Verifier) onButton(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Member == nil {
		return
	}
	locale := localeFor(v.settings, i.GuildID)

	g, err := v.platform.Guild(i.GuildID)
	if err == nil {
		for _, roleID := range i.Member.Roles {
			if role := findRole(g, roleID); role != nil && role.Name == config.VerifiedRoleName {
				respondEphemeral(s, i, v.fmt.Format(locale, "verify-already-verified", nil))
				return
			}
		}
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: config.VerifyModalID,
			Title:    v.fmt.Format(locale, "verify-modal", nil),
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:    rollInputID,
						Label:       v.fmt.Format(locale, "verify-roll-hint", nil),
						Style:       discordgo.TextInputShort,
						Placeholder: "12022005",
						Required:    true,
						MinLength:   config.RollLength,
						MaxLength:   config.RollLength,
					},
				}},
			},
		},
	})
	if err != nil {
		v.log.Error().Err(err).Str("guild", i.GuildID).Msg("failed to open verification modal")
	}
}

// onModalSubmit acknowledges the interaction and runs the flow in its own
// goroutine; everything it raises is caught, apologized for and logged.
func (v *Verifier) onModalSubmit(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Member == nil {
		return
	}
	locale := localeFor(v.settings, i.GuildID)
	roll := modalInputValue(i.ModalSubmitData(), rollInputID)

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		v.log.Error().Err(err).Str("guild", i.GuildID).Msg("failed to acknowledge modal submit")
		return
	}

	reply := func(content string) {
		_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		})
		if err != nil {
			v.log.Warn().Err(err).Str("guild", i.GuildID).Msg("failed to send verification followup")
		}
	}

	member, guildID, channelID := i.Member, i.GuildID, i.ChannelID
	go func() {
		if err := v.Run(context.Background(), guildID, channelID, member, roll, reply); err != nil {
			v.log.Error().Err(err).
				Str("guild", guildID).
				Str("user", member.User.ID).
				Str("roll", roll).
				Msg("verification flow failed")
			reply(v.fmt.Format(locale, "verify-error", nil))
		}
	}()
}

// Run executes one verification attempt for a submitted roll number. User
// input problems end the flow with a message and a nil error; anything
// unexpected is returned to the caller.
func (v *Verifier) Run(ctx context.Context, guildID, channelID string, member *discordgo.Member, roll string, reply func(string)) error {
	locale := localeFor(v.settings, guildID)

	g, err := v.platform.Guild(guildID)
	if err != nil {
		return fmt.Errorf("failed to fetch guild: %w", err)
	}

	student, err := v.store.StudentByRoll(ctx, roll)
	if errors.Is(err, database.ErrNotFound) {
		reply(v.fmt.Format(locale, "verify-not-found", map[string]string{"roll": roll}))
		return nil
	}
	if err != nil {
		return err
	}

	ag, err := v.store.AffiliatedGuild(ctx, guildID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return err
	}
	if ag != nil && ag.Batch != 0 && ag.Batch != student.Batch {
		reply(v.fmt.Format(locale, "verify-wrong-batch", map[string]string{"roll": roll}))
		return nil
	}

	code, err := v.generate()
	if err != nil {
		return err
	}
	challenge, err := v.registry.Register(code, roll, member.User.ID, channelID)
	if errors.Is(err, otp.ErrChallengeActive) {
		reply(v.fmt.Format(locale, "verify-in-progress", nil))
		return nil
	}
	if err != nil {
		return err
	}
	defer v.registry.Remove(challenge)

	subject := fmt.Sprintf("Verification of %s in %s", member.User.String(), g.Name)
	if err := v.mailer.Send(student.Email, subject, verificationEmail(student.Name, code, g.Name, guildID, channelID)); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	reply(v.fmt.Format(locale, "verify-email-sent", nil))

	waitCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	for attempt := 0; attempt < v.maxAttempts; attempt++ {
		response, err := challenge.Await(waitCtx)
		if err != nil {
			// Timed out waiting for a response.
			break
		}
		if response != code {
			v.send(channelID, v.fmt.Format(locale, "verify-otp-incorrect", map[string]string{"code": response}))
			continue
		}

		if err := v.store.SetLinkage(ctx, roll, member.User.ID); err != nil {
			return err
		}
		v.send(channelID, v.fmt.Format(locale, "verify-success", map[string]string{"member": userMention(member.User.ID)}))

		student.DiscordID = member.User.ID
		student.IsVerified = true
		v.onboarder.ApplyVerifiedRoles(ctx, g, member.User.ID, student)
		return nil
	}

	v.send(channelID, v.fmt.Format(locale, "verify-abandoned", nil))
	return nil
}

func (v *Verifier) send(channelID, content string) {
	if err := v.platform.Send(channelID, content); err != nil {
		v.log.Warn().Err(err).Str("channel", channelID).Msg("failed to send verification message")
	}
}

// verificationEmail builds the HTML body sent to the student's address.
func verificationEmail(name, code, guildName, guildID, channelID string) string {
	link := fmt.Sprintf("https://discord.com/channels/%s/%s", guildID, channelID)
	return fmt.Sprintf(`
		<html>
		<body>
			<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
				<h2 style="color: #333;">Discord verification</h2>
				<p>Hello %s,</p>
				<p>A verification was requested for your roll number in <strong>%s</strong>. Your code is:</p>
				<p style="font-size: 24px; letter-spacing: 4px; text-align: center;"><strong>%s</strong></p>
				<p>Reply with it <a href="%s">in the channel where you pressed Verify</a>.</p>
				<p>If you did not request this, you can safely ignore this email.</p>
			</div>
		</body>
		</html>
	`, name, guildName, code, link)
}

func modalInputValue(data discordgo.ModalSubmitInteractionData, customID string) string {
	for _, c := range data.Components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, rc := range row.Components {
			if input, ok := rc.(*discordgo.TextInput); ok && input.CustomID == customID {
				return input.Value
			}
		}
	}
	return ""
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}
