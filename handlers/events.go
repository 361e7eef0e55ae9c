// Package handlers contains every Discord-facing piece of the bot: the
// onboarding/offboarding pipelines, the OTP verification flow, the prefix
// commands and the command error classifier.
package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/Necroforger/dgrouter"
	"github.com/Necroforger/dgrouter/exrouter"
	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/campuslink/campuslink/config"
	"github.com/campuslink/campuslink/l10n"
	"github.com/campuslink/campuslink/mail"
	"github.com/campuslink/campuslink/otp"
	"github.com/campuslink/campuslink/settings"
)

// Options carries everything the Bot needs wired in.
type Options struct {
	Store     Store
	Settings  *settings.Store
	Formatter *l10n.Formatter
	Mailer    mail.Sender
	Log       zerolog.Logger

	OwnerID        string
	OTPTimeout     time.Duration
	OTPMaxAttempts int
}

// Bot bundles the event handlers and attaches them to a session.
type Bot struct {
	opts     Options
	router   *exrouter.Route
	registry *otp.Registry
	log      zerolog.Logger

	classifier *Classifier
	commands   *Commands
	onboarder  *Onboarder
	offboarder *Offboarder
	verifier   *Verifier
}

// New builds the Bot and its command router. Attach must be called before
// the session is opened.
func New(opts Options) *Bot {
	b := &Bot{
		opts:     opts,
		router:   exrouter.New(),
		registry: otp.NewRegistry(),
		log:      opts.Log,
	}
	b.classifier = NewClassifier(opts.Formatter, opts.Log)
	b.commands = NewCommands(opts.Settings, opts.Formatter, b.classifier, opts.OwnerID, opts.Log)
	b.commands.Register(b.router)
	return b
}

// Attach builds the pipelines over the session and registers every gateway
// handler.
func (b *Bot) Attach(s *discordgo.Session) {
	platform := NewDiscord(s)
	locks := newMemberLocks()

	b.onboarder = NewOnboarder(b.opts.Store, b.opts.Settings, b.opts.Formatter, platform, locks, b.log)
	b.offboarder = NewOffboarder(b.opts.Store, b.opts.Settings, b.opts.Formatter, platform, locks, b.log)
	b.verifier = NewVerifier(
		b.opts.Store, b.opts.Settings, b.opts.Formatter, b.opts.Mailer,
		b.registry, b.onboarder, platform,
		b.opts.OTPTimeout, b.opts.OTPMaxAttempts, b.log,
	)

	s.AddHandler(b.ready)
	s.AddHandler(b.memberAdd)
	s.AddHandler(b.memberRemove)
	s.AddHandler(b.messageCreate)
	s.AddHandler(b.interactionCreate)
}

func (b *Bot) ready(s *discordgo.Session, e *discordgo.Ready) {
	b.log.Info().
		Str("user", e.User.String()).
		Int("guilds", len(e.Guilds)).
		Msg("gateway session ready")
}

func (b *Bot) memberAdd(s *discordgo.Session, e *discordgo.GuildMemberAdd) {
	go b.onboarder.MemberJoin(context.Background(), e)
}

func (b *Bot) memberRemove(s *discordgo.Session, e *discordgo.GuildMemberRemove) {
	go b.offboarder.MemberRemove(context.Background(), e)
}

func (b *Bot) interactionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	b.verifier.HandleInteraction(s, i)
}

func (b *Bot) messageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == s.State.User.ID {
		return
	}

	// Pending OTP challenges get first claim on the message.
	if b.registry.Resolve(m.ChannelID, m.Author.ID, m.Content) {
		return
	}

	prefix := config.DefaultPrefix
	if m.GuildID != "" {
		if gs, err := b.opts.Settings.Guild(m.GuildID); err == nil && gs.Prefix != "" {
			prefix = gs.Prefix
		}
	}

	if err := b.router.FindAndExecute(s, prefix, s.State.User.ID, m.Message); err != nil {
		cmdErr := &CommandError{Kind: ErrCommandInvoke, Err: err}
		if errors.Is(err, dgrouter.ErrCouldNotFindRoute) {
			cmdErr = &CommandError{Kind: ErrUnknownCommand, Err: err}
		}
		locale := localeFor(b.opts.Settings, m.GuildID)
		b.classifier.Handle(locale, cmdErr, func(msg string) {
			s.ChannelMessageSend(m.ChannelID, msg)
		})
	}
}
