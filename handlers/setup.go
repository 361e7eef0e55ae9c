package handlers

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Necroforger/dgrouter"
	"github.com/Necroforger/dgrouter/exrouter"
	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/campuslink/campuslink/config"
	"github.com/campuslink/campuslink/l10n"
	"github.com/campuslink/campuslink/settings"
)

var channelMentionRe = regexp.MustCompile(`[<#>]`)

// commandUsage - Argument hints rendered in help output
var commandUsage = map[string]string{
	"help":   "[command]",
	"setup":  "<channel>",
	"prefix": "<prefix>",
	"locale": "<locale>",
}

// Commands holds the prefix command handlers.
type Commands struct {
	settings   *settings.Store
	fmt        *l10n.Formatter
	classifier *Classifier
	router     *exrouter.Route
	log        zerolog.Logger
	ownerID    string
	launch     time.Time
}

// NewCommands wires the command handlers.
func NewCommands(set *settings.Store, f *l10n.Formatter, cl *Classifier, ownerID string, log zerolog.Logger) *Commands {
	return &Commands{
		settings:   set,
		fmt:        f,
		classifier: cl,
		log:        log,
		ownerID:    ownerID,
		launch:     time.Now(),
	}
}

// Register binds every command to the router.
func (c *Commands) Register(r *exrouter.Route) {
	c.router = r
	r.On("help", c.wrap(c.Help)).Desc("Show this overview, or the details of one command")
	r.On("ping", c.wrap(c.Ping)).Desc("Show bot uptime and gateway latency")
	r.On("setup", c.wrap(c.Setup)).Desc("Post the verification button into a channel")
	r.On("prefix", c.wrap(c.Prefix)).Desc("Set the command prefix for this server")
	r.On("locale", c.wrap(c.Locale)).Desc("Set the language for this server")
}

// wrap routes a command's returned error through the classifier.
func (c *Commands) wrap(fn func(*exrouter.Context) error) func(*exrouter.Context) {
	return func(ctx *exrouter.Context) {
		if err := fn(ctx); err != nil {
			locale := localeFor(c.settings, ctx.Msg.GuildID)
			c.classifier.Handle(locale, err, func(msg string) {
				ctx.Reply(msg)
			})
		}
	}
}

// Ping - Report uptime and latency
func (c *Commands) Ping(ctx *exrouter.Context) error {
	_, err := ctx.Reply(c.fmt.Format(localeFor(c.settings, ctx.Msg.GuildID), "ping-response", map[string]string{
		"uptime":  time.Since(c.launch).Round(time.Second).String(),
		"latency": ctx.Ses.HeartbeatLatency().Round(time.Millisecond).String(),
	}))
	return err
}

// Help - List every command, or detail the named one
func (c *Commands) Help(ctx *exrouter.Context) error {
	locale := localeFor(c.settings, ctx.Msg.GuildID)
	prefix := c.prefixFor(ctx.Msg.GuildID)

	name := ctx.Args.Get(1)
	if name == "" {
		_, err := ctx.Ses.ChannelMessageSendEmbed(ctx.Msg.ChannelID, c.helpOverview(locale, prefix))
		return err
	}

	embed := c.helpDetail(locale, prefix, name)
	if embed == nil {
		return &CommandError{
			Kind:   ErrBadArgument,
			Params: map[string]string{"arg": name, "detail": c.fmt.Format(locale, "help-unknown", nil)},
		}
	}
	_, err := ctx.Ses.ChannelMessageSendEmbed(ctx.Msg.ChannelID, embed)
	return err
}

func (c *Commands) helpOverview(locale, prefix string) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       c.fmt.Format(locale, "help-title", nil),
		Description: c.fmt.Format(locale, "help-hint", map[string]string{"prefix": prefix}),
	}
	for _, route := range c.router.Routes {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  prefix + commandSyntax(route),
			Value: route.Description,
		})
	}
	return embed
}

func (c *Commands) helpDetail(locale, prefix, name string) *discordgo.MessageEmbed {
	route := c.router.Find(name)
	if route == nil {
		return nil
	}
	embed := &discordgo.MessageEmbed{
		Title:       prefix + commandSyntax(route),
		Description: route.Description,
	}
	if len(route.Aliases) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  c.fmt.Format(locale, "help-aliases", nil),
			Value: "`" + strings.Join(route.Aliases, "|") + "`",
		})
	}
	return embed
}

// commandSyntax renders a route's invocation line: the name (with any
// aliases) followed by its argument hint.
func commandSyntax(route *dgrouter.Route) string {
	name := route.Name
	if len(route.Aliases) > 0 {
		name = "[" + name + "|" + strings.Join(route.Aliases, "|") + "]"
	}
	if usage, ok := commandUsage[route.Name]; ok {
		return name + " " + usage
	}
	return name
}

func (c *Commands) prefixFor(guildID string) string {
	if c.settings == nil || guildID == "" {
		return config.DefaultPrefix
	}
	gs, err := c.settings.Guild(guildID)
	if err != nil || gs.Prefix == "" {
		return config.DefaultPrefix
	}
	return gs.Prefix
}

// Setup - Post the verification button message into the given channel
func (c *Commands) Setup(ctx *exrouter.Context) error {
	if err := c.requireManageGuild(ctx); err != nil {
		return err
	}
	locale := localeFor(c.settings, ctx.Msg.GuildID)

	chanArg := ctx.Args.Get(1)
	if chanArg == "" {
		return &CommandError{Kind: ErrMissingArgument, Params: map[string]string{"arg": "channel"}}
	}
	channelID := channelMentionRe.ReplaceAllString(chanArg, "")
	channel, err := ctx.Ses.Channel(channelID)
	if err != nil || channel.GuildID != ctx.Msg.GuildID {
		return &CommandError{
			Kind:   ErrBadArgument,
			Params: map[string]string{"arg": chanArg, "detail": "not a channel on this server"},
			Err:    err,
		}
	}

	msg, err := ctx.Ses.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: c.fmt.Format(locale, "verify-prompt", nil),
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    c.fmt.Format(locale, "verify-button", nil),
					Style:    discordgo.SuccessButton,
					CustomID: config.VerifyButtonID,
				},
			}},
		},
	})
	if err != nil {
		return &CommandError{Kind: ErrForbidden, Err: fmt.Errorf("failed to post verification button: %w", err)}
	}

	gs, err := c.settings.Guild(ctx.Msg.GuildID)
	if err != nil {
		return &CommandError{Kind: ErrCommandInvoke, Err: err}
	}
	gs.VerifyChannelID = channelID
	gs.VerifyMessageID = msg.ID
	if err := c.settings.SetGuild(gs); err != nil {
		return &CommandError{Kind: ErrCommandInvoke, Err: err}
	}

	_, err = ctx.Reply(c.fmt.Format(locale, "setup-complete", map[string]string{"channel": channelMention(channelID)}))
	return err
}

// Prefix - Set the per-guild command prefix
func (c *Commands) Prefix(ctx *exrouter.Context) error {
	if err := c.requireManageGuild(ctx); err != nil {
		return err
	}
	prefix := ctx.Args.Get(1)
	if prefix == "" {
		return &CommandError{Kind: ErrMissingArgument, Params: map[string]string{"arg": "prefix"}}
	}

	gs, err := c.settings.Guild(ctx.Msg.GuildID)
	if err != nil {
		return &CommandError{Kind: ErrCommandInvoke, Err: err}
	}
	gs.Prefix = prefix
	if err := c.settings.SetGuild(gs); err != nil {
		return &CommandError{Kind: ErrCommandInvoke, Err: err}
	}

	locale := localeFor(c.settings, ctx.Msg.GuildID)
	_, err = ctx.Reply(c.fmt.Format(locale, "prefix-updated", map[string]string{"prefix": prefix}))
	return err
}

// Locale - Set the per-guild language
func (c *Commands) Locale(ctx *exrouter.Context) error {
	if err := c.requireManageGuild(ctx); err != nil {
		return err
	}
	locale := ctx.Args.Get(1)
	if locale == "" {
		return &CommandError{Kind: ErrMissingArgument, Params: map[string]string{"arg": "locale"}}
	}
	if !c.fmt.Supported(locale) {
		return &CommandError{
			Kind:   ErrBadArgument,
			Params: map[string]string{"arg": locale, "detail": "no such language is available"},
		}
	}

	gs, err := c.settings.Guild(ctx.Msg.GuildID)
	if err != nil {
		return &CommandError{Kind: ErrCommandInvoke, Err: err}
	}
	gs.Locale = locale
	if err := c.settings.SetGuild(gs); err != nil {
		return &CommandError{Kind: ErrCommandInvoke, Err: err}
	}

	_, err = ctx.Reply(c.fmt.Format(locale, "locale-updated", map[string]string{"locale": locale}))
	return err
}

func (c *Commands) requireManageGuild(ctx *exrouter.Context) error {
	if ctx.Msg.Author.ID == c.ownerID {
		return nil
	}
	perms, err := ctx.Ses.UserChannelPermissions(ctx.Msg.Author.ID, ctx.Msg.ChannelID)
	if err != nil {
		return &CommandError{Kind: ErrCommandInvoke, Err: err}
	}
	if perms&discordgo.PermissionManageServer == 0 {
		return &CommandError{Kind: ErrMissingPermissions, Params: map[string]string{"perms": "Manage Server"}}
	}
	return nil
}
