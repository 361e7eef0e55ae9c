package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/campuslink/campuslink/database"
)

// Store is the slice of the identity store the pipelines depend on.
// *database.Store satisfies it; tests substitute fakes.
type Store interface {
	StudentByRoll(ctx context.Context, roll string) (*database.Student, error)
	StudentByDiscordID(ctx context.Context, discordID string) (*database.Student, error)
	SetLinkage(ctx context.Context, roll, discordID string) error
	ClearLinkage(ctx context.Context, discordID string) error

	GuildBotRole(ctx context.Context, guildID string) (string, error)
	JoinEvents(ctx context.Context, guildID string) ([]database.JoinEvent, error)
	JoinRoleIDs(ctx context.Context, guildID string) ([]string, error)
	DeleteJoinRoles(ctx context.Context, roleIDs []string) error
	DepartureEvents(ctx context.Context, guildID string) (*database.DepartureEvents, error)
	RoleRules(ctx context.Context, guildID string) ([]database.RoleRule, error)
	GroupRoles(ctx context.Context, guildID string) (*database.GroupRoles, error)
	IsGroupMember(ctx context.Context, guildID, discordID string) (bool, error)
	AffiliatedGuild(ctx context.Context, guildID string) (*database.AffiliatedGuild, error)
}

// Platform is the slice of the Discord API the pipelines depend on.
type Platform interface {
	Guild(guildID string) (*discordgo.Guild, error)
	AddRoles(guildID, userID string, roleIDs ...string) error
	Send(channelID, content string) error
	DM(userID, content string) error
	Kick(guildID, userID, reason string) error
	AuditLog(guildID, userID string, limit int) ([]*discordgo.AuditLogEntry, error)
	BotPermissions(guildID string) (int64, error)
}

// Discord adapts a discordgo session to the Platform interface.
type Discord struct {
	s *discordgo.Session
}

// NewDiscord wraps a session.
func NewDiscord(s *discordgo.Session) *Discord {
	return &Discord{s: s}
}

// Guild returns the guild from state, falling back to the API.
func (d *Discord) Guild(guildID string) (*discordgo.Guild, error) {
	if g, err := d.s.State.Guild(guildID); err == nil {
		return g, nil
	}
	return d.s.Guild(guildID)
}

// AddRoles grants every role in roleIDs to the member.
func (d *Discord) AddRoles(guildID, userID string, roleIDs ...string) error {
	var errs []error
	for _, id := range roleIDs {
		if err := d.s.GuildMemberRoleAdd(guildID, userID, id); err != nil {
			errs = append(errs, fmt.Errorf("role %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Send posts a message to a channel.
func (d *Discord) Send(channelID, content string) error {
	_, err := d.s.ChannelMessageSend(channelID, content)
	return err
}

// DM messages a user directly. Closed DMs surface as an error.
func (d *Discord) DM(userID, content string) error {
	ch, err := d.s.UserChannelCreate(userID)
	if err != nil {
		return err
	}
	_, err = d.s.ChannelMessageSend(ch.ID, content)
	return err
}

// Kick removes a member from the guild with an audit reason.
func (d *Discord) Kick(guildID, userID, reason string) error {
	return d.s.GuildMemberDeleteWithReason(guildID, userID, reason)
}

// AuditLog returns recent audit entries, optionally filtered by acting user.
func (d *Discord) AuditLog(guildID, userID string, limit int) ([]*discordgo.AuditLogEntry, error) {
	al, err := d.s.GuildAuditLog(guildID, userID, "", 0, limit)
	if err != nil {
		return nil, err
	}
	return al.AuditLogEntries, nil
}

// BotPermissions computes the bot's guild-level permission set.
func (d *Discord) BotPermissions(guildID string) (int64, error) {
	g, err := d.Guild(guildID)
	if err != nil {
		return 0, err
	}
	botID := d.s.State.User.ID
	member, err := d.s.State.Member(guildID, botID)
	if err != nil {
		if member, err = d.s.GuildMember(guildID, botID); err != nil {
			return 0, err
		}
	}

	var perms int64
	for _, role := range g.Roles {
		if role.ID == guildID {
			// @everyone
			perms |= role.Permissions
			continue
		}
		for _, id := range member.Roles {
			if id == role.ID {
				perms |= role.Permissions
				break
			}
		}
	}
	return perms, nil
}
