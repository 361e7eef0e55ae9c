package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/campuslink/campuslink/config"
	"github.com/campuslink/campuslink/database"
	"github.com/campuslink/campuslink/l10n"
	"github.com/campuslink/campuslink/settings"
)

// Offboarder handles member departures: classifies them through the audit
// log, posts the configured notifications and unlinks unverified records.
type Offboarder struct {
	store    Store
	settings *settings.Store
	fmt      *l10n.Formatter
	platform Platform
	log      zerolog.Logger
	locks    *memberLocks
	now      func() time.Time
}

// NewOffboarder wires an Offboarder.
func NewOffboarder(store Store, set *settings.Store, f *l10n.Formatter, p Platform, locks *memberLocks, log zerolog.Logger) *Offboarder {
	return &Offboarder{store: store, settings: set, fmt: f, platform: p, locks: locks, log: log, now: time.Now}
}

// MemberRemove handles one GuildMemberRemove event.
func (o *Offboarder) MemberRemove(ctx context.Context, e *discordgo.GuildMemberRemove) {
	unlock := o.locks.lock(e.GuildID, e.User.ID)
	defer unlock()

	locale := localeFor(o.settings, e.GuildID)

	events, err := o.store.DepartureEvents(ctx, e.GuildID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		o.log.Error().Err(err).Str("guild", e.GuildID).Msg("failed to fetch departure events")
	}

	action, entry := o.classify(e.GuildID, e.User.ID)
	if events != nil && action != "leave" {
		o.sendModerationNotice(events, action, entry, e.User.ID, locale)
	}

	o.unlinkUnverified(ctx, e.User.ID)

	// The plain leave message is the baseline notification, sent for every
	// classification.
	if events != nil && events.LeaveChannel != "" && events.LeaveMessage != "" {
		msg := l10n.Substitute(events.LeaveMessage, map[string]string{"user": userMention(e.User.ID)})
		if err := o.platform.Send(events.LeaveChannel, msg); err != nil {
			o.log.Warn().Err(err).Str("channel", events.LeaveChannel).Msg("failed to send leave message")
		}
	}
}

// classify matches the departure against recent audit entries. Classification
// is best effort: missing permission, audit errors or no matching entry all
// default to "leave".
func (o *Offboarder) classify(guildID, userID string) (string, *discordgo.AuditLogEntry) {
	perms, err := o.platform.BotPermissions(guildID)
	if err != nil || perms&discordgo.PermissionViewAuditLogs == 0 {
		return "leave", nil
	}

	entries, err := o.platform.AuditLog(guildID, "", config.AuditFetchLimit)
	if err != nil {
		o.log.Debug().Err(err).Str("guild", guildID).Msg("failed to read audit log")
		return "leave", nil
	}

	departed := o.now()
	for _, entry := range entries {
		if entry.TargetID != userID || entry.ActionType == nil {
			continue
		}
		created, err := discordgo.SnowflakeTimestamp(entry.ID)
		if err != nil {
			continue
		}
		if d := departed.Sub(created); d < 0 || d > config.AuditWindow {
			continue
		}
		switch *entry.ActionType {
		case discordgo.AuditLogActionMemberKick:
			return "kick", entry
		case discordgo.AuditLogActionMemberBanAdd:
			return "ban", entry
		}
	}
	return "leave", nil
}

func (o *Offboarder) sendModerationNotice(events *database.DepartureEvents, action string, entry *discordgo.AuditLogEntry, userID, locale string) {
	channelID, template := events.KickChannel, events.KickMessage
	if action == "ban" {
		channelID, template = events.BanChannel, events.BanMessage
	}
	if channelID == "" || template == "" {
		return
	}

	msg := l10n.Substitute(template, map[string]string{
		"user":   userMention(userID),
		"member": userMention(entry.UserID),
	})
	reason := entry.Reason
	if reason == "" {
		reason = "None"
	}
	msg += o.fmt.Format(locale, "leave-reason", map[string]string{"reason": reason})

	if err := o.platform.Send(channelID, msg); err != nil {
		o.log.Warn().Err(err).Str("channel", channelID).Msg("failed to send moderation notice")
	}
}

// unlinkUnverified clears the linkage of an unverified record; verified
// records keep theirs. Re-running on an already unlinked record is a no-op.
func (o *Offboarder) unlinkUnverified(ctx context.Context, userID string) {
	student, err := o.store.StudentByDiscordID(ctx, userID)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			o.log.Error().Err(err).Str("user", userID).Msg("failed to fetch student record")
		}
		return
	}
	if student.IsVerified {
		return
	}
	if err := o.store.ClearLinkage(ctx, userID); err != nil {
		o.log.Error().Err(err).Str("user", userID).Msg("failed to clear linkage")
	}
}
