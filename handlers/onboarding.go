package handlers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/campuslink/campuslink/database"
	"github.com/campuslink/campuslink/l10n"
	"github.com/campuslink/campuslink/settings"
)

// Onboarder runs the member-join pipeline: bot role, generic join/welcome
// events, club/society roles, field-based role rules and the affiliated-guild
// verification-gated path, in that order, first match wins.
type Onboarder struct {
	store    Store
	settings *settings.Store
	fmt      *l10n.Formatter
	platform Platform
	log      zerolog.Logger
	locks    *memberLocks
}

// NewOnboarder wires an Onboarder.
func NewOnboarder(store Store, set *settings.Store, f *l10n.Formatter, p Platform, locks *memberLocks, log zerolog.Logger) *Onboarder {
	return &Onboarder{store: store, settings: set, fmt: f, platform: p, locks: locks, log: log}
}

// MemberJoin handles one GuildMemberAdd event.
func (o *Onboarder) MemberJoin(ctx context.Context, e *discordgo.GuildMemberAdd) {
	unlock := o.locks.lock(e.GuildID, e.User.ID)
	defer unlock()

	g, err := o.platform.Guild(e.GuildID)
	if err != nil {
		o.log.Error().Err(err).Str("guild", e.GuildID).Msg("failed to fetch guild on join")
		return
	}
	locale := localeFor(o.settings, e.GuildID)

	if e.User.Bot {
		o.grantBotRole(ctx, g, e.User.ID)
		return
	}

	o.runJoinEvents(ctx, g, e.Member, locale)

	if o.joinClubOrSociety(ctx, g, e.User.ID) {
		return
	}
	if o.applyRoleRules(ctx, g, e.User.ID) {
		return
	}
	o.joinAffiliated(ctx, g, e.User.ID, locale)
}

func (o *Onboarder) grantBotRole(ctx context.Context, g *discordgo.Guild, userID string) {
	roleID, err := o.store.GuildBotRole(ctx, g.ID)
	if err != nil {
		o.log.Error().Err(err).Str("guild", g.ID).Msg("failed to fetch bot role")
		return
	}
	if findRole(g, roleID) == nil {
		if roleID != "" {
			o.log.Warn().Str("guild", g.ID).Str("role", roleID).Msg("(table: guild) bot role not found")
		}
		return
	}
	if err := o.platform.AddRoles(g.ID, userID, roleID); err != nil {
		o.log.Error().Err(err).Str("guild", g.ID).Msg("failed to grant bot role")
	}
}

// runJoinEvents posts configured join/welcome messages and grants join roles.
// Stale join-role ids are deleted from configuration.
func (o *Onboarder) runJoinEvents(ctx context.Context, g *discordgo.Guild, member *discordgo.Member, locale string) {
	events, err := o.store.JoinEvents(ctx, g.ID)
	if err != nil {
		o.log.Error().Err(err).Str("guild", g.ID).Msg("failed to fetch join events")
	}
	params := map[string]string{"user": userMention(member.User.ID), "guild": g.Name}
	for _, ev := range events {
		message := l10n.Substitute(ev.Message, params)
		if ev.Message == "" {
			message = o.fmt.Format(locale, "welcome-message", params)
		}

		channel := findChannel(g, ev.ChannelID)
		if channel == nil {
			o.log.Warn().Str("guild", g.ID).Str("channel", ev.ChannelID).Msg("(table: event) channel not found")
			// A DM is the only event possible without a channel, and it
			// needs a message.
			if message == "" {
				continue
			}
		}

		if channel != nil && contains(ev.EventTypes, "join") {
			if err := o.platform.Send(channel.ID, message); err != nil {
				o.log.Warn().Err(err).Str("channel", channel.ID).Msg("failed to send join message")
			}
		}
		if message != "" && contains(ev.EventTypes, "welcome") {
			if err := o.platform.DM(member.User.ID, message); err != nil {
				// User DMs closed
				o.log.Debug().Err(err).Str("user", member.User.ID).Msg("failed to DM welcome message")
			}
		}
	}

	ids, err := o.store.JoinRoleIDs(ctx, g.ID)
	if err != nil {
		o.log.Error().Err(err).Str("guild", g.ID).Msg("failed to fetch join roles")
		return
	}
	valid, broken := pruneRoles(g, dedupe(ids))
	if len(valid) > 0 {
		if err := o.platform.AddRoles(g.ID, member.User.ID, valid...); err != nil {
			o.log.Error().Err(err).Str("guild", g.ID).Msg("failed to grant join roles")
		}
	}
	if len(broken) > 0 {
		o.log.Warn().Str("guild", g.ID).Strs("roles", broken).Msg("(table: join_role) deleting stale roles")
		if err := o.store.DeleteJoinRoles(ctx, broken); err != nil {
			o.log.Error().Err(err).Msg("failed to delete stale join roles")
		}
	}
}

// joinClubOrSociety grants the cohort or guest role on club/society guilds.
// It reports whether the guild is one.
func (o *Onboarder) joinClubOrSociety(ctx context.Context, g *discordgo.Guild, userID string) bool {
	group, err := o.store.GroupRoles(ctx, g.ID)
	if errors.Is(err, database.ErrNotFound) {
		return false
	}
	if err != nil {
		o.log.Error().Err(err).Str("guild", g.ID).Msg("failed to fetch group roles")
		return false
	}

	roleID := group.GuestRole
	student, err := o.studentFor(ctx, userID)
	if err != nil {
		o.log.Error().Err(err).Str("user", userID).Msg("failed to fetch student record")
	}
	if student != nil {
		if cohort, ok := cohortName(student.Batch, time.Now().UTC()); ok {
			isMember, err := o.store.IsGroupMember(ctx, g.ID, userID)
			if err != nil {
				o.log.Error().Err(err).Str("guild", g.ID).Msg("failed to check group membership")
			}
			if isMember {
				roleID = group.Cohort(cohort)
			}
		}
	}

	if findRole(g, roleID) == nil {
		o.log.Warn().Str("guild", g.ID).Str("role", roleID).Msg("(table: groups) role not found")
		return true
	}
	if err := o.platform.AddRoles(g.ID, userID, roleID); err != nil {
		o.log.Error().Err(err).Str("guild", g.ID).Msg("failed to grant group role")
	}
	return true
}

// applyRoleRules evaluates the guild's field-based role rules. It reports
// whether any rule matched or the no-record fallback was applied.
func (o *Onboarder) applyRoleRules(ctx context.Context, g *discordgo.Guild, userID string) bool {
	rules, err := o.store.RoleRules(ctx, g.ID)
	if err != nil {
		o.log.Error().Err(err).Str("guild", g.ID).Msg("failed to fetch role rules")
		return false
	}
	if len(rules) == 0 {
		return false
	}

	student, err := o.studentFor(ctx, userID)
	if err != nil {
		o.log.Error().Err(err).Str("user", userID).Msg("failed to fetch student record")
		return false
	}

	if student == nil {
		for _, rule := range rules {
			if rule.Field != database.FallbackField {
				continue
			}
			valid, broken := pruneRoles(g, dedupe(rule.RoleIDs))
			if len(broken) > 0 {
				o.log.Warn().Str("guild", g.ID).Strs("roles", broken).Msg("(table: guild_role) fallback role not found")
			}
			if len(valid) > 0 {
				if err := o.platform.AddRoles(g.ID, userID, valid...); err != nil {
					o.log.Error().Err(err).Str("guild", g.ID).Msg("failed to grant fallback role")
				}
			}
			return true
		}
		return false
	}

	ids := matchRuleRoles(rules, student)
	valid, broken := pruneRoles(g, ids)
	if len(broken) > 0 {
		o.log.Warn().Str("guild", g.ID).Strs("roles", broken).Msg("(table: guild_role) role not found")
	}
	if len(valid) == 0 {
		return false
	}
	if err := o.platform.AddRoles(g.ID, userID, valid...); err != nil {
		o.log.Error().Err(err).Str("guild", g.ID).Msg("failed to grant rule roles")
	}
	return true
}

// joinAffiliated runs the affiliated-guild path: full roles for admitted
// students, a guest role plus verification instructions otherwise, and
// removal for students of another batch.
func (o *Onboarder) joinAffiliated(ctx context.Context, g *discordgo.Guild, userID, locale string) {
	ag, err := o.store.AffiliatedGuild(ctx, g.ID)
	if errors.Is(err, database.ErrNotFound) {
		return
	}
	if err != nil {
		o.log.Error().Err(err).Str("guild", g.ID).Msg("failed to fetch affiliated guild")
		return
	}

	student, err := o.studentFor(ctx, userID)
	if err != nil {
		o.log.Error().Err(err).Str("user", userID).Msg("failed to fetch student record")
		return
	}

	var messageKey string
	switch {
	case student == nil:
		messageKey = "verify-instruction-basic"

	case ag.Batch == 0:
		if student.IsVerified {
			o.assignNamedRoles(g, userID,
				sectionPrefix(student.Section),
				strconv.Itoa(student.Batch),
				student.HostelID,
			)
			return
		}
		messageKey = "verify-instruction-email"

	case ag.Batch == student.Batch:
		o.assignNamedRoles(g, userID,
			student.Section,
			sectionCode(student.Section),
			student.HostelID,
		)
		return

	default:
		// Wrong batch for this guild; the member joined the wrong server.
		reason := o.fmt.Format(locale, "incorrect-server", nil)
		if err := o.platform.DM(userID, reason); err != nil {
			o.log.Debug().Err(err).Str("user", userID).Msg("failed to DM removal notice")
		}
		if err := o.platform.Kick(g.ID, userID, reason); err != nil {
			o.log.Error().Err(err).Str("guild", g.ID).Str("user", userID).Msg("failed to remove member")
		}
		return
	}

	if findRole(g, ag.GuestRoleID) != nil {
		if err := o.platform.AddRoles(g.ID, userID, ag.GuestRoleID); err != nil {
			o.log.Error().Err(err).Str("guild", g.ID).Msg("failed to grant guest role")
		}
	} else {
		o.log.Warn().Str("guild", g.ID).Str("role", ag.GuestRoleID).Msg("(table: affiliated_guild) role not found")
	}

	if ag.InfoChannelID != "" {
		msg := o.fmt.Format(locale, messageKey, map[string]string{
			"member": userMention(userID),
			"cmd_ch": channelMention(ag.CommandChannel),
		})
		if err := o.platform.Send(ag.InfoChannelID, msg); err != nil {
			o.log.Warn().Err(err).Str("channel", ag.InfoChannelID).Msg("failed to send verification instructions")
		}
	}
}

// ApplyVerifiedRoles runs the downstream role assignment for a freshly
// verified record: the field-based rules plus the affiliated full role set.
func (o *Onboarder) ApplyVerifiedRoles(ctx context.Context, g *discordgo.Guild, userID string, student *database.Student) {
	rules, err := o.store.RoleRules(ctx, g.ID)
	if err != nil {
		o.log.Error().Err(err).Str("guild", g.ID).Msg("failed to fetch role rules")
	}
	if ids := matchRuleRoles(rules, student); len(ids) > 0 {
		valid, broken := pruneRoles(g, ids)
		if len(broken) > 0 {
			o.log.Warn().Str("guild", g.ID).Strs("roles", broken).Msg("(table: guild_role) role not found")
		}
		if len(valid) > 0 {
			if err := o.platform.AddRoles(g.ID, userID, valid...); err != nil {
				o.log.Error().Err(err).Str("guild", g.ID).Msg("failed to grant rule roles")
			}
		}
	}

	ag, err := o.store.AffiliatedGuild(ctx, g.ID)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			o.log.Error().Err(err).Str("guild", g.ID).Msg("failed to fetch affiliated guild")
		}
		return
	}
	switch {
	case ag.Batch == 0:
		o.assignNamedRoles(g, userID,
			sectionPrefix(student.Section),
			strconv.Itoa(student.Batch),
			student.HostelID,
		)
	case ag.Batch == student.Batch:
		o.assignNamedRoles(g, userID,
			student.Section,
			sectionCode(student.Section),
			student.HostelID,
		)
	}
}

// assignNamedRoles grants the guild roles whose names match the given
// values; missing names are skipped.
func (o *Onboarder) assignNamedRoles(g *discordgo.Guild, userID string, names ...string) {
	ids := dedupe(rolesByName(g, names...))
	if len(ids) == 0 {
		o.log.Warn().Str("guild", g.ID).Strs("names", names).Msg("no roles matched student details")
		return
	}
	if err := o.platform.AddRoles(g.ID, userID, ids...); err != nil {
		o.log.Error().Err(err).Str("guild", g.ID).Msg("failed to grant student roles")
	}
}

// studentFor fetches the linked student record, mapping absence to nil.
func (o *Onboarder) studentFor(ctx context.Context, userID string) (*database.Student, error) {
	student, err := o.store.StudentByDiscordID(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	return student, err
}

// matchRuleRoles collects the deduplicated role ids of every rule the record
// satisfies. Field values are compared stringified.
func matchRuleRoles(rules []database.RoleRule, student *database.Student) []string {
	if student == nil {
		return nil
	}
	var ids []string
	for _, rule := range rules {
		value, ok := studentField(student, rule.Field)
		if !ok || value != rule.Value {
			continue
		}
		ids = append(ids, rule.RoleIDs...)
	}
	return dedupe(ids)
}

func studentField(s *database.Student, field string) (string, bool) {
	switch field {
	case "roll_number":
		return s.RollNumber, true
	case "name":
		return s.Name, true
	case "email":
		return s.Email, true
	case "section":
		return s.Section, true
	case "batch":
		return strconv.Itoa(s.Batch), true
	case "hostel_id":
		return s.HostelID, true
	case "is_verified":
		return strconv.FormatBool(s.IsVerified), true
	}
	return "", false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
