package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// GuildBotRole returns the role granted to joining bot accounts, or "".
func (s *Store) GuildBotRole(ctx context.Context, guildID string) (string, error) {
	sql, args, err := squirrel.Select("COALESCE(bot_role, '')").
		From("guild").
		Where(squirrel.Eq{"id": guildID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("error building SQL: %w", err)
	}

	var role string
	if err := s.pool.QueryRow(ctx, sql, args...).Scan(&role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("error fetching bot role: %w", err)
	}
	return role, nil
}

// JoinEvents returns the configured join/welcome notifications for a guild.
func (s *Store) JoinEvents(ctx context.Context, guildID string) ([]JoinEvent, error) {
	sql, args, err := squirrel.Select("event_types", "COALESCE(channel_id, '')", "COALESCE(message, '')").
		From("event").
		Where(squirrel.Eq{"guild_id": guildID}).
		Where(squirrel.Expr("event_types && ARRAY['join', 'welcome']")).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error fetching join events: %w", err)
	}
	defer rows.Close()

	var events []JoinEvent
	for rows.Next() {
		var ev JoinEvent
		if err := rows.Scan(&ev.EventTypes, &ev.ChannelID, &ev.Message); err != nil {
			return nil, fmt.Errorf("error scanning join event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// DepartureEvents returns the leave/kick/ban notification settings for a
// guild, or ErrNotFound when none are configured.
func (s *Store) DepartureEvents(ctx context.Context, guildID string) (*DepartureEvents, error) {
	sql, args, err := squirrel.Select(
		"COALESCE(leave_channel, '')", "COALESCE(leave_message, '')",
		"COALESCE(kick_channel, '')", "COALESCE(kick_message, '')",
		"COALESCE(ban_channel, '')", "COALESCE(ban_message, '')",
	).
		From("event").
		Where(squirrel.Eq{"guild_id": guildID}).
		Limit(1).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	var ev DepartureEvents
	err = s.pool.QueryRow(ctx, sql, args...).Scan(
		&ev.LeaveChannel, &ev.LeaveMessage,
		&ev.KickChannel, &ev.KickMessage,
		&ev.BanChannel, &ev.BanMessage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching departure events: %w", err)
	}
	return &ev, nil
}

// JoinRoleIDs returns the roles granted to every joining member.
func (s *Store) JoinRoleIDs(ctx context.Context, guildID string) ([]string, error) {
	sql, args, err := squirrel.Select("role_id").
		From("join_role").
		Where(squirrel.Eq{"guild_id": guildID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error fetching join roles: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning join role: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteJoinRoles removes stale role ids from the join_role table.
func (s *Store) DeleteJoinRoles(ctx context.Context, roleIDs []string) error {
	if len(roleIDs) == 0 {
		return nil
	}
	sql, args, err := squirrel.Delete("join_role").
		Where(squirrel.Eq{"role_id": roleIDs}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("error building SQL: %w", err)
	}
	if _, err := s.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("error deleting join roles: %w", err)
	}
	return nil
}

// RoleRules returns the field-based role rules of a guild.
func (s *Store) RoleRules(ctx context.Context, guildID string) ([]RoleRule, error) {
	sql, args, err := squirrel.Select("field", "COALESCE(value, '')", "role_ids").
		From("guild_role").
		Where(squirrel.Eq{"guild_id": guildID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error fetching role rules: %w", err)
	}
	defer rows.Close()

	var rules []RoleRule
	for rows.Next() {
		var rule RoleRule
		if err := rows.Scan(&rule.Field, &rule.Value, &rule.RoleIDs); err != nil {
			return nil, fmt.Errorf("error scanning role rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// GroupRoles returns the cohort/guest roles of a club or society guild, or
// ErrNotFound when the guild is not one.
func (s *Store) GroupRoles(ctx context.Context, guildID string) (*GroupRoles, error) {
	sql, args, err := squirrel.Select(
		"COALESCE(fresher_role, '')", "COALESCE(sophomore_role, '')",
		"COALESCE(junior_role, '')", "COALESCE(senior_role, '')",
		"COALESCE(guest_role, '')",
	).
		From("groups").
		Where(squirrel.Eq{"discord_server": guildID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	var g GroupRoles
	err = s.pool.QueryRow(ctx, sql, args...).Scan(
		&g.FresherRole, &g.SophomoreRole, &g.JuniorRole, &g.SeniorRole, &g.GuestRole,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching group roles: %w", err)
	}
	return &g, nil
}

// IsGroupMember reports whether a Discord account is a member of the group
// behind a club/society guild.
func (s *Store) IsGroupMember(ctx context.Context, guildID, discordID string) (bool, error) {
	sql, args, err := squirrel.Select("1").
		From("group_discord_user").
		Where(squirrel.Eq{"id": guildID, "discord_uid": discordID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("error building SQL: %w", err)
	}

	var one int
	if err := s.pool.QueryRow(ctx, sql, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("error checking group membership: %w", err)
	}
	return true, nil
}

// AffiliatedGuild returns the affiliation settings of a guild, or ErrNotFound
// when the guild is not affiliated.
func (s *Store) AffiliatedGuild(ctx context.Context, guildID string) (*AffiliatedGuild, error) {
	sql, args, err := squirrel.Select(
		"guild_id", "batch", "COALESCE(guest_role, '')",
		"COALESCE(info_channel, '')", "COALESCE(command_channel, '')",
	).
		From("affiliated_guild").
		Where(squirrel.Eq{"guild_id": guildID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	var ag AffiliatedGuild
	err = s.pool.QueryRow(ctx, sql, args...).Scan(
		&ag.GuildID, &ag.Batch, &ag.GuestRoleID, &ag.InfoChannelID, &ag.CommandChannel,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching affiliated guild: %w", err)
	}
	return &ag, nil
}
