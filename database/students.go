package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

var studentColumns = []string{
	"roll_number", "name", "email", "section", "batch",
	"hostel_id", "COALESCE(discord_id, '')", "is_verified",
}

// StudentByRoll fetches a student record by roll number.
func (s *Store) StudentByRoll(ctx context.Context, roll string) (*Student, error) {
	return s.student(ctx, squirrel.Eq{"roll_number": roll})
}

// StudentByDiscordID fetches the student record linked to a Discord account.
func (s *Store) StudentByDiscordID(ctx context.Context, discordID string) (*Student, error) {
	return s.student(ctx, squirrel.Eq{"discord_id": discordID})
}

func (s *Store) student(ctx context.Context, where squirrel.Eq) (*Student, error) {
	sql, args, err := squirrel.Select(studentColumns...).
		From("student").
		Where(where).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	var st Student
	err = s.pool.QueryRow(ctx, sql, args...).Scan(
		&st.RollNumber, &st.Name, &st.Email, &st.Section, &st.Batch,
		&st.HostelID, &st.DiscordID, &st.IsVerified,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching student: %w", err)
	}
	return &st, nil
}

// SetLinkage binds a Discord account to a roll number and marks it verified.
// An existing linkage of the same roll number to a different account is
// superseded by the update.
func (s *Store) SetLinkage(ctx context.Context, roll, discordID string) error {
	sql, args, err := squirrel.Update("student").
		Set("discord_id", discordID).
		Set("is_verified", true).
		Where(squirrel.Eq{"roll_number": roll}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("error building SQL: %w", err)
	}
	if _, err := s.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("error setting linkage: %w", err)
	}
	return nil
}

// ClearLinkage unbinds a Discord account from whichever record holds it.
// Clearing an already cleared linkage is a no-op.
func (s *Store) ClearLinkage(ctx context.Context, discordID string) error {
	sql, args, err := squirrel.Update("student").
		Set("discord_id", nil).
		Where(squirrel.Eq{"discord_id": discordID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("error building SQL: %w", err)
	}
	if _, err := s.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("error clearing linkage: %w", err)
	}
	return nil
}
