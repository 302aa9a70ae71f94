package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/storage"
	"github.com/julianstephens/tally/internal/utils"
)

const completionColumns = `id, habit_id, user_id, completion_date, completed_count, notes,
	created_at, updated_at, is_dirty, sync_status, last_synced_at`

const completionValues = `VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func completionArgs(c models.Completion) []any {
	status := c.SyncStatus
	if status == "" {
		status = constants.SyncStatusPending
	}
	return []any{
		c.ID, c.HabitID, c.UserID, c.CompletionDate, c.CompletedCount, nullString(c.Notes),
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
		boolToInt(c.IsDirty), string(status), formatNullTime(c.LastSyncedAt),
	}
}

func scanCompletion(row scanner) (models.Completion, error) {
	var c models.Completion
	var notes, lastSynced sql.NullString
	var createdAt, updatedAt, status string
	var isDirty int

	err := row.Scan(&c.ID, &c.HabitID, &c.UserID, &c.CompletionDate, &c.CompletedCount, &notes,
		&createdAt, &updatedAt, &isDirty, &status, &lastSynced)
	if err != nil {
		return models.Completion{}, err
	}

	c.Notes = notes.String
	c.IsDirty = isDirty != 0
	c.SyncStatus = constants.SyncStatus(status)
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return models.Completion{}, fmt.Errorf("failed to parse created_at for completion %s: %w", c.ID, err)
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return models.Completion{}, fmt.Errorf("failed to parse updated_at for completion %s: %w", c.ID, err)
	}
	if c.LastSyncedAt, err = parseNullTime(lastSynced); err != nil {
		return models.Completion{}, fmt.Errorf("failed to parse last_synced_at for completion %s: %w", c.ID, err)
	}
	return c, nil
}

func queryCompletions(ctx context.Context, db *sql.DB, query string, args ...any) ([]models.Completion, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	completions := []models.Completion{}
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, err
		}
		completions = append(completions, c)
	}
	return completions, rows.Err()
}

// InsertCompletion is a raw insert; a duplicate (habit, date) is a constraint error
func (s *Store) InsertCompletion(ctx context.Context, c models.Completion) error {
	return s.with(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO habit_completions (`+completionColumns+`) `+completionValues,
			completionArgs(c)...)
		if err != nil {
			return fmt.Errorf("failed to insert completion for habit %s on %s: %w", c.HabitID, c.CompletionDate, err)
		}
		return nil
	})
}

// UpsertCompletion keeps the existing row's id and created_at when the natural key matches
func (s *Store) UpsertCompletion(ctx context.Context, c models.Completion) (models.Completion, error) {
	return s.writeCompletion(ctx, c, `
		completed_count = excluded.completed_count,
		notes = excluded.notes,`)
}

// IncrementCompletion adds delta to the stored count in one statement, clamping
// at zero. A new row starts from max(delta, 0) and existing notes are kept.
func (s *Store) IncrementCompletion(ctx context.Context, c models.Completion, delta int) (models.Completion, error) {
	c.CompletedCount = max(delta, 0)
	return s.writeCompletion(ctx, c, `
		completed_count = max(completed_count + ?, 0),`, delta)
}

func (s *Store) writeCompletion(ctx context.Context, c models.Completion, set string, extra ...any) (models.Completion, error) {
	var stored models.Completion
	err := s.with(func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.ExecContext(ctx, `
			INSERT INTO habit_completions (`+completionColumns+`) `+completionValues+`
			ON CONFLICT(habit_id, completion_date) DO UPDATE SET`+set+`
				updated_at = excluded.updated_at,
				is_dirty = excluded.is_dirty,
				sync_status = excluded.sync_status,
				last_synced_at = excluded.last_synced_at`,
			append(completionArgs(c), extra...)...)
		if err != nil {
			return fmt.Errorf("failed to write completion for habit %s on %s: %w", c.HabitID, c.CompletionDate, err)
		}

		stored, err = scanCompletion(tx.QueryRowContext(ctx, `
			SELECT `+completionColumns+` FROM habit_completions
			WHERE habit_id = ? AND user_id = ? AND completion_date = ?`,
			c.HabitID, c.UserID, c.CompletionDate))
		if err != nil {
			return fmt.Errorf("failed to read back completion: %w", err)
		}
		return tx.Commit()
	})
	return stored, err
}

func (s *Store) GetCompletions(ctx context.Context, userID string, days int) ([]models.Completion, error) {
	query := `SELECT ` + completionColumns + ` FROM habit_completions WHERE user_id = ?`
	args := []any{userID}
	if days > 0 {
		today, err := utils.ParseDate(s.today())
		if err != nil {
			return nil, err
		}
		query += ` AND completion_date >= ?`
		args = append(args, utils.FormatDate(today.AddDate(0, 0, -days)))
	}
	query += ` ORDER BY completion_date DESC, habit_id`

	var completions []models.Completion
	err := s.with(func(db *sql.DB) error {
		var err error
		completions, err = queryCompletions(ctx, db, query, args...)
		return err
	})
	return completions, err
}

func (s *Store) GetCompletionsForHabit(ctx context.Context, habitID string) ([]models.Completion, error) {
	var completions []models.Completion
	err := s.with(func(db *sql.DB) error {
		var err error
		completions, err = queryCompletions(ctx, db, `
			SELECT `+completionColumns+` FROM habit_completions
			WHERE habit_id = ?
			ORDER BY completion_date`, habitID)
		return err
	})
	return completions, err
}

func (s *Store) GetCompletionByDate(ctx context.Context, habitID, userID, date string) (models.Completion, error) {
	var c models.Completion
	err := s.with(func(db *sql.DB) error {
		var err error
		c, err = scanCompletion(db.QueryRowContext(ctx, `
			SELECT `+completionColumns+` FROM habit_completions
			WHERE habit_id = ? AND user_id = ? AND completion_date = ?`, habitID, userID, date))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("completion for habit %s on %s: %w", habitID, date, storage.ErrNotFound)
		}
		return err
	})
	return c, err
}

func (s *Store) GetTodayCompletion(ctx context.Context, habitID, userID string) (models.Completion, error) {
	return s.GetCompletionByDate(ctx, habitID, userID, s.today())
}

func (s *Store) GetUnsyncedCompletions(ctx context.Context, userID string) ([]models.Completion, error) {
	var completions []models.Completion
	err := s.with(func(db *sql.DB) error {
		var err error
		completions, err = queryCompletions(ctx, db, `
			SELECT `+completionColumns+` FROM habit_completions
			WHERE user_id = ? AND (sync_status = ? OR is_dirty = 1)
			ORDER BY completion_date, habit_id`, userID, string(constants.SyncStatusPending))
		return err
	})
	return completions, err
}

// ApplyRemoteCompletion matches on the natural key, so a remote row with a
// different id lands on the local row for the same day
func (s *Store) ApplyRemoteCompletion(ctx context.Context, c models.Completion) (bool, error) {
	now := s.now()
	c.IsDirty = false
	c.SyncStatus = constants.SyncStatusSynced
	c.LastSyncedAt = &now

	var applied bool
	err := s.with(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `
			INSERT INTO habit_completions (`+completionColumns+`) `+completionValues+`
			ON CONFLICT(habit_id, completion_date) DO UPDATE SET
				completed_count = excluded.completed_count,
				notes = excluded.notes,
				updated_at = excluded.updated_at,
				is_dirty = 0,
				sync_status = excluded.sync_status,
				last_synced_at = excluded.last_synced_at
			WHERE habit_completions.is_dirty = 0
				AND habit_completions.updated_at <> excluded.updated_at`,
			completionArgs(c)...)
		if err != nil {
			return fmt.Errorf("failed to apply remote completion for habit %s on %s: %w", c.HabitID, c.CompletionDate, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		applied = n > 0
		return nil
	})
	return applied, err
}
