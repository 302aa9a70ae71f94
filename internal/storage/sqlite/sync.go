package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/storage"
)

func tableName(table storage.Table) (string, error) {
	switch table {
	case storage.TableHabits, storage.TableCompletions:
		return string(table), nil
	default:
		return "", fmt.Errorf("unknown table %q", table)
	}
}

func (s *Store) MarkAsSynced(ctx context.Context, table storage.Table, id string, version time.Time) error {
	name, err := tableName(table)
	if err != nil {
		return err
	}

	query := `UPDATE ` + name + ` SET is_dirty = 0, sync_status = ?, last_synced_at = ? WHERE id = ?`
	args := []any{string(constants.SyncStatusSynced), s.timestamp(), id}
	if !version.IsZero() {
		// A write made while the push was in flight keeps the row dirty
		query += ` AND updated_at = ?`
		args = append(args, formatTime(version))
	}

	return s.with(func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to mark %s %s as synced: %w", name, id, err)
		}
		return nil
	})
}

func (s *Store) MarkSyncError(ctx context.Context, table storage.Table, id string) error {
	name, err := tableName(table)
	if err != nil {
		return err
	}
	return s.with(func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx,
			`UPDATE `+name+` SET sync_status = ?, is_dirty = 1 WHERE id = ?`,
			string(constants.SyncStatusError), id); err != nil {
			return fmt.Errorf("failed to mark %s %s as errored: %w", name, id, err)
		}
		return nil
	})
}

func (s *Store) CountUnsynced(ctx context.Context, userID string) (storage.UnsyncedCounts, error) {
	var counts storage.UnsyncedCounts
	err := s.with(func(db *sql.DB) error {
		row := db.QueryRowContext(ctx, `
			SELECT
				(SELECT count(*) FROM habits WHERE user_id = ? AND (sync_status = 'pending' OR is_dirty = 1)),
				(SELECT count(*) FROM habit_completions WHERE user_id = ? AND (sync_status = 'pending' OR is_dirty = 1)),
				(SELECT count(*) FROM habits WHERE user_id = ? AND sync_status = 'conflict'),
				(SELECT count(*) FROM habits WHERE user_id = ? AND sync_status = 'error')
					+ (SELECT count(*) FROM habit_completions WHERE user_id = ? AND sync_status = 'error')`,
			userID, userID, userID, userID, userID)
		return row.Scan(&counts.Habits, &counts.Completions, &counts.Conflicts, &counts.Errors)
	})
	return counts, err
}
