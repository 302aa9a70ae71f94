package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/storage"
)

const habitColumns = `id, user_id, title, icon, description, category, bg_color,
	target_count, target_unit, frequency_type, frequency_days, frequency_count,
	is_active, created_at, updated_at, is_dirty, sync_status, last_synced_at, conflict_data`

func habitArgs(h models.Habit) ([]any, error) {
	days, err := encodeWeekdays(h.FrequencyDays)
	if err != nil {
		return nil, err
	}
	var conflict sql.NullString
	if len(h.ConflictData) > 0 {
		conflict = sql.NullString{String: string(h.ConflictData), Valid: true}
	}
	var count sql.NullInt64
	if h.FrequencyCount > 0 {
		count = sql.NullInt64{Int64: int64(h.FrequencyCount), Valid: true}
	}
	status := h.SyncStatus
	if status == "" {
		status = constants.SyncStatusPending
	}
	return []any{
		h.ID, h.UserID, h.Title, h.Icon, nullString(h.Description), h.Category, h.BgColor,
		h.TargetCount, h.TargetUnit, string(h.FrequencyType), days, count,
		boolToInt(h.IsActive), formatTime(h.CreatedAt), formatTime(h.UpdatedAt),
		boolToInt(h.IsDirty), string(status), formatNullTime(h.LastSyncedAt), conflict,
	}, nil
}

func scanHabit(row scanner) (models.Habit, error) {
	var h models.Habit
	var description, days, lastSynced, conflict sql.NullString
	var count sql.NullInt64
	var frequencyType, status, createdAt, updatedAt string
	var isActive, isDirty int

	err := row.Scan(&h.ID, &h.UserID, &h.Title, &h.Icon, &description, &h.Category, &h.BgColor,
		&h.TargetCount, &h.TargetUnit, &frequencyType, &days, &count,
		&isActive, &createdAt, &updatedAt, &isDirty, &status, &lastSynced, &conflict)
	if err != nil {
		return models.Habit{}, err
	}

	h.Description = description.String
	h.FrequencyType = constants.FrequencyType(frequencyType)
	h.FrequencyCount = int(count.Int64)
	h.IsActive = isActive != 0
	h.IsDirty = isDirty != 0
	h.SyncStatus = constants.SyncStatus(status)
	if conflict.Valid {
		h.ConflictData = json.RawMessage(conflict.String)
	}
	if h.FrequencyDays, err = decodeWeekdays(days); err != nil {
		return models.Habit{}, fmt.Errorf("failed to parse frequency_days for habit %s: %w", h.ID, err)
	}
	if h.CreatedAt, err = parseTime(createdAt); err != nil {
		return models.Habit{}, fmt.Errorf("failed to parse created_at for habit %s: %w", h.ID, err)
	}
	if h.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return models.Habit{}, fmt.Errorf("failed to parse updated_at for habit %s: %w", h.ID, err)
	}
	if h.LastSyncedAt, err = parseNullTime(lastSynced); err != nil {
		return models.Habit{}, fmt.Errorf("failed to parse last_synced_at for habit %s: %w", h.ID, err)
	}
	return h, nil
}

func queryHabits(ctx context.Context, db *sql.DB, query string, args ...any) ([]models.Habit, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	habits := []models.Habit{}
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

// habitUpsert overwrites every mutable column; the where clause guards pulls
func habitUpsert(where string) string {
	return `
		INSERT INTO habits (` + habitColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			title = excluded.title,
			icon = excluded.icon,
			description = excluded.description,
			category = excluded.category,
			bg_color = excluded.bg_color,
			target_count = excluded.target_count,
			target_unit = excluded.target_unit,
			frequency_type = excluded.frequency_type,
			frequency_days = excluded.frequency_days,
			frequency_count = excluded.frequency_count,
			is_active = excluded.is_active,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			is_dirty = excluded.is_dirty,
			sync_status = excluded.sync_status,
			last_synced_at = excluded.last_synced_at,
			conflict_data = excluded.conflict_data ` + where
}

// InsertHabit is an idempotent upsert by id
func (s *Store) InsertHabit(ctx context.Context, habit models.Habit) error {
	args, err := habitArgs(habit)
	if err != nil {
		return err
	}
	return s.with(func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx, habitUpsert(""), args...); err != nil {
			return fmt.Errorf("failed to insert habit %s: %w", habit.ID, err)
		}
		return nil
	})
}

func (s *Store) GetHabit(ctx context.Context, id string) (models.Habit, error) {
	var h models.Habit
	err := s.with(func(db *sql.DB) error {
		var err error
		h, err = scanHabit(db.QueryRowContext(ctx, `SELECT `+habitColumns+` FROM habits WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("habit %s: %w", id, storage.ErrNotFound)
		}
		return err
	})
	return h, err
}

func (s *Store) GetHabits(ctx context.Context, userID string) ([]models.Habit, error) {
	var habits []models.Habit
	err := s.with(func(db *sql.DB) error {
		var err error
		habits, err = queryHabits(ctx, db, `
			SELECT `+habitColumns+` FROM habits
			WHERE user_id = ? AND is_active = 1
			ORDER BY created_at DESC, id`, userID)
		return err
	})
	return habits, err
}

// UpdateHabit applies the non-nil fields of update and returns the stored habit
func (s *Store) UpdateHabit(ctx context.Context, id string, update models.HabitUpdate) (models.Habit, error) {
	var sets []string
	var args []any
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if update.Title != nil {
		add("title", *update.Title)
	}
	if update.Icon != nil {
		add("icon", *update.Icon)
	}
	if update.Description != nil {
		add("description", nullString(*update.Description))
	}
	if update.Category != nil {
		add("category", *update.Category)
	}
	if update.BgColor != nil {
		add("bg_color", *update.BgColor)
	}
	if update.TargetCount != nil {
		add("target_count", *update.TargetCount)
	}
	if update.TargetUnit != nil {
		add("target_unit", *update.TargetUnit)
	}
	if update.FrequencyType != nil {
		add("frequency_type", string(*update.FrequencyType))
	}
	if update.FrequencyDays != nil {
		days, err := encodeWeekdays(*update.FrequencyDays)
		if err != nil {
			return models.Habit{}, err
		}
		add("frequency_days", days)
	}
	if update.FrequencyCount != nil {
		add("frequency_count", sql.NullInt64{Int64: int64(*update.FrequencyCount), Valid: *update.FrequencyCount > 0})
	}
	if update.IsActive != nil {
		add("is_active", boolToInt(*update.IsActive))
	}
	if update.UpdatedAt != nil {
		add("updated_at", formatTime(*update.UpdatedAt))
	}
	if update.IsDirty != nil {
		add("is_dirty", boolToInt(*update.IsDirty))
	}
	if update.SyncStatus != nil {
		add("sync_status", string(*update.SyncStatus))
	}

	if len(sets) > 0 {
		err := s.with(func(db *sql.DB) error {
			res, err := db.ExecContext(ctx,
				"UPDATE habits SET "+strings.Join(sets, ", ")+" WHERE id = ?",
				append(args, id)...)
			if err != nil {
				return fmt.Errorf("failed to update habit %s: %w", id, err)
			}
			return requireRow(res, "habit", id)
		})
		if err != nil {
			return models.Habit{}, err
		}
	}
	return s.GetHabit(ctx, id)
}

func (s *Store) DeleteHabit(ctx context.Context, id string) error {
	return s.with(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `
			UPDATE habits SET is_active = 0, is_dirty = 1, sync_status = ?, updated_at = ?
			WHERE id = ?`, string(constants.SyncStatusPending), s.timestamp(), id)
		if err != nil {
			return fmt.Errorf("failed to delete habit %s: %w", id, err)
		}
		return requireRow(res, "habit", id)
	})
}

func (s *Store) GetUnsyncedHabits(ctx context.Context, userID string) ([]models.Habit, error) {
	var habits []models.Habit
	err := s.with(func(db *sql.DB) error {
		var err error
		habits, err = queryHabits(ctx, db, `
			SELECT `+habitColumns+` FROM habits
			WHERE user_id = ? AND (sync_status = ? OR is_dirty = 1)
			ORDER BY created_at, id`, userID, string(constants.SyncStatusPending))
		return err
	})
	return habits, err
}

func (s *Store) ApplyRemoteHabit(ctx context.Context, habit models.Habit) (bool, error) {
	now := s.now()
	habit.IsDirty = false
	habit.SyncStatus = constants.SyncStatusSynced
	habit.LastSyncedAt = &now
	habit.ConflictData = nil
	args, err := habitArgs(habit)
	if err != nil {
		return false, err
	}

	var applied bool
	err = s.with(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx,
			habitUpsert("WHERE habits.is_dirty = 0 AND habits.updated_at <> excluded.updated_at"), args...)
		if err != nil {
			return fmt.Errorf("failed to apply remote habit %s: %w", habit.ID, err)
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

func (s *Store) SetConflict(ctx context.Context, habitID string, snapshot json.RawMessage) error {
	return s.with(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `
			UPDATE habits SET conflict_data = ?, sync_status = ? WHERE id = ?`,
			nullString(string(snapshot)), string(constants.SyncStatusConflict), habitID)
		if err != nil {
			return fmt.Errorf("failed to set conflict on habit %s: %w", habitID, err)
		}
		return requireRow(res, "habit", habitID)
	})
}

func (s *Store) ClearConflict(ctx context.Context, habitID string) error {
	return s.with(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `
			UPDATE habits
			SET conflict_data = NULL,
			    sync_status = CASE WHEN is_dirty = 1 THEN ? ELSE ? END
			WHERE id = ?`,
			string(constants.SyncStatusPending), string(constants.SyncStatusSynced), habitID)
		if err != nil {
			return fmt.Errorf("failed to clear conflict on habit %s: %w", habitID, err)
		}
		return requireRow(res, "habit", habitID)
	})
}

func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}

func encodeWeekdays(days []time.Weekday) (sql.NullString, error) {
	if len(days) == 0 {
		return sql.NullString{}, nil
	}
	ints := make([]int, len(days))
	for i, d := range days {
		ints[i] = int(d)
	}
	b, err := json.Marshal(ints)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode frequency_days: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeWeekdays(ns sql.NullString) ([]time.Weekday, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var ints []int
	if err := json.Unmarshal([]byte(ns.String), &ints); err != nil {
		return nil, err
	}
	days := make([]time.Weekday, len(ints))
	for i, d := range ints {
		days[i] = time.Weekday(d)
	}
	return days, nil
}
