package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/migration"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/remote"
	"github.com/julianstephens/tally/migrations"
)

var _ remote.Store = (*Store)(nil)

// Store connects lazily. A failed connection is not remembered, so the next
// call retries; this lets a store built while offline recover on reconnect.
type Store struct {
	connStr string
	timeout time.Duration

	mu sync.Mutex
	db *sql.DB
}

// New prepares a store for connStr without connecting
func New(connStr string, timeout time.Duration) (*Store, error) {
	if err := ValidateConnString(connStr, true); err != nil {
		return nil, err
	}
	withPath, err := withSearchPath(connStr)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = constants.DefaultRemoteTimeout
	}
	return &Store{connStr: withPath, timeout: timeout}, nil
}

// Open connects, creates the tally schema and applies migrations. It is a
// no-op once connected.
func (s *Store) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open(ctx)
}

func (s *Store) open(ctx context.Context) error {
	if s.db != nil {
		return nil
	}
	db, err := sql.Open("postgres", s.connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		if strings.Contains(err.Error(), "SSL is not enabled on the server") && !hasSSLMode(s.connStr) {
			return fmt.Errorf("failed to connect to database: %w (hint: try adding ?sslmode=disable to your connection string)", err)
		}
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+constants.AppName); err != nil {
		db.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}

	subFS, err := fs.Sub(migrations.FS, "postgres")
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to access postgres migrations: %w", err)
	}
	runner := migration.NewRunner(db, subFS, migration.Postgres)
	if _, err := runner.ApplyMigrations(ctx, func(msg string) { logger.Info(msg) }); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	s.db = db
	return nil
}

// Connected reports whether a connection has been established
func (s *Store) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db != nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// String returns a non-sensitive identifier for status output
func (s *Store) String() string {
	return Redact(s.connStr)
}

func (s *Store) conn(ctx context.Context) (*sql.DB, context.Context, context.CancelFunc, error) {
	s.mu.Lock()
	err := s.open(ctx)
	db := s.db
	s.mu.Unlock()
	if err != nil {
		return nil, ctx, func() {}, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return db, ctx, cancel, nil
}

func (s *Store) UpsertHabit(ctx context.Context, h models.Habit) error {
	db, ctx, cancel, err := s.conn(ctx)
	defer cancel()
	if err != nil {
		return err
	}

	days, err := encodeWeekdays(h.FrequencyDays)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO habits (id, user_id, title, icon, description, category, bg_color,
			target_count, target_unit, frequency_type, frequency_days, frequency_count,
			is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			icon = EXCLUDED.icon,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			bg_color = EXCLUDED.bg_color,
			target_count = EXCLUDED.target_count,
			target_unit = EXCLUDED.target_unit,
			frequency_type = EXCLUDED.frequency_type,
			frequency_days = EXCLUDED.frequency_days,
			frequency_count = EXCLUDED.frequency_count,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at`,
		h.ID, h.UserID, h.Title, h.Icon, nullString(h.Description), h.Category, h.BgColor,
		h.TargetCount, h.TargetUnit, string(h.FrequencyType), days, nullCount(h.FrequencyCount),
		h.IsActive, h.CreatedAt.UTC(), h.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert habit %s: %w", h.ID, err)
	}
	return nil
}

func (s *Store) UpsertCompletion(ctx context.Context, c models.Completion) error {
	db, ctx, cancel, err := s.conn(ctx)
	defer cancel()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO habit_completions (id, habit_id, user_id, completion_date, completed_count,
			notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, habit_id, completion_date) DO UPDATE SET
			completed_count = EXCLUDED.completed_count,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at`,
		c.ID, c.HabitID, c.UserID, c.CompletionDate, c.CompletedCount,
		nullString(c.Notes), c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert completion for habit %s on %s: %w", c.HabitID, c.CompletionDate, err)
	}
	return nil
}

func (s *Store) HabitsUpdatedAfter(ctx context.Context, userID string, after time.Time) ([]models.Habit, error) {
	db, ctx, cancel, err := s.conn(ctx)
	defer cancel()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, title, icon, description, category, bg_color,
			target_count, target_unit, frequency_type, frequency_days, frequency_count,
			is_active, created_at, updated_at
		FROM habits
		WHERE user_id = $1 AND updated_at > $2
		ORDER BY updated_at, id`, userID, after.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query remote habits: %w", err)
	}
	defer rows.Close()

	habits := []models.Habit{}
	for rows.Next() {
		var h models.Habit
		var description, days sql.NullString
		var count sql.NullInt64
		var frequencyType string
		if err := rows.Scan(&h.ID, &h.UserID, &h.Title, &h.Icon, &description, &h.Category, &h.BgColor,
			&h.TargetCount, &h.TargetUnit, &frequencyType, &days, &count,
			&h.IsActive, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, err
		}
		h.Description = description.String
		h.FrequencyType = constants.FrequencyType(frequencyType)
		h.FrequencyCount = int(count.Int64)
		if h.FrequencyDays, err = decodeWeekdays(days); err != nil {
			return nil, fmt.Errorf("failed to parse frequency_days for habit %s: %w", h.ID, err)
		}
		h.CreatedAt = h.CreatedAt.UTC()
		h.UpdatedAt = h.UpdatedAt.UTC()
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

func (s *Store) CompletionsUpdatedAfter(ctx context.Context, userID string, after time.Time) ([]models.Completion, error) {
	db, ctx, cancel, err := s.conn(ctx)
	defer cancel()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, habit_id, user_id, to_char(completion_date, 'YYYY-MM-DD'), completed_count,
			notes, created_at, updated_at
		FROM habit_completions
		WHERE user_id = $1 AND updated_at > $2
		ORDER BY updated_at, id`, userID, after.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query remote completions: %w", err)
	}
	defer rows.Close()

	completions := []models.Completion{}
	for rows.Next() {
		var c models.Completion
		var notes sql.NullString
		if err := rows.Scan(&c.ID, &c.HabitID, &c.UserID, &c.CompletionDate, &c.CompletedCount,
			&notes, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Notes = notes.String
		c.CreatedAt = c.CreatedAt.UTC()
		c.UpdatedAt = c.UpdatedAt.UTC()
		completions = append(completions, c)
	}
	return completions, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullCount(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n > 0}
}

func encodeWeekdays(days []time.Weekday) (sql.NullString, error) {
	if len(days) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(days)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode frequency_days: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeWeekdays(ns sql.NullString) ([]time.Weekday, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var days []time.Weekday
	if err := json.Unmarshal([]byte(ns.String), &days); err != nil {
		return nil, err
	}
	return days, nil
}
