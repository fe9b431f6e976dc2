package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"habitCoachAPI/internal/apperr"
	"habitCoachAPI/internal/db"
	"habitCoachAPI/internal/habit"
	"habitCoachAPI/internal/logger"
	"habitCoachAPI/internal/user"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const habitColumns = `id, user_id, name, frequency, target_per_day, reminder_time, preferred_time,
	streak_current, streak_longest, to_char(last_completed_date, 'YYYY-MM-DD'),
	is_archived, deleted_at, created_at, updated_at`

func scanHabit(row pgx.Row) (*habit.Habit, error) {
	h := &habit.Habit{}
	err := row.Scan(
		&h.ID,
		&h.UserID,
		&h.Name,
		&h.Frequency,
		&h.TargetPerDay,
		&h.ReminderTime,
		&h.PreferredTime,
		&h.StreakCurrent,
		&h.StreakLongest,
		&h.LastCompletedDate,
		&h.IsArchived,
		&h.DeletedAt,
		&h.CreatedAt,
		&h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func collectHabits(rows pgx.Rows) ([]*habit.Habit, error) {
	defer rows.Close()
	habits := []*habit.Habit{}
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan habit: %w", err)
		}
		habits = append(habits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate habits: %w", err)
	}
	return habits, nil
}

// loadOwnedHabit resolves a habit for userID. Ownership is checked before
// the soft-delete flag so a foreign habit is always Forbidden.
func loadOwnedHabit(ctx context.Context, q querier, userID, habitID uuid.UUID, forUpdate bool) (*habit.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	h, err := scanHabit(q.QueryRow(ctx, query, habitID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("habit %s: %w", habitID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load habit: %w", err)
	}
	if h.UserID != userID {
		return nil, fmt.Errorf("habit %s: %w", habitID, apperr.ErrForbidden)
	}
	if h.DeletedAt != nil {
		return nil, fmt.Errorf("habit %s: %w", habitID, apperr.ErrNotFound)
	}
	return h, nil
}

type HabitService struct {
	db  *pgxpool.Pool
	log *logger.Logger
	now func() time.Time
}

func NewHabitService(db *pgxpool.Pool, log *logger.Logger) *HabitService {
	return &HabitService{db: db, log: log.With("service", "habits"), now: time.Now}
}

func (s *HabitService) List(ctx context.Context, u *user.User, includeArchived bool) ([]*habit.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE user_id = $1 AND deleted_at IS NULL`
	if !includeArchived {
		query += ` AND is_archived = FALSE`
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.Query(ctx, query, u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list habits: %w", err)
	}
	return collectHabits(rows)
}

func (s *HabitService) Get(ctx context.Context, u *user.User, habitID uuid.UUID) (*habit.Habit, error) {
	return loadOwnedHabit(ctx, s.db, u.ID, habitID, false)
}

func (s *HabitService) Create(ctx context.Context, u *user.User, req *habit.CreateHabitRequest) (*habit.Habit, error) {
	return createHabit(ctx, s.db, u.ID, req.Name, req.Frequency, req.TargetPerDay, req.ReminderTime, false)
}

func createHabit(ctx context.Context, q querier, userID uuid.UUID, name, frequency string, target *int, reminder *string, archived bool) (*habit.Habit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if frequency == "" {
		frequency = string(habit.FrequencyDaily)
	}
	targetPerDay := 1
	if target != nil {
		targetPerDay = *target
	}
	if reminder != nil && *reminder == "" {
		reminder = nil
	}

	query := `
		INSERT INTO habits (id, user_id, name, frequency, target_per_day, reminder_time, is_archived)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + habitColumns

	h, err := scanHabit(q.QueryRow(ctx, query,
		uuid.New(), userID, name, frequency, targetPerDay, reminder, archived,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create habit: %w", err)
	}
	return h, nil
}

// Update applies a partial update. A target change recomputes the streak
// in the same transaction.
func (s *HabitService) Update(ctx context.Context, u *user.User, habitID uuid.UUID, req *habit.UpdateHabitRequest) (*habit.Habit, error) {
	var updated *habit.Habit
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		h, err := loadOwnedHabit(ctx, tx, u.ID, habitID, true)
		if err != nil {
			return err
		}

		targetChanged := false
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return apperr.Validation("name must not be empty")
			}
			h.Name = name
		}
		if req.Frequency != nil {
			h.Frequency = habit.Frequency(*req.Frequency)
		}
		if req.TargetPerDay != nil && *req.TargetPerDay != h.TargetPerDay {
			h.TargetPerDay = *req.TargetPerDay
			targetChanged = true
		}
		if req.ReminderTime != nil {
			h.ReminderTime = emptyToNil(*req.ReminderTime)
		}
		if req.PreferredTime != nil {
			h.PreferredTime = emptyToNil(*req.PreferredTime)
		}

		_, err = tx.Exec(ctx, `
			UPDATE habits
			SET name = $2, frequency = $3, target_per_day = $4, reminder_time = $5,
			    preferred_time = $6, updated_at = NOW()
			WHERE id = $1
		`, h.ID, h.Name, h.Frequency, h.TargetPerDay, h.ReminderTime, h.PreferredTime)
		if err != nil {
			return fmt.Errorf("failed to update habit: %w", err)
		}

		if targetChanged {
			if _, err := recomputeStreakTx(ctx, tx, h.ID, u.Today(s.now())); err != nil {
				return err
			}
		}

		updated, err = scanHabit(tx.QueryRow(ctx, `SELECT `+habitColumns+` FROM habits WHERE id = $1`, h.ID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *HabitService) SetArchived(ctx context.Context, u *user.User, habitID uuid.UUID, archived bool) (*habit.Habit, error) {
	if _, err := loadOwnedHabit(ctx, s.db, u.ID, habitID, false); err != nil {
		return nil, err
	}
	h, err := scanHabit(s.db.QueryRow(ctx, `
		UPDATE habits SET is_archived = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+habitColumns, habitID, archived))
	if err != nil {
		return nil, fmt.Errorf("failed to archive habit: %w", err)
	}
	return h, nil
}

// Delete soft-deletes the habit; its history stays for audit.
func (s *HabitService) Delete(ctx context.Context, u *user.User, habitID uuid.UUID) error {
	if _, err := loadOwnedHabit(ctx, s.db, u.ID, habitID, false); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, `UPDATE habits SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1`, habitID)
	if err != nil {
		return fmt.Errorf("failed to delete habit: %w", err)
	}
	return nil
}

// Summary returns (habit, date, count) rows for the user's live habits,
// oldest first. Empty bounds are open.
func (s *HabitService) Summary(ctx context.Context, u *user.User, from, to string) ([]habit.SummaryRow, error) {
	fromArg, err := optionalDate("from", from)
	if err != nil {
		return nil, err
	}
	toArg, err := optionalDate("to", to)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT dr.habit_id, to_char(dr.log_date, 'YYYY-MM-DD'), dr.count
		FROM day_records dr
		JOIN habits h ON h.id = dr.habit_id AND h.deleted_at IS NULL
		WHERE dr.user_id = $1
		  AND ($2::date IS NULL OR dr.log_date >= $2::date)
		  AND ($3::date IS NULL OR dr.log_date <= $3::date)
		ORDER BY dr.log_date ASC, dr.habit_id ASC
	`, u.ID, fromArg, toArg)
	if err != nil {
		return nil, fmt.Errorf("failed to load summary: %w", err)
	}
	defer rows.Close()

	out := []habit.SummaryRow{}
	for rows.Next() {
		var r habit.SummaryRow
		if err := rows.Scan(&r.HabitID, &r.LogDate, &r.Count); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func emptyToNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// optionalDate validates a YYYY-MM-DD query value; "" means unbounded.
func optionalDate(field, value string) (*string, error) {
	if value == "" {
		return nil, nil
	}
	if _, err := time.Parse(habit.DateLayout, value); err != nil {
		return nil, apperr.Validation("%s must be YYYY-MM-DD", field)
	}
	return &value, nil
}

// RecomputeAllStreaks refreshes the streak fields of every live habit
// against its owner's today. Streaks otherwise only move on writes, so a
// habit left alone past midnight keeps yesterday's value until this runs.
func (s *HabitService) RecomputeAllStreaks(ctx context.Context) (int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT h.id, u.timezone
		FROM habits h
		JOIN users u ON u.id = h.user_id
		WHERE h.deleted_at IS NULL
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to list habits: %w", err)
	}
	type target struct {
		habitID uuid.UUID
		owner   user.User
	}
	var targets []target
	for rows.Next() {
		var t target
		if err := rows.Scan(&t.habitID, &t.owner.Timezone); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan habit: %w", err)
		}
		targets = append(targets, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate habits: %w", err)
	}

	now := s.now()
	for _, t := range targets {
		err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
			_, err := recomputeStreakTx(ctx, tx, t.habitID, t.owner.Today(now))
			return err
		})
		if err != nil {
			return 0, err
		}
	}
	s.log.Info("streaks recomputed", "habits", len(targets))
	return len(targets), nil
}
