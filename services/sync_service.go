package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"habitCoachAPI/internal/apperr"
	"habitCoachAPI/internal/db"
	"habitCoachAPI/internal/habit"
	"habitCoachAPI/internal/logger"
	"habitCoachAPI/internal/user"
)

// SyncService applies offline client changes and serves incremental pulls.
type SyncService struct {
	db   *pgxpool.Pool
	logs *LogService
	log  *logger.Logger
	now  func() time.Time
}

func NewSyncService(db *pgxpool.Pool, logs *LogService, log *logger.Logger) *SyncService {
	return &SyncService{db: db, logs: logs, log: log.With("service", "sync"), now: time.Now}
}

// Push upserts habits and day counts in one transaction. Every count goes
// through the reconciler so entries and streaks stay consistent.
func (s *SyncService) Push(ctx context.Context, u *user.User, req *habit.SyncPushRequest) (*habit.SyncPushResponse, error) {
	resp := &habit.SyncPushResponse{Habits: []*habit.Habit{}}

	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := lockHabitsInOrder(ctx, tx, u, pushHabitIDs(req)); err != nil {
			return err
		}

		resp.Habits = resp.Habits[:0]
		for i := range req.Habits {
			h, err := s.upsertHabit(ctx, tx, u, &req.Habits[i])
			if err != nil {
				return err
			}
			resp.Habits = append(resp.Habits, h)
		}

		for _, l := range req.Logs {
			if _, err := time.Parse(habit.DateLayout, l.LogDate); err != nil {
				return apperr.Validation("log_date must be YYYY-MM-DD")
			}
			if l.Count < 0 || l.Count > habit.MaxDailyCount {
				return apperr.Validation("count must be between 0 and %d", habit.MaxDailyCount)
			}
			h, err := loadOwnedHabit(ctx, tx, u.ID, l.HabitID, true)
			if err != nil {
				return err
			}
			target := l.Count
			if _, err := s.logs.reconcileTx(ctx, tx, u, h, l.LogDate, func(int) int { return target }); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("sync push applied", "user_id", u.ID, "habits", len(req.Habits), "logs", len(req.Logs))
	return resp, nil
}

// pushHabitIDs lists every existing habit a push may touch, deduplicated
// and in ascending order.
func pushHabitIDs(req *habit.SyncPushRequest) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(req.Habits)+len(req.Logs))
	for _, sh := range req.Habits {
		if sh.ID != nil {
			ids = append(ids, *sh.ID)
		}
	}
	for _, l := range req.Logs {
		ids = append(ids, l.HabitID)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	return slices.Compact(ids)
}

// lockHabitsInOrder takes the caller's habit row locks up front in id order,
// so a push never waits on a habit while holding a day record.
func lockHabitsInOrder(ctx context.Context, tx querier, u *user.User, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := tx.Query(ctx, `
		SELECT id FROM habits
		WHERE id = ANY($1) AND user_id = $2
		ORDER BY id
		FOR UPDATE
	`, ids, u.ID)
	if err != nil {
		return fmt.Errorf("failed to lock habits: %w", err)
	}
	rows.Close()
	return rows.Err()
}

// upsertHabit updates the habit when the caller owns it, otherwise creates
// a new one from the snapshot.
func (s *SyncService) upsertHabit(ctx context.Context, tx querier, u *user.User, sh *habit.SyncHabit) (*habit.Habit, error) {
	if sh.ID != nil {
		h, err := loadOwnedHabit(ctx, tx, u.ID, *sh.ID, true)
		switch {
		case err == nil:
			return s.applySnapshot(ctx, tx, u, h, sh)
		case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrForbidden):
		default:
			return nil, err
		}
	}
	return createHabit(ctx, tx, u.ID, sh.Name, sh.Frequency, sh.TargetPerDay, sh.ReminderTime, sh.IsArchived)
}

func (s *SyncService) applySnapshot(ctx context.Context, tx querier, u *user.User, h *habit.Habit, sh *habit.SyncHabit) (*habit.Habit, error) {
	frequency := sh.Frequency
	if frequency == "" {
		frequency = string(habit.FrequencyDaily)
	}
	target := 1
	if sh.TargetPerDay != nil {
		target = *sh.TargetPerDay
	}
	reminder := h.ReminderTime
	if sh.ReminderTime != nil {
		reminder = emptyToNil(*sh.ReminderTime)
	}

	_, err := tx.Exec(ctx, `
		UPDATE habits
		SET name = $2, frequency = $3, target_per_day = $4, reminder_time = $5,
		    is_archived = $6, updated_at = NOW()
		WHERE id = $1
	`, h.ID, sh.Name, frequency, target, reminder, sh.IsArchived)
	if err != nil {
		return nil, fmt.Errorf("failed to sync habit: %w", err)
	}

	if target != h.TargetPerDay {
		if _, err := recomputeStreakTx(ctx, tx, h.ID, u.Today(s.now())); err != nil {
			return nil, err
		}
	}
	return scanHabit(tx.QueryRow(ctx, `SELECT `+habitColumns+` FROM habits WHERE id = $1`, h.ID))
}

// Pull returns habits and day records changed at or after since; an empty
// since returns everything. Deleted habits are included so clients can
// drop them.
func (s *SyncService) Pull(ctx context.Context, u *user.User, since string) (*habit.SyncPullResponse, error) {
	var sinceArg *time.Time
	if since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return nil, apperr.Validation("lastSyncAt must be an RFC 3339 timestamp")
		}
		sinceArg = &t
	}
	serverTime := s.now().UTC()

	rows, err := s.db.Query(ctx, `SELECT `+habitColumns+`
		FROM habits
		WHERE user_id = $1 AND ($2::timestamptz IS NULL OR updated_at >= $2::timestamptz)
		ORDER BY updated_at ASC`, u.ID, sinceArg)
	if err != nil {
		return nil, fmt.Errorf("failed to pull habits: %w", err)
	}
	habits, err := collectHabits(rows)
	if err != nil {
		return nil, err
	}

	logRows, err := s.db.Query(ctx, `
		SELECT id, habit_id, user_id, to_char(log_date, 'YYYY-MM-DD'), count, created_at, updated_at
		FROM day_records
		WHERE user_id = $1 AND ($2::timestamptz IS NULL OR updated_at >= $2::timestamptz)
		ORDER BY log_date ASC
	`, u.ID, sinceArg)
	if err != nil {
		return nil, fmt.Errorf("failed to pull logs: %w", err)
	}
	logs, err := collectDayRecords(logRows)
	if err != nil {
		return nil, err
	}

	return &habit.SyncPullResponse{Habits: habits, Logs: logs, ServerTime: serverTime}, nil
}
