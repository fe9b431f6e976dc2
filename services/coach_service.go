package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"habitCoachAPI/internal/apperr"
	"habitCoachAPI/internal/db"
	"habitCoachAPI/internal/habit"
	"habitCoachAPI/internal/logger"
	"habitCoachAPI/internal/metrics"
	"habitCoachAPI/internal/suggestion"
	"habitCoachAPI/internal/user"
)

// maxHabitTarget caps targets raised by accepted suggestions.
const maxHabitTarget = 50

const suggestionColumns = `id, user_id, habit_id, type, code, title, message,
	COALESCE(payload, '{}'::jsonb), status, valid_until, resolved_at, created_at, updated_at`

func scanSuggestion(row pgx.Row) (*suggestion.Suggestion, error) {
	s := &suggestion.Suggestion{}
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.HabitID,
		&s.Type,
		&s.Code,
		&s.Title,
		&s.Message,
		&s.Payload,
		&s.Status,
		&s.ValidUntil,
		&s.ResolvedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

type CoachService struct {
	db  *pgxpool.Pool
	log *logger.Logger
	now func() time.Time
}

func NewCoachService(db *pgxpool.Pool, log *logger.Logger) *CoachService {
	return &CoachService{db: db, log: log.With("service", "coach"), now: time.Now}
}

// Generate evaluates every rule for the user's active habits, inserts the
// candidates that are not already pending and returns all pending
// suggestions, newest first. Running it twice yields the same pending set.
func (s *CoachService) Generate(ctx context.Context, u *user.User) ([]*suggestion.Suggestion, error) {
	now := s.now()
	today := u.Today(now)

	windows, err := s.loadWindows(ctx, u, today)
	if err != nil {
		return nil, err
	}

	err = db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		for _, w := range windows {
			for _, c := range evaluateRules(w) {
				inserted, err := insertPending(ctx, tx, u.ID, &w.Habit.ID, c)
				if err != nil {
					return err
				}
				if inserted {
					metrics.SuggestionsEmitted.WithLabelValues(c.Code).Inc()
					s.log.Debug("suggestion emitted", "user_id", u.ID, "habit_id", w.Habit.ID, "code", c.Code)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.ListPending(ctx, u)
}

// insertPending is an insert-or-ignore against the pending-uniqueness index.
func insertPending(ctx context.Context, tx querier, userID uuid.UUID, habitID *uuid.UUID, c *candidate) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO suggestions (id, user_id, habit_id, type, code, title, message, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending')
		ON CONFLICT DO NOTHING
	`, uuid.New(), userID, habitID, c.Type, c.Code, c.Title, c.Message, c.Payload)
	if err != nil {
		return false, fmt.Errorf("failed to insert suggestion %s: %w", c.Code, err)
	}
	return tag.RowsAffected() == 1, nil
}

// loadWindows builds one rule window per active habit from the trailing
// window of day records and entry times.
func (s *CoachService) loadWindows(ctx context.Context, u *user.User, today time.Time) ([]*ruleWindow, error) {
	rows, err := s.db.Query(ctx, `SELECT `+habitColumns+`
		FROM habits
		WHERE user_id = $1 AND deleted_at IS NULL AND is_archived = FALSE
		ORDER BY created_at ASC`, u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load habits: %w", err)
	}
	habits, err := collectHabits(rows)
	if err != nil {
		return nil, err
	}
	if len(habits) == 0 {
		return nil, nil
	}

	byHabit := make(map[uuid.UUID]*ruleWindow, len(habits))
	windows := make([]*ruleWindow, 0, len(habits))
	for _, h := range habits {
		w := &ruleWindow{Habit: h, Target: h.EffectiveTarget(), Today: today}
		byHabit[h.ID] = w
		windows = append(windows, w)
	}

	since := today.AddDate(0, 0, -coachWindowDays).Format(habit.DateLayout)
	until := today.Format(habit.DateLayout)

	recordRows, err := s.db.Query(ctx, `
		SELECT habit_id, to_char(log_date, 'YYYY-MM-DD'), count
		FROM day_records
		WHERE user_id = $1 AND log_date BETWEEN $2::date AND $3::date
		ORDER BY log_date ASC
	`, u.ID, since, until)
	if err != nil {
		return nil, fmt.Errorf("failed to load day records: %w", err)
	}
	defer recordRows.Close()
	for recordRows.Next() {
		var habitID uuid.UUID
		var dc dayCount
		if err := recordRows.Scan(&habitID, &dc.Date, &dc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan day record: %w", err)
		}
		if w, ok := byHabit[habitID]; ok {
			w.Records = append(w.Records, dc)
		}
	}
	if err := recordRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate day records: %w", err)
	}

	entryRows, err := s.db.Query(ctx, `
		SELECT dr.habit_id, e.logged_at
		FROM entries e
		JOIN day_records dr ON dr.id = e.day_record_id
		WHERE dr.user_id = $1 AND dr.log_date BETWEEN $2::date AND $3::date
	`, u.ID, since, until)
	if err != nil {
		return nil, fmt.Errorf("failed to load entry times: %w", err)
	}
	defer entryRows.Close()
	loc := u.Location()
	for entryRows.Next() {
		var habitID uuid.UUID
		var loggedAt time.Time
		if err := entryRows.Scan(&habitID, &loggedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry time: %w", err)
		}
		if w, ok := byHabit[habitID]; ok {
			w.EntryHours = append(w.EntryHours, loggedAt.In(loc).Hour())
		}
	}
	if err := entryRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entry times: %w", err)
	}

	return windows, nil
}

func (s *CoachService) ListPending(ctx context.Context, u *user.User) ([]*suggestion.Suggestion, error) {
	rows, err := s.db.Query(ctx, `SELECT `+suggestionColumns+`
		FROM suggestions
		WHERE user_id = $1 AND status = 'pending'
		ORDER BY created_at DESC, id DESC`, u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list suggestions: %w", err)
	}
	defer rows.Close()

	out := []*suggestion.Suggestion{}
	for rows.Next() {
		sg, err := scanSuggestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan suggestion: %w", err)
		}
		out = append(out, sg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate suggestions: %w", err)
	}
	return out, nil
}

// Accept applies the suggestion's payload to its habit and resolves it.
func (s *CoachService) Accept(ctx context.Context, u *user.User, id uuid.UUID) (*suggestion.Suggestion, error) {
	return s.resolve(ctx, u, id, suggestion.StatusAccepted)
}

// Dismiss resolves the suggestion without touching the habit.
func (s *CoachService) Dismiss(ctx context.Context, u *user.User, id uuid.UUID) (*suggestion.Suggestion, error) {
	return s.resolve(ctx, u, id, suggestion.StatusDismissed)
}

func (s *CoachService) resolve(ctx context.Context, u *user.User, id uuid.UUID, status suggestion.Status) (*suggestion.Suggestion, error) {
	var resolved *suggestion.Suggestion
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		sg, err := lockPendingSuggestion(ctx, tx, u.ID, id)
		if err != nil {
			return err
		}

		if status == suggestion.StatusAccepted && sg.HabitID != nil {
			if err := s.applyPayload(ctx, tx, u, sg); err != nil {
				return err
			}
		}

		resolved, err = scanSuggestion(tx.QueryRow(ctx, `
			UPDATE suggestions
			SET status = $2, resolved_at = NOW(), updated_at = NOW()
			WHERE id = $1
			RETURNING `+suggestionColumns, sg.ID, status))
		if err != nil {
			return fmt.Errorf("failed to resolve suggestion: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("suggestion resolved", "user_id", u.ID, "suggestion_id", id, "code", resolved.Code, "status", status)
	return resolved, nil
}

func lockPendingSuggestion(ctx context.Context, tx querier, userID, id uuid.UUID) (*suggestion.Suggestion, error) {
	sg, err := scanSuggestion(tx.QueryRow(ctx, `SELECT `+suggestionColumns+` FROM suggestions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("suggestion %s: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load suggestion: %w", err)
	}
	if sg.UserID != userID {
		return nil, fmt.Errorf("suggestion %s: %w", id, apperr.ErrForbidden)
	}
	if sg.Status != suggestion.StatusPending {
		return nil, fmt.Errorf("suggestion %s is %s: %w", id, sg.Status, apperr.ErrNotFound)
	}
	return sg, nil
}

// applyPayload writes suggest_target and suggest_time to the habit. A habit
// deleted since the suggestion was made is skipped.
func (s *CoachService) applyPayload(ctx context.Context, tx querier, u *user.User, sg *suggestion.Suggestion) error {
	h, err := loadOwnedHabit(ctx, tx, u.ID, *sg.HabitID, true)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil
		}
		return err
	}

	p := sg.Payload
	targetChanged := false
	if p.SuggestTarget != nil {
		target := min(max(1, *p.SuggestTarget), maxHabitTarget)
		if target != h.TargetPerDay {
			h.TargetPerDay = target
			targetChanged = true
		}
	}
	if p.SuggestTime != nil && *p.SuggestTime != "" {
		slot := *p.SuggestTime
		h.PreferredTime = &slot
		if sg.Code == suggestion.CodeAddReminderLast3 && h.ReminderTime == nil {
			h.ReminderTime = strPtr(defaultReminderTime(slot))
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE habits
		SET target_per_day = $2, preferred_time = $3, reminder_time = $4, updated_at = NOW()
		WHERE id = $1
	`, h.ID, h.TargetPerDay, h.PreferredTime, h.ReminderTime)
	if err != nil {
		return fmt.Errorf("failed to apply suggestion to habit: %w", err)
	}

	if targetChanged {
		if _, err := recomputeStreakTx(ctx, tx, h.ID, u.Today(s.now())); err != nil {
			return err
		}
	}
	return nil
}
