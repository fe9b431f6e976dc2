package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"habitCoachAPI/internal/db"
	"habitCoachAPI/internal/habit"
	"habitCoachAPI/internal/insight"
)

// InsightStore is the persistence the insight composer needs.
type InsightStore interface {
	ActiveHabits(ctx context.Context, userID uuid.UUID) ([]*habit.Habit, error)
	// WeekCounts returns day record counts per habit between from and to inclusive.
	WeekCounts(ctx context.Context, userID uuid.UUID, from, to string) (map[uuid.UUID]map[string]int, error)
	// CachedReview returns nil when no review is cached for the week.
	CachedReview(ctx context.Context, userID uuid.UUID, weekStart string) (*insight.Payload, error)
	// SaveReview upserts the cached review and, when call is non-nil,
	// appends the audit row in the same transaction.
	SaveReview(ctx context.Context, userID uuid.UUID, weekStart string, payload *insight.Payload, call *insight.CallRecord) error
	RecordCall(ctx context.Context, call *insight.CallRecord) error
}

type pgInsightStore struct {
	db *pgxpool.Pool
}

func NewInsightStore(db *pgxpool.Pool) InsightStore {
	return &pgInsightStore{db: db}
}

func (s *pgInsightStore) ActiveHabits(ctx context.Context, userID uuid.UUID) ([]*habit.Habit, error) {
	rows, err := s.db.Query(ctx, `SELECT `+habitColumns+`
		FROM habits
		WHERE user_id = $1 AND deleted_at IS NULL AND is_archived = FALSE
		ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active habits: %w", err)
	}
	return collectHabits(rows)
}

func (s *pgInsightStore) WeekCounts(ctx context.Context, userID uuid.UUID, from, to string) (map[uuid.UUID]map[string]int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT habit_id, to_char(log_date, 'YYYY-MM-DD'), count
		FROM day_records
		WHERE user_id = $1 AND log_date BETWEEN $2::date AND $3::date
	`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load week records: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]map[string]int)
	for rows.Next() {
		var habitID uuid.UUID
		var date string
		var count int
		if err := rows.Scan(&habitID, &date, &count); err != nil {
			return nil, fmt.Errorf("failed to scan week record: %w", err)
		}
		if out[habitID] == nil {
			out[habitID] = make(map[string]int)
		}
		out[habitID][date] = count
	}
	return out, rows.Err()
}

func (s *pgInsightStore) CachedReview(ctx context.Context, userID uuid.UUID, weekStart string) (*insight.Payload, error) {
	var p insight.Payload
	err := s.db.QueryRow(ctx, `
		SELECT payload FROM weekly_reviews WHERE user_id = $1 AND week_start = $2::date
	`, userID, weekStart).Scan(&p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load cached review: %w", err)
	}
	return &p, nil
}

func (s *pgInsightStore) SaveReview(ctx context.Context, userID uuid.UUID, weekStart string, payload *insight.Payload, call *insight.CallRecord) error {
	return db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO weekly_reviews (id, user_id, week_start, payload)
			VALUES ($1, $2, $3::date, $4)
			ON CONFLICT (user_id, week_start)
			DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()
		`, uuid.New(), userID, weekStart, payload)
		if err != nil {
			return fmt.Errorf("failed to cache weekly review: %w", err)
		}
		if call == nil {
			return nil
		}
		return insertCall(ctx, tx, call)
	})
}

func (s *pgInsightStore) RecordCall(ctx context.Context, call *insight.CallRecord) error {
	return insertCall(ctx, s.db, call)
}

// insertCall appends to the audit log; rows are never updated.
func insertCall(ctx context.Context, q querier, call *insight.CallRecord) error {
	if call.ID == uuid.Nil {
		call.ID = uuid.New()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO ai_calls (id, user_id, feature, input, output, error, ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, call.ID, call.UserID, call.Feature, call.Input, call.Output, call.Error, call.Ms)
	if err != nil {
		return fmt.Errorf("failed to record %s call: %w", call.Feature, err)
	}
	return nil
}
