package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"habitCoachAPI/internal/apperr"
	"habitCoachAPI/internal/db"
	"habitCoachAPI/internal/habit"
	"habitCoachAPI/internal/logger"
	"habitCoachAPI/internal/metrics"
	"habitCoachAPI/internal/user"
)

// reconcilePlan is the entry mutation that brings a day to its target.
type reconcilePlan struct {
	Add    int
	Remove int
}

func (p reconcilePlan) outcome() string {
	switch {
	case p.Add > 0:
		return "added"
	case p.Remove > 0:
		return "removed"
	default:
		return "unchanged"
	}
}

// planReconcile computes the entry delta between current and target; a
// negative target is treated as zero.
func planReconcile(current, target int) reconcilePlan {
	if target < 0 {
		target = 0
	}
	switch {
	case target > current:
		return reconcilePlan{Add: target - current}
	case target < current:
		return reconcilePlan{Remove: current - target}
	default:
		return reconcilePlan{}
	}
}

// selectForRemoval picks the n most recent entries, newest first, with the
// higher insertion id winning a same-instant tie.
func selectForRemoval(entries []habit.Entry, n int) []int64 {
	if n <= 0 {
		return nil
	}
	sorted := make([]habit.Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].LoggedAt.Equal(sorted[j].LoggedAt) {
			return sorted[i].LoggedAt.After(sorted[j].LoggedAt)
		}
		return sorted[i].ID > sorted[j].ID
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	ids := make([]int64, 0, n)
	for _, e := range sorted[:n] {
		ids = append(ids, e.ID)
	}
	return ids
}

type LogService struct {
	db  *pgxpool.Pool
	log *logger.Logger
	now func() time.Time
}

func NewLogService(db *pgxpool.Pool, log *logger.Logger) *LogService {
	return &LogService{db: db, log: log.With("service", "logs"), now: time.Now}
}

// Reconcile sets the day's count for a habit by adding or removing entries
// so that the entry count equals target. The streak is recomputed in the
// same transaction.
func (s *LogService) Reconcile(ctx context.Context, u *user.User, habitID uuid.UUID, date string, target int) (*habit.DayRecord, error) {
	if _, err := time.Parse(habit.DateLayout, date); err != nil {
		return nil, apperr.Validation("log_date must be YYYY-MM-DD")
	}
	if target > habit.MaxDailyCount {
		return nil, apperr.Validation("count must be between 0 and %d", habit.MaxDailyCount)
	}

	var record *habit.DayRecord
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		h, err := loadOwnedHabit(ctx, tx, u.ID, habitID, true)
		if err != nil {
			return err
		}
		record, err = s.reconcileTx(ctx, tx, u, h, date, func(int) int { return target })
		return err
	})
	if err != nil {
		metrics.Reconciliations.WithLabelValues("error").Inc()
		return nil, err
	}
	return record, nil
}

// ToggleToday flips the user's local today between done and empty: a day
// at or above target loses all entries, anything else is filled to target.
func (s *LogService) ToggleToday(ctx context.Context, u *user.User, habitID uuid.UUID) (*habit.DayRecord, error) {
	today := u.Today(s.now()).Format(habit.DateLayout)

	var record *habit.DayRecord
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		h, err := loadOwnedHabit(ctx, tx, u.ID, habitID, true)
		if err != nil {
			return err
		}
		target := h.EffectiveTarget()
		record, err = s.reconcileTx(ctx, tx, u, h, today, func(current int) int {
			if current >= target {
				return 0
			}
			return target
		})
		return err
	})
	if err != nil {
		metrics.Reconciliations.WithLabelValues("error").Inc()
		return nil, err
	}
	return record, nil
}

// reconcileTx locks the (habit, date) record, applies the entry plan for the
// target chosen from the current entry count, writes the aggregate back and
// recomputes the streak. The caller must already hold the habit row lock:
// habit before day record is the only lock order.
func (s *LogService) reconcileTx(ctx context.Context, tx querier, u *user.User, h *habit.Habit, date string, targetFor func(current int) int) (*habit.DayRecord, error) {
	now := s.now()

	record, err := lockDayRecord(ctx, tx, h, date)
	if err != nil {
		return nil, err
	}

	entries, err := loadEntries(ctx, tx, record.ID)
	if err != nil {
		return nil, err
	}

	plan := planReconcile(len(entries), targetFor(len(entries)))
	if plan.Add > 0 {
		_, err := tx.Exec(ctx, `
			INSERT INTO entries (day_record_id, logged_at)
			SELECT $1::uuid, $2::timestamptz FROM generate_series(1, $3::int)
		`, record.ID, now, plan.Add)
		if err != nil {
			return nil, fmt.Errorf("failed to add entries: %w", err)
		}
	}
	if plan.Remove > 0 {
		ids := selectForRemoval(entries, plan.Remove)
		if _, err := tx.Exec(ctx, `DELETE FROM entries WHERE id = ANY($1)`, ids); err != nil {
			return nil, fmt.Errorf("failed to remove entries: %w", err)
		}
	}

	err = tx.QueryRow(ctx, `
		UPDATE day_records
		SET count = (SELECT COUNT(*) FROM entries WHERE day_record_id = $1),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING count, updated_at
	`, record.ID).Scan(&record.Count, &record.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update day count: %w", err)
	}

	if _, err := recomputeStreakTx(ctx, tx, h.ID, u.Today(now)); err != nil {
		return nil, err
	}

	metrics.Reconciliations.WithLabelValues(plan.outcome()).Inc()
	s.log.Debug("day reconciled",
		"habit_id", h.ID,
		"log_date", date,
		"added", plan.Add,
		"removed", plan.Remove,
		"count", record.Count,
	)
	return record, nil
}

// lockDayRecord creates the (habit, date) record if missing and returns it
// locked for the rest of the transaction.
func lockDayRecord(ctx context.Context, tx querier, h *habit.Habit, date string) (*habit.DayRecord, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO day_records (id, habit_id, user_id, log_date, count)
		VALUES ($1, $2, $3, $4::date, 0)
		ON CONFLICT (habit_id, log_date) DO NOTHING
	`, uuid.New(), h.ID, h.UserID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure day record: %w", err)
	}

	record := &habit.DayRecord{HabitID: h.ID, UserID: h.UserID}
	err = tx.QueryRow(ctx, `
		SELECT id, to_char(log_date, 'YYYY-MM-DD'), count, created_at, updated_at
		FROM day_records
		WHERE habit_id = $1 AND log_date = $2::date
		FOR UPDATE
	`, h.ID, date).Scan(&record.ID, &record.LogDate, &record.Count, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to lock day record: %w", err)
	}
	return record, nil
}

func loadEntries(ctx context.Context, q querier, recordID uuid.UUID) ([]habit.Entry, error) {
	rows, err := q.Query(ctx, `SELECT id, day_record_id, logged_at FROM entries WHERE day_record_id = $1`, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}
	defer rows.Close()

	var entries []habit.Entry
	for rows.Next() {
		var e habit.Entry
		if err := rows.Scan(&e.ID, &e.DayRecordID, &e.LoggedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListLogs returns the habit's day records in range, newest first. With
// includeEntries each record carries its entry times, oldest first, and a
// record whose count disagrees with its entries is reported as an
// integrity violation.
func (s *LogService) ListLogs(ctx context.Context, u *user.User, habitID uuid.UUID, from, to string, includeEntries bool) ([]*habit.DayRecord, error) {
	if _, err := loadOwnedHabit(ctx, s.db, u.ID, habitID, false); err != nil {
		return nil, err
	}
	fromArg, err := optionalDate("from", from)
	if err != nil {
		return nil, err
	}
	toArg, err := optionalDate("to", to)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, habit_id, user_id, to_char(log_date, 'YYYY-MM-DD'), count, created_at, updated_at
		FROM day_records
		WHERE habit_id = $1
		  AND ($2::date IS NULL OR log_date >= $2::date)
		  AND ($3::date IS NULL OR log_date <= $3::date)
		ORDER BY log_date DESC
	`, habitID, fromArg, toArg)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	records, err := collectDayRecords(rows)
	if err != nil {
		return nil, err
	}
	if !includeEntries || len(records) == 0 {
		return records, nil
	}

	byID := make(map[uuid.UUID]*habit.DayRecord, len(records))
	ids := make([]uuid.UUID, 0, len(records))
	for _, r := range records {
		r.Entries = []time.Time{}
		byID[r.ID] = r
		ids = append(ids, r.ID)
	}

	entryRows, err := s.db.Query(ctx, `
		SELECT day_record_id, logged_at
		FROM entries
		WHERE day_record_id = ANY($1)
		ORDER BY logged_at ASC, id ASC
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}
	defer entryRows.Close()
	for entryRows.Next() {
		var recordID uuid.UUID
		var loggedAt time.Time
		if err := entryRows.Scan(&recordID, &loggedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		if r, ok := byID[recordID]; ok {
			r.Entries = append(r.Entries, loggedAt)
		}
	}
	if err := entryRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}

	for _, r := range records {
		if len(r.Entries) != r.Count {
			s.log.Error("day record count disagrees with entries",
				"day_record_id", r.ID,
				"habit_id", r.HabitID,
				"log_date", r.LogDate,
				"count", r.Count,
				"entries", len(r.Entries),
			)
			return nil, fmt.Errorf("day record %s: %w", r.ID, apperr.ErrIntegrity)
		}
	}
	return records, nil
}

func collectDayRecords(rows pgx.Rows) ([]*habit.DayRecord, error) {
	defer rows.Close()
	records := []*habit.DayRecord{}
	for rows.Next() {
		r := &habit.DayRecord{}
		if err := rows.Scan(&r.ID, &r.HabitID, &r.UserID, &r.LogDate, &r.Count, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan day record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate day records: %w", err)
	}
	return records, nil
}
