package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"habitCoachAPI/internal/habit"
)

// streakWindowDays bounds how far back the current streak is walked.
const streakWindowDays = 365

type streakResult struct {
	Current           int
	Longest           int
	LastCompletedDate *string
}

// walkStreak counts consecutive qualifying dates ending at today, stopping
// at the first miss or at the window edge.
func walkStreak(qualifying map[string]bool, today time.Time) int {
	streak := 0
	for i := 0; i < streakWindowDays; i++ {
		d := today.AddDate(0, 0, -i).Format(habit.DateLayout)
		if !qualifying[d] {
			break
		}
		streak++
	}
	return streak
}

// recomputeStreakTx re-derives the materialised streak fields of one habit
// from a fresh read and writes them back. It locks the habit row, so it
// must run inside the caller's transaction.
func recomputeStreakTx(ctx context.Context, q querier, habitID uuid.UUID, today time.Time) (*streakResult, error) {
	var target, longest int
	err := q.QueryRow(ctx,
		`SELECT target_per_day, streak_longest FROM habits WHERE id = $1 FOR UPDATE`,
		habitID,
	).Scan(&target, &longest)
	if err != nil {
		return nil, fmt.Errorf("failed to lock habit for streak: %w", err)
	}
	effective := habit.EffectiveTarget(target)

	from := today.AddDate(0, 0, -(streakWindowDays - 1)).Format(habit.DateLayout)
	to := today.Format(habit.DateLayout)

	rows, err := q.Query(ctx, `
		SELECT to_char(log_date, 'YYYY-MM-DD')
		FROM day_records
		WHERE habit_id = $1
		  AND log_date BETWEEN $2::date AND $3::date
		  AND count >= $4
	`, habitID, from, to, effective)
	if err != nil {
		return nil, fmt.Errorf("failed to load qualifying days: %w", err)
	}
	qualifying := make(map[string]bool)
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan qualifying day: %w", err)
		}
		qualifying[d] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate qualifying days: %w", err)
	}

	res := &streakResult{Current: walkStreak(qualifying, today)}
	res.Longest = max(longest, res.Current)

	err = q.QueryRow(ctx, `
		SELECT to_char(MAX(log_date), 'YYYY-MM-DD')
		FROM day_records
		WHERE habit_id = $1 AND count >= $2
	`, habitID, effective).Scan(&res.LastCompletedDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load last completed date: %w", err)
	}

	_, err = q.Exec(ctx, `
		UPDATE habits
		SET streak_current = $2,
		    streak_longest = $3,
		    last_completed_date = $4::date,
		    updated_at = NOW()
		WHERE id = $1
	`, habitID, res.Current, res.Longest, res.LastCompletedDate)
	if err != nil {
		return nil, fmt.Errorf("failed to update streak: %w", err)
	}
	return res, nil
}
