package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWalkStreak(t *testing.T) {
	today := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	t.Run("today missing breaks the streak", func(t *testing.T) {
		q := map[string]bool{"2025-03-09": true, "2025-03-08": true}
		assert.Equal(t, 0, walkStreak(q, today))
	})

	t.Run("counts back to the first gap", func(t *testing.T) {
		q := map[string]bool{
			"2025-03-10": true,
			"2025-03-09": true,
			"2025-03-07": true,
		}
		assert.Equal(t, 2, walkStreak(q, today))
	})

	t.Run("crosses month boundary", func(t *testing.T) {
		q := map[string]bool{}
		day := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 4; i++ {
			q[day.AddDate(0, 0, -i).Format("2006-01-02")] = true
		}
		assert.Equal(t, 4, walkStreak(q, day))
	})

	t.Run("stops at window edge", func(t *testing.T) {
		q := map[string]bool{}
		for i := 0; i < streakWindowDays+10; i++ {
			q[today.AddDate(0, 0, -i).Format("2006-01-02")] = true
		}
		assert.Equal(t, streakWindowDays, walkStreak(q, today))
	})
}
