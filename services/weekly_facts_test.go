package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitCoachAPI/internal/insight"
)

// 2025-03-12 is a Wednesday; its week runs 2025-03-10..2025-03-16.
var midWeek = time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)

func TestWeekBounds(t *testing.T) {
	start, end := weekBounds(midWeek)
	assert.Equal(t, "2025-03-10", start.Format("2006-01-02"))
	assert.Equal(t, "2025-03-16", end.Format("2006-01-02"))

	sunday := time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC)
	start, _ = weekBounds(sunday)
	assert.Equal(t, "2025-03-10", start.Format("2006-01-02"))
}

func TestExtractWeeklyFacts(t *testing.T) {
	habits := []WeeklyHabitLog{
		{Name: "Read", Target: 2, Counts: map[string]int{"2025-03-10": 2, "2025-03-11": 1, "2025-03-13": 3}},
		{Name: "Walk", Target: 0, Counts: map[string]int{"2025-03-11": 1, "2025-03-13": 0, "2025-03-20": 5}},
	}

	f := ExtractWeeklyFacts(midWeek, "Europe/Sofia", habits)

	assert.Equal(t, "2025-03-10", f.WeekStart)
	assert.Equal(t, "2025-03-16", f.WeekEnd)
	assert.Equal(t, "Mon (Mar 10)", f.DateLabels["2025-03-10"])
	require.Len(t, f.Habits, 2)

	read := f.Habits[0]
	assert.Equal(t, 3, read.TrackedDays)
	assert.Equal(t, 2, read.MetDays)
	assert.Equal(t, 1, read.UnderDays)
	assert.Equal(t, []string{"2025-03-10", "2025-03-11", "2025-03-13"}, read.TrackedDates)
	assert.Equal(t, []insight.Bullet{
		{Text: "Read: 2/2 on Mon (Mar 10) (met or above)", Met: true},
		{Text: "Read: 1/2 on Tue (Mar 11) (under by 1)"},
		{Text: "Read: 3/2 on Thu (Mar 13) (met or above)", Met: true},
	}, read.Bullets)
	assert.Len(t, read.WeekSeries, 7)

	walk := f.Habits[1]
	assert.Equal(t, 1, walk.Target, "target below one is treated as one")
	assert.Equal(t, 2, walk.TrackedDays)
	assert.Equal(t, 1, walk.MetDays)
	assert.Equal(t, 1, walk.UnderDays)
	assert.NotContains(t, walk.WeekSeries, "2025-03-20")

	require.NotNil(t, f.BestDay)
	require.NotNil(t, f.WorstDay)
	assert.Equal(t, "2025-03-13", *f.BestDay)
	assert.Equal(t, "2025-03-10", *f.WorstDay, "earliest date wins a tie")
	assert.False(t, f.Empty())
}

func TestExtractWeeklyFactsLast3KeepsMostRecent(t *testing.T) {
	counts := map[string]int{}
	for i := 0; i < 7; i++ {
		counts[midWeek.AddDate(0, 0, i-2).Format("2006-01-02")] = 1
	}
	f := ExtractWeeklyFacts(midWeek, "UTC", []WeeklyHabitLog{{Name: "Stretch", Target: 1, Counts: counts}})

	h := f.Habits[0]
	assert.Len(t, h.Last3, 3)
	assert.Contains(t, h.Last3, "2025-03-16")
	assert.Contains(t, h.Last3, "2025-03-14")
	assert.NotContains(t, h.Last3, "2025-03-13")
}

func TestBestAndWorstDay(t *testing.T) {
	dates := []string{"d1", "d2", "d3"}

	t.Run("best needs a positive total", func(t *testing.T) {
		best, worst := bestAndWorstDay(dates, map[string]bool{"d2": true}, map[string]int{})
		assert.Nil(t, best)
		require.NotNil(t, worst)
		assert.Equal(t, "d2", *worst)
	})

	t.Run("ties go to the earliest date", func(t *testing.T) {
		tracked := map[string]bool{"d1": true, "d2": true, "d3": true}
		best, worst := bestAndWorstDay(dates, tracked, map[string]int{"d1": 1, "d2": 4, "d3": 4})
		assert.Equal(t, "d2", *best)
		assert.Equal(t, "d1", *worst)
	})

	t.Run("every tracked day totals zero", func(t *testing.T) {
		tracked := map[string]bool{"d1": true, "d2": true, "d3": true}
		best, worst := bestAndWorstDay(dates, tracked, map[string]int{"d1": 0, "d2": 0, "d3": 0})
		assert.Nil(t, best)
		require.NotNil(t, worst)
		assert.Equal(t, "d1", *worst)
	})

	t.Run("shared minimum goes to the earliest date", func(t *testing.T) {
		tracked := map[string]bool{"d1": true, "d2": true, "d3": true}
		best, worst := bestAndWorstDay(dates, tracked, map[string]int{"d1": 5, "d2": 2, "d3": 2})
		assert.Equal(t, "d1", *best)
		assert.Equal(t, "d2", *worst)
	})

	t.Run("nothing tracked", func(t *testing.T) {
		best, worst := bestAndWorstDay(dates, map[string]bool{}, map[string]int{})
		assert.Nil(t, best)
		assert.Nil(t, worst)
	})
}

func TestFactsEmpty(t *testing.T) {
	assert.True(t, ExtractWeeklyFacts(midWeek, "UTC", nil).Empty())
	f := ExtractWeeklyFacts(midWeek, "UTC", []WeeklyHabitLog{{Name: "Read", Target: 1}})
	assert.True(t, f.Empty())
}

func TestFallbackPayload(t *testing.T) {
	habits := []WeeklyHabitLog{
		{Name: "Read", Target: 1, Counts: map[string]int{"2025-03-10": 1, "2025-03-11": 2, "2025-03-12": 0}},
		{Name: "Walk", Target: 3, Counts: map[string]int{"2025-03-10": 3, "2025-03-11": 1, "2025-03-12": 2}},
	}
	f := ExtractWeeklyFacts(midWeek, "UTC", habits)

	p := fallbackPayload(f)
	assert.Equal(t, []string{
		"Read: 1/1 on Mon (Mar 10) (met or above)",
		"Read: 2/1 on Tue (Mar 11) (met or above)",
	}, p.Wins)
	assert.Equal(t, []string{
		"Read: 0/1 on Wed (Mar 12) (under by 1)",
		"Walk: 1/3 on Tue (Mar 11) (under by 2)",
		"Walk: 2/3 on Wed (Mar 12) (under by 1)",
	}, p.Stumbles)
	assert.Equal(t, []string{"Best day: Mon (Mar 10).", "Lightest day: Wed (Mar 12)."}, p.Patterns)
	require.Len(t, p.NextActions, 1)
	assert.Equal(t, "Add a reminder or adjust target slightly", p.NextActions[0].Title)
	assert.Equal(t, insight.EffortLow, p.NextActions[0].Effort)
}

func TestFallbackPayloadIgnoresHabitNameText(t *testing.T) {
	f := ExtractWeeklyFacts(midWeek, "UTC", []WeeklyHabitLog{
		{Name: "Stay under by 9pm", Target: 1, Counts: map[string]int{"2025-03-10": 1}},
		{Name: "Log when met or above", Target: 2, Counts: map[string]int{"2025-03-11": 1}},
	})
	p := fallbackPayload(f)
	assert.Equal(t, []string{"Stay under by 9pm: 1/1 on Mon (Mar 10) (met or above)"}, p.Wins)
	assert.Equal(t, []string{"Log when met or above: 1/2 on Tue (Mar 11) (under by 1)"}, p.Stumbles)
}

func TestFallbackPayloadAllMet(t *testing.T) {
	f := ExtractWeeklyFacts(midWeek, "UTC", []WeeklyHabitLog{
		{Name: "Read", Target: 1, Counts: map[string]int{"2025-03-10": 1}},
	})
	p := fallbackPayload(f)
	assert.Empty(t, p.Stumbles)
	assert.Equal(t, "Keep momentum", p.NextActions[0].Title)
}

func TestStartTrackingPayload(t *testing.T) {
	p := startTrackingPayload()
	assert.False(t, p.IsEmpty())
	require.Len(t, p.NextActions, 1)
	assert.Equal(t, "Start tracking today", p.NextActions[0].Title)
	assert.Len(t, p.NextActions[0].Steps, 3)
}

func TestFactsJSONRendersBulletText(t *testing.T) {
	f := ExtractWeeklyFacts(midWeek, "UTC", []WeeklyHabitLog{
		{Name: "Read", Target: 1, Counts: map[string]int{"2025-03-10": 1}},
	})
	raw, err := json.Marshal(f.Habits[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"bullets":["Read: 1/1 on Mon (Mar 10) (met or above)"]`)
}
