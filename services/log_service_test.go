package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"habitCoachAPI/internal/habit"
)

func TestPlanReconcile(t *testing.T) {
	tests := []struct {
		name    string
		current int
		target  int
		want    reconcilePlan
		outcome string
	}{
		{"fill empty day", 0, 3, reconcilePlan{Add: 3}, "added"},
		{"grow", 2, 5, reconcilePlan{Add: 3}, "added"},
		{"shrink", 5, 2, reconcilePlan{Remove: 3}, "removed"},
		{"clear", 4, 0, reconcilePlan{Remove: 4}, "removed"},
		{"no change", 3, 3, reconcilePlan{}, "unchanged"},
		{"negative target clamps to zero", 2, -1, reconcilePlan{Remove: 2}, "removed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := planReconcile(tt.current, tt.target)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.outcome, got.outcome())
		})
	}
}

func TestSelectForRemoval(t *testing.T) {
	base := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	entries := []habit.Entry{
		{ID: 1, LoggedAt: base},
		{ID: 2, LoggedAt: base.Add(time.Hour)},
		{ID: 3, LoggedAt: base.Add(2 * time.Hour)},
		{ID: 4, LoggedAt: base.Add(3 * time.Hour)},
		{ID: 5, LoggedAt: base.Add(4 * time.Hour)},
	}

	t.Run("removes newest first and keeps the oldest", func(t *testing.T) {
		assert.Equal(t, []int64{5, 4, 3}, selectForRemoval(entries, 3))
	})

	t.Run("same instant falls back to insertion order", func(t *testing.T) {
		same := []habit.Entry{
			{ID: 7, LoggedAt: base},
			{ID: 9, LoggedAt: base},
			{ID: 8, LoggedAt: base},
		}
		assert.Equal(t, []int64{9, 8}, selectForRemoval(same, 2))
	})

	t.Run("does not reorder the input", func(t *testing.T) {
		_ = selectForRemoval(entries, 2)
		assert.Equal(t, int64(1), entries[0].ID)
	})

	t.Run("n larger than entries removes all", func(t *testing.T) {
		assert.Len(t, selectForRemoval(entries, 10), 5)
	})

	t.Run("zero removes nothing", func(t *testing.T) {
		assert.Empty(t, selectForRemoval(entries, 0))
	})
}
