package services

import (
	"fmt"
	"time"

	"habitCoachAPI/internal/habit"
	"habitCoachAPI/internal/insight"
)

// labelLayout renders dates as "Thu (Aug 28)".
const labelLayout = "Mon (Jan 2)"

// WeeklyHabitLog is one active habit with the counts of its day records
// inside the week, keyed by YYYY-MM-DD.
type WeeklyHabitLog struct {
	Name   string
	Target int
	Counts map[string]int
}

// weekBounds returns the Monday and Sunday of the week containing day.
func weekBounds(day time.Time) (time.Time, time.Time) {
	offset := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 6)
}

// ExtractWeeklyFacts summarises the Monday..Sunday week containing day.
// Only dates with a day record count as tracked; untracked dates never
// contribute to met, under or day totals.
func ExtractWeeklyFacts(day time.Time, timezone string, habits []WeeklyHabitLog) *insight.Facts {
	start, end := weekBounds(day)

	dates := make([]string, 7)
	labels := make(map[string]string, 7)
	for i := range dates {
		d := start.AddDate(0, 0, i)
		dates[i] = d.Format(habit.DateLayout)
		labels[dates[i]] = d.Format(labelLayout)
	}

	facts := &insight.Facts{
		WeekStart:  start.Format(habit.DateLayout),
		WeekEnd:    end.Format(habit.DateLayout),
		Timezone:   timezone,
		DateLabels: labels,
		Habits:     make([]insight.HabitFacts, 0, len(habits)),
	}

	totals := make(map[string]int, 7)
	trackedDay := make(map[string]bool, 7)

	for _, h := range habits {
		target := habit.EffectiveTarget(h.Target)
		hf := insight.HabitFacts{
			Name:         h.Name,
			Target:       target,
			WeekSeries:   make(map[string]int, 7),
			TrackedDates: []string{},
			Last3:        map[string]int{},
			Bullets:      []insight.Bullet{},
		}

		for _, d := range dates {
			cnt, tracked := h.Counts[d]
			hf.WeekSeries[d] = cnt
			if !tracked {
				continue
			}
			hf.TrackedDates = append(hf.TrackedDates, d)
			hf.TrackedDays++
			if cnt >= target {
				hf.MetDays++
			} else {
				hf.UnderDays++
			}
			trackedDay[d] = true
			totals[d] += cnt
		}

		recent := hf.TrackedDates
		if len(recent) > 3 {
			recent = recent[len(recent)-3:]
		}
		for _, d := range recent {
			cnt := h.Counts[d]
			hf.Last3[d] = cnt
			hf.Bullets = append(hf.Bullets, bullet(h.Name, cnt, target, labels[d]))
		}

		facts.Habits = append(facts.Habits, hf)
	}

	facts.BestDay, facts.WorstDay = bestAndWorstDay(dates, trackedDay, totals)
	return facts
}

func bullet(name string, count, target int, label string) insight.Bullet {
	if count >= target {
		return insight.Bullet{Text: fmt.Sprintf("%s: %d/%d on %s (met or above)", name, count, target, label), Met: true}
	}
	return insight.Bullet{Text: fmt.Sprintf("%s: %d/%d on %s (under by %d)", name, count, target, label, target-count)}
}

// bestAndWorstDay scans tracked dates in calendar order so the earliest
// date wins ties. Best needs a strictly positive total; worst may be zero.
func bestAndWorstDay(dates []string, tracked map[string]bool, totals map[string]int) (*string, *string) {
	var best, worst *string
	bestTotal, worstTotal := 0, 0
	for _, d := range dates {
		if !tracked[d] {
			continue
		}
		total := totals[d]
		if total > bestTotal {
			bestTotal = total
			best = strPtr(d)
		}
		if worst == nil || total < worstTotal {
			worstTotal = total
			worst = strPtr(d)
		}
	}
	return best, worst
}

// fallbackPayload builds a review straight from the facts when the model
// output is unusable.
func fallbackPayload(f *insight.Facts) *insight.Payload {
	p := &insight.Payload{
		Wins:        []string{},
		Stumbles:    []string{},
		Patterns:    []string{},
		NextActions: []insight.Action{},
	}

	for _, h := range f.Habits {
		for _, b := range h.Bullets {
			if len(p.Wins) < 2 && b.Met {
				p.Wins = append(p.Wins, b.Text)
			}
		}
	}
	for _, h := range f.Habits {
		for _, b := range h.Bullets {
			if len(p.Stumbles) < 3 && !b.Met {
				p.Stumbles = append(p.Stumbles, b.Text)
			}
		}
	}

	if f.BestDay != nil {
		p.Patterns = append(p.Patterns, fmt.Sprintf("Best day: %s.", labelFor(f, *f.BestDay)))
	}
	if f.WorstDay != nil {
		p.Patterns = append(p.Patterns, fmt.Sprintf("Lightest day: %s.", labelFor(f, *f.WorstDay)))
	}

	hasUnder := false
	for _, h := range f.Habits {
		if h.UnderDays > 0 {
			hasUnder = true
			break
		}
	}
	if hasUnder {
		p.NextActions = append(p.NextActions, insight.Action{
			Title:  "Add a reminder or adjust target slightly",
			Why:    "Some entries were below target.",
			Steps:  []string{"Open the habit", "Enable a reminder at a convenient time", "Try a small target adjustment (10–20%) for 7 days"},
			Effort: insight.EffortLow,
		})
	} else {
		p.NextActions = append(p.NextActions, insight.Action{
			Title:  "Keep momentum",
			Why:    "You have a good baseline this week.",
			Steps:  []string{"Continue logging daily", "Review next week for trends"},
			Effort: insight.EffortLow,
		})
	}
	return p
}

// startTrackingPayload is returned when there is nothing to review yet.
func startTrackingPayload() *insight.Payload {
	return &insight.Payload{
		Wins:     []string{},
		Stumbles: []string{},
		Patterns: []string{},
		NextActions: []insight.Action{{
			Title: "Start tracking today",
			Why:   "No entries this week yet, so we can’t evaluate progress.",
			Steps: []string{
				"Open the app and log your first entry today",
				"Optionally set a daily reminder",
				"Come back tomorrow to see your weekly insights",
			},
			Effort: insight.EffortLow,
		}},
	}
}

func labelFor(f *insight.Facts, date string) string {
	if l, ok := f.DateLabels[date]; ok {
		return l
	}
	return date
}
