package services

import (
	"fmt"
	"time"

	"habitCoachAPI/internal/habit"
	"habitCoachAPI/internal/suggestion"
)

// coachWindowDays is how far back the rule engine looks.
const coachWindowDays = 30

type dayCount struct {
	Date  string
	Count int
}

// ruleWindow is everything one habit's rules may look at.
type ruleWindow struct {
	Habit      *habit.Habit
	Target     int
	Records    []dayCount // date ascending
	EntryHours []int      // local hour of each entry in the window
	Today      time.Time
}

type candidate struct {
	Type    suggestion.Type
	Code    string
	Title   string
	Message string
	Payload suggestion.Payload
}

type coachRule func(w *ruleWindow) *candidate

// coachRules run in order; each emits at most one candidate per habit.
var coachRules = []coachRule{
	ruleMissed3Days,
	ruleStreak7,
	ruleMorningShift,
	ruleStreakRecovery,
	ruleUndershoot2of3,
	ruleOvershootToday,
	ruleAddReminder,
}

func evaluateRules(w *ruleWindow) []*candidate {
	var out []*candidate
	for _, rule := range coachRules {
		if c := rule(w); c != nil {
			out = append(out, c)
		}
	}
	return out
}

func lowerTarget(target int) int {
	return max(1, target*4/5)
}

func raiseTarget(target int) int {
	return (target*6 + 4) / 5
}

func intPtr(v int) *int { return &v }
func strPtr(v string) *string { return &v }

// currentRun walks back from today over the window, counting dates with a
// record of count > 0 and stopping at the first date without one.
func currentRun(w *ruleWindow) int {
	done := make(map[string]bool, len(w.Records))
	for _, r := range w.Records {
		if r.Count > 0 {
			done[r.Date] = true
		}
	}
	run := 0
	for i := 0; i < coachWindowDays; i++ {
		if !done[w.Today.AddDate(0, 0, -i).Format(habit.DateLayout)] {
			break
		}
		run++
	}
	return run
}

// longestRun is the longest stretch of count > 0 records on consecutive dates.
func longestRun(records []dayCount) int {
	best, cur := 0, 0
	var prev time.Time
	for _, r := range records {
		d, err := time.Parse(habit.DateLayout, r.Date)
		if err != nil || r.Count <= 0 {
			cur = 0
			continue
		}
		if cur > 0 && prev.AddDate(0, 0, 1).Equal(d) {
			cur++
		} else {
			cur = 1
		}
		prev = d
		best = max(best, cur)
	}
	return best
}

func lastN(records []dayCount, n int) []dayCount {
	if len(records) < n {
		return nil
	}
	return records[len(records)-n:]
}

func ruleMissed3Days(w *ruleWindow) *candidate {
	done := make(map[string]bool, len(w.Records))
	for _, r := range w.Records {
		if r.Count > 0 {
			done[r.Date] = true
		}
	}
	for i := 0; i < 3; i++ {
		if done[w.Today.AddDate(0, 0, -i).Format(habit.DateLayout)] {
			return nil
		}
	}
	return &candidate{
		Type:    suggestion.TypeAdjust,
		Code:    suggestion.CodeMissed3Days,
		Title:   fmt.Sprintf("Let’s make “%s” easier", w.Habit.Name),
		Message: "You’ve missed it 3 days in a row. Want to reduce the daily target or move it earlier?",
		Payload: suggestion.Payload{
			SuggestTarget: intPtr(lowerTarget(w.Target)),
			SuggestTime:   strPtr("morning"),
		},
	}
}

func ruleStreak7(w *ruleWindow) *candidate {
	run := currentRun(w)
	if run < 7 {
		return nil
	}
	return &candidate{
		Type:    suggestion.TypeCongratulate,
		Code:    suggestion.CodeStreak7,
		Title:   fmt.Sprintf("🔥 %d-day streak on “%s”!", run, w.Habit.Name),
		Message: "Amazing consistency! Want to increase the target slightly or keep as is?",
		Payload: suggestion.Payload{SuggestTarget: intPtr(raiseTarget(w.Target))},
	}
}

func ruleMorningShift(w *ruleWindow) *candidate {
	if len(w.EntryHours) < 5 {
		return nil
	}
	sum := 0
	for _, h := range w.EntryHours {
		sum += h
	}
	if sum/len(w.EntryHours) >= 10 {
		return nil
	}
	return &candidate{
		Type:    suggestion.TypeAdjust,
		Code:    suggestion.CodeMorningShift,
		Title:   fmt.Sprintf("“%s” works best in the morning", w.Habit.Name),
		Message: "We noticed you usually complete it before 10 AM. Set it as a morning habit?",
		Payload: suggestion.Payload{SuggestTime: strPtr("morning")},
	}
}

func ruleStreakRecovery(w *ruleWindow) *candidate {
	if currentRun(w) != 0 || longestRun(w.Records) < 5 {
		return nil
	}
	return &candidate{
		Type:    suggestion.TypeEncourage,
		Code:    suggestion.CodeStreakRecovery,
		Title:   fmt.Sprintf("Let’s bounce back on “%s”", w.Habit.Name),
		Message: "You had a great streak recently. Try a 3-day mini-streak to get momentum again?",
		Payload: suggestion.Payload{MiniStreakDays: intPtr(3)},
	}
}

func ruleUndershoot2of3(w *ruleWindow) *candidate {
	last3 := lastN(w.Records, 3)
	if last3 == nil {
		return nil
	}
	under := 0
	for _, r := range last3 {
		if r.Count < w.Target {
			under++
		}
	}
	if under < 2 {
		return nil
	}
	return &candidate{
		Type:    suggestion.TypeAdjust,
		Code:    suggestion.CodeUndershoot2of3,
		Title:   fmt.Sprintf("Make “%s” more achievable", w.Habit.Name),
		Message: "You were below target on 2 of the last 3 days. Want to lower the daily target or add a reminder?",
		Payload: suggestion.Payload{SuggestTarget: intPtr(lowerTarget(w.Target))},
	}
}

func ruleOvershootToday(w *ruleWindow) *candidate {
	today := w.Today.Format(habit.DateLayout)
	for i := len(w.Records) - 1; i >= 0; i-- {
		r := w.Records[i]
		if r.Date != today {
			continue
		}
		if r.Count < raiseTarget(w.Target) {
			return nil
		}
		return &candidate{
			Type:    suggestion.TypeCongratulate,
			Code:    suggestion.CodeOvershootToday20,
			Title:   fmt.Sprintf("Crushing “%s” today!", w.Habit.Name),
			Message: "You exceeded today’s target by over 20%. Want to nudge the target up a bit?",
			Payload: suggestion.Payload{SuggestTarget: intPtr(raiseTarget(w.Target))},
		}
	}
	return nil
}

func ruleAddReminder(w *ruleWindow) *candidate {
	if w.Habit.ReminderTime != nil && *w.Habit.ReminderTime != "" {
		return nil
	}
	last3 := lastN(w.Records, 3)
	if last3 == nil {
		return nil
	}
	missed := false
	for _, r := range last3 {
		if r.Count == 0 {
			missed = true
			break
		}
	}
	if !missed {
		return nil
	}
	return &candidate{
		Type:    suggestion.TypeEncourage,
		Code:    suggestion.CodeAddReminderLast3,
		Title:   fmt.Sprintf("Add a reminder for “%s”", w.Habit.Name),
		Message: "A quick reminder can keep you on track. Set a time to get a gentle nudge each day?",
		Payload: suggestion.Payload{SuggestTime: strPtr("morning")},
	}
}

// defaultReminderTime maps a time-of-day slot to a reminder clock time.
func defaultReminderTime(slot string) string {
	switch slot {
	case "afternoon":
		return "13:00"
	case "evening":
		return "19:00"
	case "night":
		return "21:00"
	default:
		return "08:00"
	}
}
