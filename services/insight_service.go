package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"habitCoachAPI/internal/apperr"
	"habitCoachAPI/internal/habit"
	"habitCoachAPI/internal/insight"
	"habitCoachAPI/internal/logger"
	"habitCoachAPI/internal/metrics"
	"habitCoachAPI/internal/textgen"
	"habitCoachAPI/internal/user"
)

const (
	weeklyTemperature = 0.2
	atomicTemperature = 0.3
	parseTemperature  = 0.2
	maxNextActions    = 3
)

type InsightService struct {
	store     InsightStore
	generator textgen.Generator
	log       *logger.Logger
	now       func() time.Time
}

func NewInsightService(store InsightStore, generator textgen.Generator, log *logger.Logger) *InsightService {
	return &InsightService{
		store:     store,
		generator: generator,
		log:       log.With("service", "insights"),
		now:       time.Now,
	}
}

// Weekly returns the review for the week containing date (the user's local
// today when empty). A cached review is returned as is unless refresh is
// set. Generator failures never surface; they degrade to a review built
// from the facts alone.
func (s *InsightService) Weekly(ctx context.Context, u *user.User, date string, refresh bool) (*insight.WeeklyResponse, error) {
	day := u.Today(s.now())
	if date != "" {
		parsed, err := time.Parse(habit.DateLayout, date)
		if err != nil {
			return nil, apperr.Validation("date must be YYYY-MM-DD")
		}
		day = parsed
	}
	weekStart, weekEnd := weekBounds(day)
	startISO := weekStart.Format(habit.DateLayout)

	if !refresh {
		cached, err := s.store.CachedReview(ctx, u.ID, startISO)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			metrics.InsightResults.WithLabelValues("cache").Inc()
			return &insight.WeeklyResponse{Data: cached, Cached: true}, nil
		}
	}

	facts, err := s.loadFacts(ctx, u, day, startISO, weekEnd.Format(habit.DateLayout))
	if err != nil {
		return nil, err
	}

	if facts.Empty() {
		payload := startTrackingPayload()
		if err := s.store.SaveReview(ctx, u.ID, startISO, payload, nil); err != nil {
			return nil, err
		}
		metrics.InsightResults.WithLabelValues("empty").Inc()
		return &insight.WeeklyResponse{Data: payload, Cached: false}, nil
	}

	prompt, err := weeklyPrompt(facts)
	if err != nil {
		return nil, err
	}

	raw, ms, callErr := s.complete(ctx, insight.FeatureWeeklyReview, prompt, weeklyTemperature)
	var out map[string]any
	if callErr == nil {
		out, _ = textgen.ParseObject(raw)
	}

	payload := normalizeReview(out)
	source := "model"
	if payload.IsEmpty() {
		payload = fallbackPayload(facts)
		source = "fallback"
	}

	call := &insight.CallRecord{
		UserID:  u.ID,
		Feature: insight.FeatureWeeklyReview,
		Input:   map[string]any{"prompt": prompt},
		Output:  out,
		Ms:      ms,
	}
	if callErr != nil {
		msg := callErr.Error()
		call.Error = &msg
	}

	if err := s.store.SaveReview(ctx, u.ID, startISO, payload, call); err != nil {
		return nil, err
	}

	metrics.InsightResults.WithLabelValues(source).Inc()
	s.log.Info("weekly review composed", "user_id", u.ID, "week_start", startISO, "source", source, "ms", ms)
	return &insight.WeeklyResponse{Data: payload, Cached: false}, nil
}

func (s *InsightService) loadFacts(ctx context.Context, u *user.User, day time.Time, from, to string) (*insight.Facts, error) {
	habits, err := s.store.ActiveHabits(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	counts := map[uuid.UUID]map[string]int{}
	if len(habits) > 0 {
		counts, err = s.store.WeekCounts(ctx, u.ID, from, to)
		if err != nil {
			return nil, err
		}
	}

	logs := make([]WeeklyHabitLog, 0, len(habits))
	for _, h := range habits {
		logs = append(logs, WeeklyHabitLog{Name: h.Name, Target: h.TargetPerDay, Counts: counts[h.ID]})
	}
	tz := u.Timezone
	if tz == "" {
		tz = user.DefaultTimezone
	}
	return ExtractWeeklyFacts(day, tz, logs), nil
}

// complete makes the single bounded generator call and records its latency.
func (s *InsightService) complete(ctx context.Context, feature, prompt string, temperature float64) (string, int, error) {
	start := time.Now()
	raw, err := s.generator.Complete(ctx, prompt, temperature)
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
		s.log.Warn("text generation failed", "feature", feature, "error", err)
	}
	metrics.TextGenDuration.WithLabelValues(feature, status).Observe(elapsed.Seconds())
	return raw, int(elapsed.Milliseconds()), err
}

func weeklyPrompt(f *insight.Facts) (string, error) {
	factsJSON, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("failed to encode facts: %w", err)
	}

	var b strings.Builder
	b.WriteString(`Return STRICT JSON with exactly this schema:

{
"wins": string[],
"stumbles": string[],
"patterns": string[],
"next_actions": [
    { "title": string, "why": string, "steps": string[], "effort": "low"|"medium"|"high" }
]
}

Rules:
- Only refer to "met" or "not met" using tracked days:
- met_days = days with entries count >= target
- under_days = days with entries count < target (including 0)
- Do NOT count untracked days as "not met".
- If a habit has tracked_days = 0, do NOT include it in wins/stumbles.
- "wins": pick up to 3 positive bullets from habits[*].bullets that indicate "met or above", rewrite kindly with habit name + numbers.
- "stumbles": pick up to 3 under-target bullets (those with "under by ..."), rewrite kindly with habit name + numbers.
- "patterns": if best_day or worst_day exist, mention them using date_labels[ISO]. Keep sentences short. Reflect EXACTLY the values of best_day/worst_day from FACTS; if either is null, omit it.
- "next_actions": up to 3 practical actions based on the facts, e.g. suggest reminders if last entries are within 1 of target, or small target adjustment if under_days are prevalent.
- Do NOT invent, alter or recompute any number, date or habit name. Only rephrase the supplied facts.
- Never output a bare ISO date; always use date_labels.

FACTS (do not change numbers/names):
`)
	b.Write(factsJSON)
	fmt.Fprintf(&b, "\n\nUser timezone: %s. Week window: %s..%s (Mon..Sun).", f.Timezone, f.WeekStart, f.WeekEnd)
	return b.String(), nil
}

// normalizeReview coerces model output into the review schema: lists keep
// non-empty trimmed strings, actions are clamped to three and an unknown
// effort becomes low.
func normalizeReview(out map[string]any) *insight.Payload {
	p := &insight.Payload{
		Wins:        textgen.StringList(out["wins"]),
		Stumbles:    textgen.StringList(out["stumbles"]),
		Patterns:    textgen.StringList(out["patterns"]),
		NextActions: []insight.Action{},
	}

	actions, _ := out["next_actions"].([]any)
	for _, a := range actions {
		if len(p.NextActions) == maxNextActions {
			break
		}
		obj, ok := a.(map[string]any)
		if !ok {
			continue
		}
		p.NextActions = append(p.NextActions, insight.Action{
			Title:  strings.TrimSpace(textgen.String(obj["title"])),
			Why:    strings.TrimSpace(textgen.String(obj["why"])),
			Steps:  textgen.StringList(obj["steps"]),
			Effort: normalizeEffort(obj["effort"]),
		})
	}
	return p
}

func normalizeEffort(v any) insight.Effort {
	switch e := insight.Effort(textgen.String(v)); e {
	case insight.EffortLow, insight.EffortMedium, insight.EffortHigh:
		return e
	default:
		return insight.EffortLow
	}
}

// AtomicHabit rewrites a vague goal into a small daily habit. Model failure
// yields a default shape; the call is always audited.
func (s *InsightService) AtomicHabit(ctx context.Context, u *user.User, text string) (*insight.AtomicHabit, error) {
	text = strings.TrimSpace(text)
	if len(text) < 3 || len(text) > 200 {
		return nil, apperr.Validation("text must be between 3 and 200 characters")
	}

	prompt := fmt.Sprintf(`Rewrite a vague goal into a tiny, daily, measurable habit.
Return STRICT JSON:

{
"starter_goal": string,
"cue": string,
"duration_min": number,
"location": string,
"metric": string
}

Example: {"starter_goal": "Read 2 pages", "cue": "After breakfast", "duration_min": 5, "location": "Sofa", "metric": "pages"}

Input: %q
Constraints:
- Keep it small enough to do every day.
- Use simple words.`, text)

	raw, ms, callErr := s.complete(ctx, insight.FeatureAtomicHabit, prompt, atomicTemperature)
	var out map[string]any
	if callErr == nil {
		out, _ = textgen.ParseObject(raw)
	}

	result := &insight.AtomicHabit{
		StarterGoal: strings.TrimSpace(textgen.String(out["starter_goal"])),
		Cue:         strings.TrimSpace(textgen.String(out["cue"])),
		DurationMin: max(1, textgen.Int(out["duration_min"], 5)),
		Location:    strings.TrimSpace(textgen.String(out["location"])),
		Metric:      strings.TrimSpace(textgen.String(out["metric"])),
	}

	call := &insight.CallRecord{
		UserID:  u.ID,
		Feature: insight.FeatureAtomicHabit,
		Input:   map[string]any{"text": text},
		Output: map[string]any{
			"starter_goal": result.StarterGoal,
			"cue":          result.Cue,
			"duration_min": result.DurationMin,
			"location":     result.Location,
			"metric":       result.Metric,
		},
		Ms: ms,
	}
	if callErr != nil {
		msg := callErr.Error()
		call.Error = &msg
	}
	if err := s.store.RecordCall(ctx, call); err != nil {
		return nil, err
	}
	return result, nil
}

var logSlots = map[string]bool{"morning": true, "afternoon": true, "evening": true, "night": true}

// ParseLog maps a free-text message onto one of the user's active habits.
func (s *InsightService) ParseLog(ctx context.Context, u *user.User, message string) (*insight.ParsedLog, error) {
	message = strings.TrimSpace(message)
	if len(message) < 3 || len(message) > 200 {
		return nil, apperr.Validation("message must be between 3 and 200 characters")
	}

	habits, err := s.store.ActiveHabits(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	list := make([]string, 0, len(habits))
	for _, h := range habits {
		list = append(list, fmt.Sprintf("%s:%s", h.ID, h.Name))
	}

	prompt := fmt.Sprintf(`Parse the message into a habit log. Return STRICT JSON:

{
"habit_id_or_name": string,
"count": number,
"when": "morning"|"afternoon"|"evening"|"night"
}

Available habits (id:name): %s

Message: %q
Rules:
- If the name clearly matches one of the available habits, return its ID as habit_id_or_name.
- Else return the best name guess.
- Count must be a positive integer. If none stated, return 1.
- Infer "when" from words like breakfast (morning), lunch (afternoon), dinner (evening), night (night).`,
		strings.Join(list, ", "), message)

	raw, ms, callErr := s.complete(ctx, insight.FeatureParseLog, prompt, parseTemperature)
	var out map[string]any
	if callErr == nil {
		out, _ = textgen.ParseObject(raw)
	}

	field := strings.TrimSpace(textgen.String(out["habit_id_or_name"]))
	when := textgen.String(out["when"])
	if !logSlots[when] {
		when = "evening"
	}
	result := &insight.ParsedLog{
		HabitID: matchHabit(habits, field),
		Count:   max(1, textgen.Int(out["count"], 1)),
		When:    when,
	}
	if result.HabitID == nil && field != "" {
		result.FallbackName = &field
	}

	call := &insight.CallRecord{
		UserID:  u.ID,
		Feature: insight.FeatureParseLog,
		Input:   map[string]any{"message": message},
		Output:  out,
		Ms:      ms,
	}
	if callErr != nil {
		msg := callErr.Error()
		call.Error = &msg
	}
	if err := s.store.RecordCall(ctx, call); err != nil {
		return nil, err
	}
	return result, nil
}

// matchHabit resolves an id or name against habits: exact id first, then
// case-insensitive exact name, then case-insensitive prefix.
func matchHabit(habits []*habit.Habit, field string) *uuid.UUID {
	if field == "" {
		return nil
	}
	if id, err := uuid.Parse(field); err == nil {
		for _, h := range habits {
			if h.ID == id {
				return &h.ID
			}
		}
	}
	lower := strings.ToLower(field)
	for _, h := range habits {
		if strings.ToLower(h.Name) == lower {
			return &h.ID
		}
	}
	for _, h := range habits {
		if strings.HasPrefix(strings.ToLower(h.Name), lower) {
			return &h.ID
		}
	}
	return nil
}
