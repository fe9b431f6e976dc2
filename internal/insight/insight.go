package insight

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Feature names recorded in the ai_calls audit log.
const (
	FeatureWeeklyReview = "weekly_review"
	FeatureAtomicHabit  = "atomic_habit"
	FeatureParseLog     = "nl_log"
)

// Bullet is one rendered tracked day. It serialises as its text; Met
// records whether the day reached the target.
type Bullet struct {
	Text string
	Met  bool
}

func (b Bullet) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Text)
}

// HabitFacts is the verified weekly summary of one habit.
type HabitFacts struct {
	Name         string         `json:"name"`
	Target       int            `json:"target"`
	WeekSeries   map[string]int `json:"week_series"`
	TrackedDates []string       `json:"tracked_dates"`
	TrackedDays  int            `json:"tracked_days"`
	MetDays      int            `json:"met_days"`
	UnderDays    int            `json:"under_days"`
	Last3        map[string]int `json:"last3"`
	Bullets      []Bullet       `json:"bullets"`
}

// Facts is the complete input handed to the text generator. Every number
// and label in it is derived from stored Day Records.
type Facts struct {
	WeekStart  string            `json:"week_start"`
	WeekEnd    string            `json:"week_end"`
	Timezone   string            `json:"-"`
	DateLabels map[string]string `json:"date_labels"`
	Habits     []HabitFacts      `json:"habits"`
	BestDay    *string           `json:"best_day"`
	WorstDay   *string           `json:"worst_day"`
}

// Empty reports whether there is nothing to summarise: no active habits
// or no tracked day across all of them.
func (f *Facts) Empty() bool {
	for _, h := range f.Habits {
		if h.TrackedDays > 0 {
			return false
		}
	}
	return true
}

type Effort string

const (
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
)

type Action struct {
	Title  string   `json:"title"`
	Why    string   `json:"why"`
	Steps  []string `json:"steps"`
	Effort Effort   `json:"effort"`
}

// Payload is the weekly review shown to the user and cached per week.
type Payload struct {
	Wins        []string `json:"wins"`
	Stumbles    []string `json:"stumbles"`
	Patterns    []string `json:"patterns"`
	NextActions []Action `json:"next_actions"`
}

func (p *Payload) IsEmpty() bool {
	return len(p.Wins) == 0 && len(p.Stumbles) == 0 && len(p.Patterns) == 0 && len(p.NextActions) == 0
}

type WeeklyResponse struct {
	Data   *Payload `json:"data"`
	Cached bool     `json:"cached"`
}

// CallRecord is one append-only audit row for an external text-generation call.
type CallRecord struct {
	ID        uuid.UUID      `json:"id"`
	UserID    uuid.UUID      `json:"user_id"`
	Feature   string         `json:"feature"`
	Input     map[string]any `json:"input"`
	Output    map[string]any `json:"output"`
	Error     *string        `json:"error,omitempty"`
	Ms        int            `json:"ms"`
	CreatedAt time.Time      `json:"created_at"`
}
