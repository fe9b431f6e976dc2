package habit

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// MaxDailyCount bounds a single day's count.
const MaxDailyCount = 200

type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

type Habit struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	UserID            uuid.UUID  `json:"user_id" db:"user_id"`
	Name              string     `json:"name" db:"name"`
	Frequency         Frequency  `json:"frequency" db:"frequency"`
	TargetPerDay      int        `json:"target_per_day" db:"target_per_day"`
	ReminderTime      *string    `json:"reminder_time,omitempty" db:"reminder_time"`
	PreferredTime     *string    `json:"preferred_time,omitempty" db:"preferred_time"`
	StreakCurrent     int        `json:"streak_current" db:"streak_current"`
	StreakLongest     int        `json:"streak_longest" db:"streak_longest"`
	LastCompletedDate *string    `json:"last_completed_date,omitempty" db:"last_completed_date"`
	IsArchived        bool       `json:"is_archived" db:"is_archived"`
	DeletedAt         *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// EffectiveTarget is the count a day needs to qualify; a stored target
// below 1 is treated as 1.
func (h *Habit) EffectiveTarget() int {
	return EffectiveTarget(h.TargetPerDay)
}

func EffectiveTarget(target int) int {
	if target < 1 {
		return 1
	}
	return target
}

// DayRecord is the per-habit, per-date aggregate. Count always equals the
// number of entries attached to it once a transaction commits.
type DayRecord struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	HabitID   uuid.UUID   `json:"habit_id" db:"habit_id"`
	UserID    uuid.UUID   `json:"user_id" db:"user_id"`
	LogDate   string      `json:"log_date" db:"log_date"`
	Count     int         `json:"count" db:"count"`
	Entries   []time.Time `json:"entries,omitempty"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// Entry is one timestamped completion event. ID is assigned in insertion
// order and breaks ties between entries logged at the same instant.
type Entry struct {
	ID          int64     `json:"id" db:"id"`
	DayRecordID uuid.UUID `json:"day_record_id" db:"day_record_id"`
	LoggedAt    time.Time `json:"logged_at" db:"logged_at"`
}

// SummaryRow is one (habit, date, count) triple of the analytics summary.
type SummaryRow struct {
	HabitID uuid.UUID `json:"habit_id"`
	LogDate string    `json:"log_date"`
	Count   int       `json:"count"`
}
