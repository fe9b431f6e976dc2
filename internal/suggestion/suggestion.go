package suggestion

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeEncourage    Type = "encourage"
	TypeAdjust       Type = "adjust"
	TypeCongratulate Type = "congratulate"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusDismissed Status = "dismissed"
)

// Rule codes are stable identifiers; clients key UI copy on them.
const (
	CodeMissed3Days      = "missed_3_days"
	CodeStreak7          = "streak_7"
	CodeMorningShift     = "morning_shift"
	CodeStreakRecovery   = "streak_recovery"
	CodeUndershoot2of3   = "undershoot_2of3"
	CodeOvershootToday20 = "overshoot_today_20"
	CodeAddReminderLast3 = "add_reminder_last3"
)

// Payload carries the optional effect applied on accept.
type Payload struct {
	SuggestTarget  *int    `json:"suggest_target,omitempty"`
	SuggestTime    *string `json:"suggest_time,omitempty"`
	MiniStreakDays *int    `json:"mini_streak_days,omitempty"`
}

type Suggestion struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	UserID     uuid.UUID  `json:"user_id" db:"user_id"`
	HabitID    *uuid.UUID `json:"habit_id,omitempty" db:"habit_id"`
	Type       Type       `json:"type" db:"type"`
	Code       string     `json:"code" db:"code"`
	Title      string     `json:"title" db:"title"`
	Message    string     `json:"message" db:"message"`
	Payload    Payload    `json:"payload" db:"payload"`
	Status     Status     `json:"status" db:"status"`
	ValidUntil *time.Time `json:"valid_until,omitempty" db:"valid_until"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

type ListResponse struct {
	Data []*Suggestion `json:"data"`
}

type ResolveResponse struct {
	Message    string      `json:"message"`
	Suggestion *Suggestion `json:"suggestion"`
}
