package habit

import (
	"time"

	"github.com/google/uuid"
)

type CreateHabitRequest struct {
	Name         string  `json:"name" validate:"required,max=120"`
	Frequency    string  `json:"frequency" validate:"omitempty,oneof=daily weekly"`
	TargetPerDay *int    `json:"target_per_day" validate:"omitempty,min=1,max=50"`
	ReminderTime *string `json:"reminder_time" validate:"omitempty,datetime=15:04"`
}

// UpdateHabitRequest is a partial update; nil fields are left untouched.
type UpdateHabitRequest struct {
	Name          *string `json:"name" validate:"omitempty,min=1,max=120"`
	Frequency     *string `json:"frequency" validate:"omitempty,oneof=daily weekly"`
	TargetPerDay  *int    `json:"target_per_day" validate:"omitempty,min=1,max=50"`
	ReminderTime  *string `json:"reminder_time" validate:"omitempty,datetime=15:04"`
	PreferredTime *string `json:"preferred_time" validate:"omitempty,oneof=morning afternoon evening night"`
}

type ArchiveRequest struct {
	Archived bool `json:"archived"`
}

type UpsertLogRequest struct {
	LogDate string `json:"log_date" validate:"required,datetime=2006-01-02"`
	Count   *int   `json:"count" validate:"required,min=0,max=200"`
}

type LogListResponse struct {
	Logs []*DayRecord `json:"logs"`
}

// SyncHabit is a client-side habit snapshot. ID is optional; an unknown or
// foreign ID creates a new habit.
type SyncHabit struct {
	ID           *uuid.UUID `json:"id"`
	Name         string     `json:"name" validate:"required,max=120"`
	Frequency    string     `json:"frequency" validate:"omitempty,oneof=daily weekly"`
	TargetPerDay *int       `json:"target_per_day" validate:"omitempty,min=1,max=50"`
	ReminderTime *string    `json:"reminder_time" validate:"omitempty,datetime=15:04"`
	IsArchived   bool       `json:"is_archived"`
}

type SyncLog struct {
	HabitID uuid.UUID `json:"habit_id" validate:"required"`
	LogDate string    `json:"log_date" validate:"required,datetime=2006-01-02"`
	Count   int       `json:"count" validate:"min=0,max=200"`
}

type SyncPushRequest struct {
	Habits []SyncHabit `json:"habits" validate:"dive"`
	Logs   []SyncLog   `json:"habit_logs" validate:"dive"`
}

type SyncPushResponse struct {
	Habits []*Habit `json:"habits"`
}

type SyncPullResponse struct {
	Habits     []*Habit     `json:"habits"`
	Logs       []*DayRecord `json:"habit_logs"`
	ServerTime time.Time    `json:"serverTime"`
}
