package insight

import "github.com/google/uuid"

type AtomicRequest struct {
	Text string `json:"text" validate:"required,min=3,max=200"`
}

type AtomicHabit struct {
	StarterGoal string `json:"starter_goal"`
	Cue         string `json:"cue"`
	DurationMin int    `json:"duration_min"`
	Location    string `json:"location"`
	Metric      string `json:"metric"`
}

type ParseLogRequest struct {
	Message string `json:"message" validate:"required,min=3,max=200"`
}

type ParsedLog struct {
	HabitID      *uuid.UUID `json:"habit_id"`
	FallbackName *string    `json:"fallback_name"`
	Count        int        `json:"count"`
	When         string     `json:"when"`
}

type DataResponse[T any] struct {
	Data T `json:"data"`
}
