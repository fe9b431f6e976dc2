package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"habitCoachAPI/internal/habit"
	"habitCoachAPI/internal/logger"
	"habitCoachAPI/internal/user"
)

type habitService interface {
	List(ctx context.Context, u *user.User, includeArchived bool) ([]*habit.Habit, error)
	Get(ctx context.Context, u *user.User, habitID uuid.UUID) (*habit.Habit, error)
	Create(ctx context.Context, u *user.User, req *habit.CreateHabitRequest) (*habit.Habit, error)
	Update(ctx context.Context, u *user.User, habitID uuid.UUID, req *habit.UpdateHabitRequest) (*habit.Habit, error)
	SetArchived(ctx context.Context, u *user.User, habitID uuid.UUID, archived bool) (*habit.Habit, error)
	Delete(ctx context.Context, u *user.User, habitID uuid.UUID) error
}

type HabitHandler struct {
	users  userResolver
	habits habitService
	log    *logger.Logger
}

func NewHabitHandler(users userResolver, habits habitService, log *logger.Logger) *HabitHandler {
	return &HabitHandler{users: users, habits: habits, log: log.With("handler", "habits")}
}

// GET /api/v1/habits?archived=1
func (h *HabitHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	u, ok := currentUser(ctx, w, h.users, h.log)
	if !ok {
		return
	}
	includeArchived := r.URL.Query().Get("archived") == "1"

	habits, err := h.habits.List(ctx, u, includeArchived)
	if err != nil {
		respondWithServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, habits)
}

// POST /api/v1/habits
func (h *HabitHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var req habit.CreateHabitRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	u, ok := currentUser(ctx, w, h.users, h.log)
	if !ok {
		return
	}

	created, err := h.habits.Create(ctx, u, &req)
	if err != nil {
		respondWithServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

// GET /api/v1/habits/{id}
func (h *HabitHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	id, ok := uuidVar(w, r, "id")
	if !ok {
		return
	}
	u, ok := currentUser(ctx, w, h.users, h.log)
	if !ok {
		return
	}

	found, err := h.habits.Get(ctx, u, id)
	if err != nil {
		respondWithServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, found)
}

// PUT /api/v1/habits/{id}
func (h *HabitHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	id, ok := uuidVar(w, r, "id")
	if !ok {
		return
	}
	var req habit.UpdateHabitRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	u, ok := currentUser(ctx, w, h.users, h.log)
	if !ok {
		return
	}

	updated, err := h.habits.Update(ctx, u, id, &req)
	if err != nil {
		respondWithServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

// PATCH /api/v1/habits/{id}/archive
func (h *HabitHandler) Archive(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	id, ok := uuidVar(w, r, "id")
	if !ok {
		return
	}
	var req habit.ArchiveRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	u, ok := currentUser(ctx, w, h.users, h.log)
	if !ok {
		return
	}

	updated, err := h.habits.SetArchived(ctx, u, id, req.Archived)
	if err != nil {
		respondWithServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

// DELETE /api/v1/habits/{id}
func (h *HabitHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	id, ok := uuidVar(w, r, "id")
	if !ok {
		return
	}
	u, ok := currentUser(ctx, w, h.users, h.log)
	if !ok {
		return
	}

	if err := h.habits.Delete(ctx, u, id); err != nil {
		respondWithServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Habit deleted"})
}
