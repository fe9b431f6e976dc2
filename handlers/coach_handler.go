package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"habitCoachAPI/internal/logger"
	"habitCoachAPI/internal/suggestion"
	"habitCoachAPI/internal/user"
)

type coachService interface {
	Generate(ctx context.Context, u *user.User) ([]*suggestion.Suggestion, error)
	Accept(ctx context.Context, u *user.User, id uuid.UUID) (*suggestion.Suggestion, error)
	Dismiss(ctx context.Context, u *user.User, id uuid.UUID) (*suggestion.Suggestion, error)
}

type CoachHandler struct {
	users userResolver
	coach coachService
	log   *logger.Logger
}

func NewCoachHandler(users userResolver, coach coachService, log *logger.Logger) *CoachHandler {
	return &CoachHandler{users: users, coach: coach, log: log.With("handler", "coach")}
}

// GET /api/v1/coach/suggestions
// Evaluates the rules and returns every pending suggestion.
func (h *CoachHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	u, ok := currentUser(ctx, w, h.users, h.log)
	if !ok {
		return
	}

	pending, err := h.coach.Generate(ctx, u)
	if err != nil {
		respondWithServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, suggestion.ListResponse{Data: pending})
}

// POST /api/v1/coach/suggestions/{id}/accept
func (h *CoachHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.coach.Accept, "Suggestion accepted")
}

// POST /api/v1/coach/suggestions/{id}/dismiss
func (h *CoachHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.coach.Dismiss, "Suggestion dismissed")
}

func (h *CoachHandler) resolve(
	w http.ResponseWriter,
	r *http.Request,
	apply func(context.Context, *user.User, uuid.UUID) (*suggestion.Suggestion, error),
	message string,
) {
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

	sg, err := apply(ctx, u, id)
	if err != nil {
		respondWithServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, suggestion.ResolveResponse{Message: message, Suggestion: sg})
}
