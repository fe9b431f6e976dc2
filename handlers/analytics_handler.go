package handlers

import (
	"context"
	"net/http"

	"habitCoachAPI/internal/habit"
	"habitCoachAPI/internal/logger"
	"habitCoachAPI/internal/user"
)

type summaryService interface {
	Summary(ctx context.Context, u *user.User, from, to string) ([]habit.SummaryRow, error)
}

type AnalyticsHandler struct {
	users     userResolver
	analytics summaryService
	log       *logger.Logger
}

func NewAnalyticsHandler(users userResolver, analytics summaryService, log *logger.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{users: users, analytics: analytics, log: log.With("handler", "analytics")}
}

// GET /api/v1/analytics/summary?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	u, ok := currentUser(ctx, w, h.users, h.log)
	if !ok {
		return
	}

	q := r.URL.Query()
	rows, err := h.analytics.Summary(ctx, u, q.Get("from"), q.Get("to"))
	if err != nil {
		respondWithServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"data": rows})
}
