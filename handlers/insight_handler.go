package handlers

import (
	"context"
	"net/http"
	"time"

	"habitCoachAPI/internal/insight"
	"habitCoachAPI/internal/logger"
	"habitCoachAPI/internal/user"
)

type insightService interface {
	Weekly(ctx context.Context, u *user.User, date string, refresh bool) (*insight.WeeklyResponse, error)
	AtomicHabit(ctx context.Context, u *user.User, text string) (*insight.AtomicHabit, error)
	ParseLog(ctx context.Context, u *user.User, message string) (*insight.ParsedLog, error)
}

type InsightHandler struct {
	users    userResolver
	insights insightService
	timeout  time.Duration
	log      *logger.Logger
}

// NewInsightHandler takes the text-generation timeout; requests get that
// plus headroom for the surrounding database work.
func NewInsightHandler(users userResolver, insights insightService, genTimeout time.Duration, log *logger.Logger) *InsightHandler {
	return &InsightHandler{
		users:    users,
		insights: insights,
		timeout:  genTimeout + requestTimeout,
		log:      log.With("handler", "insights"),
	}
}

// GET /api/v1/coach/ai/weekly?refresh=1&date=YYYY-MM-DD
func (h *InsightHandler) Weekly(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	u, ok := currentUser(ctx, w, h.users, h.log)
	if !ok {
		return
	}

	q := r.URL.Query()
	refresh := q.Get("refresh") == "1" || q.Get("refresh") == "true"

	resp, err := h.insights.Weekly(ctx, u, q.Get("date"), refresh)
	if err != nil {
		respondWithServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// POST /api/v1/coach/ai/atomic
func (h *InsightHandler) Atomic(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req insight.AtomicRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	u, ok := currentUser(ctx, w, h.users, h.log)
	if !ok {
		return
	}

	result, err := h.insights.AtomicHabit(ctx, u, req.Text)
	if err != nil {
		respondWithServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, insight.DataResponse[*insight.AtomicHabit]{Data: result})
}

// POST /api/v1/coach/ai/parse-log
func (h *InsightHandler) ParseLog(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req insight.ParseLogRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	u, ok := currentUser(ctx, w, h.users, h.log)
	if !ok {
		return
	}

	result, err := h.insights.ParseLog(ctx, u, req.Message)
	if err != nil {
		respondWithServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, insight.DataResponse[*insight.ParsedLog]{Data: result})
}
