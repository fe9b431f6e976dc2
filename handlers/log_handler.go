package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"habitCoachAPI/internal/habit"
	"habitCoachAPI/internal/logger"
	"habitCoachAPI/internal/user"
)

type logService interface {
	Reconcile(ctx context.Context, u *user.User, habitID uuid.UUID, date string, target int) (*habit.DayRecord, error)
	ToggleToday(ctx context.Context, u *user.User, habitID uuid.UUID) (*habit.DayRecord, error)
	ListLogs(ctx context.Context, u *user.User, habitID uuid.UUID, from, to string, includeEntries bool) ([]*habit.DayRecord, error)
}

type LogHandler struct {
	users userResolver
	logs  logService
	log   *logger.Logger
}

func NewLogHandler(users userResolver, logs logService, log *logger.Logger) *LogHandler {
	return &LogHandler{users: users, logs: logs, log: log.With("handler", "logs")}
}

// GET /api/v1/habits/{id}/logs?from&to&include=entries
func (h *LogHandler) List(w http.ResponseWriter, r *http.Request) {
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

	q := r.URL.Query()
	records, err := h.logs.ListLogs(ctx, u, id, q.Get("from"), q.Get("to"), q.Get("include") == "entries")
	if err != nil {
		respondWithServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, habit.LogListResponse{Logs: records})
}

// POST /api/v1/habits/{id}/logs/upsert
func (h *LogHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	id, ok := uuidVar(w, r, "id")
	if !ok {
		return
	}
	var req habit.UpsertLogRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	u, ok := currentUser(ctx, w, h.users, h.log)
	if !ok {
		return
	}

	record, err := h.logs.Reconcile(ctx, u, id, req.LogDate, *req.Count)
	if err != nil {
		respondWithServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, record)
}

// POST /api/v1/habits/{id}/logs/toggle-today
func (h *LogHandler) ToggleToday(w http.ResponseWriter, r *http.Request) {
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

	record, err := h.logs.ToggleToday(ctx, u, id)
	if err != nil {
		respondWithServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, record)
}
