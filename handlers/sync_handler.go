package handlers

import (
	"context"
	"net/http"
	"time"

	"habitCoachAPI/internal/habit"
	"habitCoachAPI/internal/logger"
	"habitCoachAPI/internal/user"
)

type syncService interface {
	Push(ctx context.Context, u *user.User, req *habit.SyncPushRequest) (*habit.SyncPushResponse, error)
	Pull(ctx context.Context, u *user.User, since string) (*habit.SyncPullResponse, error)
}

type SyncHandler struct {
	users userResolver
	sync  syncService
	log   *logger.Logger
}

func NewSyncHandler(users userResolver, sync syncService, log *logger.Logger) *SyncHandler {
	return &SyncHandler{users: users, sync: sync, log: log.With("handler", "sync")}
}

// POST /api/v1/sync/push
func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	var req habit.SyncPushRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	u, ok := currentUser(ctx, w, h.users, h.log)
	if !ok {
		return
	}

	resp, err := h.sync.Push(ctx, u, &req)
	if err != nil {
		respondWithServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// GET /api/v1/sync/pull?lastSyncAt=RFC3339
func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	u, ok := currentUser(ctx, w, h.users, h.log)
	if !ok {
		return
	}

	resp, err := h.sync.Pull(ctx, u, r.URL.Query().Get("lastSyncAt"))
	if err != nil {
		respondWithServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}
