package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"habitCoachAPI/internal/apperr"
	"habitCoachAPI/internal/logger"
	"habitCoachAPI/internal/notification"
	"habitCoachAPI/internal/user"
	"habitCoachAPI/middleware"
)

const requestTimeout = 5 * time.Second

type userResolver interface {
	ResolveUser(ctx context.Context, clerkID string) (*user.User, error)
}

type profileService interface {
	userResolver
	UpdateProfile(ctx context.Context, u *user.User, req *user.UpdateProfileRequest) (*user.User, error)
	RegisterDevice(ctx context.Context, u *user.User, req *notification.RegisterDeviceRequest) (*notification.DeviceToken, error)
}

type UserHandler struct {
	userService profileService
	log         *logger.Logger
}

func NewUserHandler(userService profileService, log *logger.Logger) *UserHandler {
	return &UserHandler{userService: userService, log: log.With("handler", "users")}
}

// GET /api/v1/me
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	u, ok := currentUser(ctx, w, h.userService, h.log)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, u)
}

// PUT /api/v1/me
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var req user.UpdateProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	u, ok := currentUser(ctx, w, h.userService, h.log)
	if !ok {
		return
	}

	updated, err := h.userService.UpdateProfile(ctx, u, &req)
	if err != nil {
		respondWithServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

// POST /api/v1/devices
func (h *UserHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var req notification.RegisterDeviceRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	u, ok := currentUser(ctx, w, h.userService, h.log)
	if !ok {
		return
	}

	device, err := h.userService.RegisterDevice(ctx, u, &req)
	if err != nil {
		respondWithServiceError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, device)
}

// currentUser resolves the authenticated Clerk subject to a local user,
// writing the error response itself when it cannot.
func currentUser(ctx context.Context, w http.ResponseWriter, users userResolver, log *logger.Logger) (*user.User, bool) {
	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok || clerkID == "" {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return nil, false
	}
	u, err := users.ResolveUser(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, log, err)
		return nil, false
	}
	return u, true
}

// decodeAndValidate reads a JSON body into dst and checks its validate tags.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := middleware.ValidateStruct(dst); err != nil {
		respondWithError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

func uuidVar(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

// respondWithServiceError maps service errors to status codes. Only
// validation and authorization failures expose their message.
func respondWithServiceError(w http.ResponseWriter, log *logger.Logger, err error) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		respondWithError(w, http.StatusUnprocessableEntity, apperr.Message(err))
	case errors.Is(err, apperr.ErrForbidden):
		respondWithError(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, apperr.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, apperr.ErrTransient):
		log.Warn("transient failure", "error", err)
		respondWithError(w, http.StatusServiceUnavailable, "Temporarily unavailable, please retry")
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("request timed out", "error", err)
		respondWithError(w, http.StatusGatewayTimeout, "Request timed out")
	default:
		log.Error("request failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
