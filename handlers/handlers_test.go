package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitCoachAPI/internal/apperr"
	"habitCoachAPI/internal/habit"
	"habitCoachAPI/internal/insight"
	"habitCoachAPI/internal/logger"
	"habitCoachAPI/internal/user"
	"habitCoachAPI/middleware"
)

type fakeUsers struct {
	u   *user.User
	err error
}

func (f *fakeUsers) ResolveUser(ctx context.Context, clerkID string) (*user.User, error) {
	return f.u, f.err
}

type fakeLogs struct {
	gotDate   string
	gotTarget int
	err       error
}

func (f *fakeLogs) Reconcile(ctx context.Context, u *user.User, habitID uuid.UUID, date string, target int) (*habit.DayRecord, error) {
	f.gotDate, f.gotTarget = date, target
	if f.err != nil {
		return nil, f.err
	}
	return &habit.DayRecord{HabitID: habitID, UserID: u.ID, LogDate: date, Count: target}, nil
}

func (f *fakeLogs) ToggleToday(ctx context.Context, u *user.User, habitID uuid.UUID) (*habit.DayRecord, error) {
	return nil, f.err
}

func (f *fakeLogs) ListLogs(ctx context.Context, u *user.User, habitID uuid.UUID, from, to string, includeEntries bool) ([]*habit.DayRecord, error) {
	return nil, f.err
}

type fakeInsights struct {
	gotDate    string
	gotRefresh bool
}

func (f *fakeInsights) Weekly(ctx context.Context, u *user.User, date string, refresh bool) (*insight.WeeklyResponse, error) {
	f.gotDate, f.gotRefresh = date, refresh
	return &insight.WeeklyResponse{Data: &insight.Payload{Wins: []string{"w"}}, Cached: !refresh}, nil
}

func (f *fakeInsights) AtomicHabit(ctx context.Context, u *user.User, text string) (*insight.AtomicHabit, error) {
	return &insight.AtomicHabit{StarterGoal: text, DurationMin: 5}, nil
}

func (f *fakeInsights) ParseLog(ctx context.Context, u *user.User, message string) (*insight.ParsedLog, error) {
	return &insight.ParsedLog{Count: 1, When: "evening"}, nil
}

func testUser() *fakeUsers {
	return &fakeUsers{u: &user.User{ID: uuid.New(), ClerkID: "user_1", Timezone: "UTC"}}
}

func authed(req *http.Request) *http.Request {
	return req.WithContext(middleware.WithClerkID(req.Context(), "user_1"))
}

func serve(t *testing.T, pattern, method string, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	r := mux.NewRouter()
	r.HandleFunc(pattern, h).Methods(method)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestUpsertLog(t *testing.T) {
	habitID := uuid.New()
	path := fmt.Sprintf("/api/v1/habits/%s/logs/upsert", habitID)
	pattern := "/api/v1/habits/{id}/logs/upsert"

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"valid", `{"log_date": "2025-03-10", "count": 3}`, http.StatusOK},
		{"zero count clears the day", `{"log_date": "2025-03-10", "count": 0}`, http.StatusOK},
		{"count above limit", `{"log_date": "2025-03-10", "count": 201}`, http.StatusUnprocessableEntity},
		{"negative count", `{"log_date": "2025-03-10", "count": -1}`, http.StatusUnprocessableEntity},
		{"missing count", `{"log_date": "2025-03-10"}`, http.StatusUnprocessableEntity},
		{"bad date", `{"log_date": "10/03/2025", "count": 1}`, http.StatusUnprocessableEntity},
		{"not json", `count=1`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := &fakeLogs{}
			h := NewLogHandler(testUser(), logs, logger.Nop())
			req := authed(httptest.NewRequest(http.MethodPost, path, strings.NewReader(tt.body)))

			rec := serve(t, pattern, http.MethodPost, h.Upsert, req)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status == http.StatusOK {
				assert.Equal(t, "2025-03-10", logs.gotDate)
			} else {
				assert.Empty(t, logs.gotDate, "service must not run on invalid input")
			}
		})
	}
}

func TestUpsertLogBadHabitID(t *testing.T) {
	h := NewLogHandler(testUser(), &fakeLogs{}, logger.Nop())
	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/habits/nope/logs/upsert", strings.NewReader(`{}`)))
	rec := serve(t, "/api/v1/habits/{id}/logs/upsert", http.MethodPost, h.Upsert, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		message string
	}{
		{apperr.Validation("log_date must be YYYY-MM-DD"), http.StatusUnprocessableEntity, "log_date must be YYYY-MM-DD"},
		{fmt.Errorf("habit x: %w", apperr.ErrForbidden), http.StatusForbidden, "Forbidden"},
		{fmt.Errorf("habit x: %w", apperr.ErrNotFound), http.StatusNotFound, "Not found"},
		{apperr.ErrTransient, http.StatusServiceUnavailable, "Temporarily unavailable, please retry"},
		{fmt.Errorf("record: %w", apperr.ErrIntegrity), http.StatusInternalServerError, "Internal server error"},
		{errors.New("connection reset"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondWithServiceError(rec, logger.Nop(), tt.err)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, errorBody(t, rec))
		})
	}
}

func TestUnauthenticatedRequest(t *testing.T) {
	h := NewLogHandler(testUser(), &fakeLogs{}, logger.Nop())
	path := fmt.Sprintf("/api/v1/habits/%s/logs/toggle-today", uuid.New())
	req := httptest.NewRequest(http.MethodPost, path, nil)

	rec := serve(t, "/api/v1/habits/{id}/logs/toggle-today", http.MethodPost, h.ToggleToday, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestForeignHabitIsForbidden(t *testing.T) {
	logs := &fakeLogs{err: fmt.Errorf("habit: %w", apperr.ErrForbidden)}
	h := NewLogHandler(testUser(), logs, logger.Nop())
	path := fmt.Sprintf("/api/v1/habits/%s/logs", uuid.New())
	req := authed(httptest.NewRequest(http.MethodGet, path, nil))

	rec := serve(t, "/api/v1/habits/{id}/logs", http.MethodGet, h.List, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWeeklyInsight(t *testing.T) {
	insights := &fakeInsights{}
	h := NewInsightHandler(testUser(), insights, time.Second, logger.Nop())
	req := authed(httptest.NewRequest(http.MethodGet, "/api/v1/coach/ai/weekly?refresh=1&date=2025-03-12", nil))

	rec := serve(t, "/api/v1/coach/ai/weekly", http.MethodGet, h.Weekly, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-03-12", insights.gotDate)
	assert.True(t, insights.gotRefresh)

	var resp insight.WeeklyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Cached)
	assert.Equal(t, []string{"w"}, resp.Data.Wins)
}

func TestAtomicValidation(t *testing.T) {
	h := NewInsightHandler(testUser(), &fakeInsights{}, time.Second, logger.Nop())

	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/coach/ai/atomic", strings.NewReader(`{"text": "hi"}`)))
	rec := serve(t, "/api/v1/coach/ai/atomic", http.MethodPost, h.Atomic, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, errorBody(t, rec), "text failed min=3")

	req = authed(httptest.NewRequest(http.MethodPost, "/api/v1/coach/ai/atomic", strings.NewReader(`{"text": "read more"}`)))
	rec = serve(t, "/api/v1/coach/ai/atomic", http.MethodPost, h.Atomic, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"starter_goal":"read more"`)
}

func TestResolveUserFailure(t *testing.T) {
	users := &fakeUsers{err: errors.New("db down")}
	h := NewInsightHandler(users, &fakeInsights{}, time.Second, logger.Nop())
	req := authed(httptest.NewRequest(http.MethodGet, "/api/v1/coach/ai/weekly", nil))

	rec := serve(t, "/api/v1/coach/ai/weekly", http.MethodGet, h.Weekly, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
