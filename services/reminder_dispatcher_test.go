package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitCoachAPI/internal/logger"
	"habitCoachAPI/internal/notification"
)

type sentPush struct {
	tokens []notification.DeviceToken
	title  string
	body   string
	data   map[string]string
}

type fakePushProvider struct {
	sent chan sentPush
	err  error
}

func (f *fakePushProvider) SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]string) error {
	f.sent <- sentPush{tokens: tokens, title: title, body: body, data: data}
	return f.err
}

func TestReminderDispatcherWorkersSendQueuedReminders(t *testing.T) {
	push := &fakePushProvider{sent: make(chan sentPush, 1)}
	d := NewReminderDispatcher(nil, push, logger.Nop())
	d.startWorkers()
	defer d.Stop()

	habitID := uuid.New()
	d.Dispatch(&notification.Reminder{
		HabitID:   habitID,
		UserID:    uuid.New(),
		HabitName: "Read",
		LocalDate: "2025-03-12",
		Tokens:    []notification.DeviceToken{{Token: "tok-1", Platform: "android"}},
	})

	select {
	case got := <-push.sent:
		assert.Equal(t, "Time for Read", got.title)
		require.Len(t, got.tokens, 1)
		assert.Equal(t, "tok-1", got.tokens[0].Token)
		assert.Equal(t, habitID.String(), got.data["habit_id"])
		assert.Equal(t, "habit_reminder", got.data["type"])
		assert.Equal(t, "2025-03-12", got.data["local_date"])
	case <-time.After(2 * time.Second):
		t.Fatal("reminder was not sent")
	}
}

func TestReminderDispatcherSurvivesPushFailure(t *testing.T) {
	push := &fakePushProvider{sent: make(chan sentPush, 2), err: errors.New("unregistered")}
	d := NewReminderDispatcher(nil, push, logger.Nop())
	d.workers = 1
	d.startWorkers()
	defer d.Stop()

	for i := 0; i < 2; i++ {
		d.Dispatch(&notification.Reminder{HabitID: uuid.New(), HabitName: "Walk"})
	}
	for i := 0; i < 2; i++ {
		select {
		case <-push.sent:
		case <-time.After(2 * time.Second):
			t.Fatal("worker stopped after a failed push")
		}
	}
}

func TestReminderDispatcherWithoutProvider(t *testing.T) {
	d := NewReminderDispatcher(nil, nil, logger.Nop())
	assert.NotPanics(t, func() {
		d.processJob(&notification.Reminder{HabitID: uuid.New(), HabitName: "Read"})
	})
}
