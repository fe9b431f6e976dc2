package notification

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitCoachAPI/internal/logger"
)

type fakeSender struct {
	sent []*messaging.Message
	fail map[string]bool
}

func (f *fakeSender) Send(ctx context.Context, m *messaging.Message) (string, error) {
	f.sent = append(f.sent, m)
	if f.fail[m.Token] {
		return "", errors.New("registration-token-not-registered")
	}
	return "projects/x/messages/1", nil
}

func TestSendPushPerPlatform(t *testing.T) {
	sender := &fakeSender{}
	svc := NewFCMServiceWithSender(sender, logger.Nop())

	err := svc.SendPush(context.Background(), []DeviceToken{
		{Token: "a", Platform: "android"},
		{Token: "i", Platform: "ios"},
		{Token: "w", Platform: "web"},
	}, "Time for Read", "body", map[string]string{"habit_id": "h1"})
	require.NoError(t, err)
	require.Len(t, sender.sent, 3)

	android, ios, web := sender.sent[0], sender.sent[1], sender.sent[2]
	assert.Equal(t, "Time for Read", android.Notification.Title)
	assert.Equal(t, "h1", android.Data["habit_id"])
	require.NotNil(t, android.Android)
	assert.Equal(t, "high", android.Android.Priority)
	assert.Nil(t, android.APNS)

	require.NotNil(t, ios.APNS)
	assert.Nil(t, ios.Android)

	assert.Nil(t, web.Android)
	assert.Nil(t, web.APNS)
}

func TestSendPushPartialFailure(t *testing.T) {
	sender := &fakeSender{fail: map[string]bool{"stale": true}}
	svc := NewFCMServiceWithSender(sender, logger.Nop())

	err := svc.SendPush(context.Background(), []DeviceToken{
		{Token: "stale", Platform: "android"},
		{Token: "fresh", Platform: "android"},
	}, "t", "b", nil)
	assert.NoError(t, err)

	err = svc.SendPush(context.Background(), []DeviceToken{{Token: "stale"}}, "t", "b", nil)
	assert.Error(t, err)
}

func TestSendPushNoTokens(t *testing.T) {
	sender := &fakeSender{}
	svc := NewFCMServiceWithSender(sender, logger.Nop())
	assert.NoError(t, svc.SendPush(context.Background(), nil, "t", "b", nil))
	assert.Empty(t, sender.sent)
}
