package textgen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitCoachAPI/internal/logger"
)

func newTestClient(url string) *Client {
	return NewClient(Config{URL: url, APIKey: "test-key", Model: "test-model", Timeout: 2 * time.Second}, logger.Nop())
}

func TestClientComplete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"wins\":[]}"}}]}`))
	}))
	defer srv.Close()

	content, err := newTestClient(srv.URL).Complete(context.Background(), "hello", 0.2)
	require.NoError(t, err)
	assert.Equal(t, `{"wins":[]}`, content)

	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, 0.2, got.Temperature)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "hello", got.Messages[1].Content)
}

func TestClientCompleteHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), "hello", 0.2)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode)
}

func TestClientCompleteEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), "hello", 0.2)
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestClientCompleteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, APIKey: "k", Model: "m", Timeout: 50 * time.Millisecond}, logger.Nop())
	_, err := c.Complete(context.Background(), "hello", 0.2)
	assert.Error(t, err)
}

func TestClientRequiresKey(t *testing.T) {
	c := NewClient(Config{URL: "http://127.0.0.1:1", Model: "m"}, logger.Nop())
	_, err := c.Complete(context.Background(), "hello", 0.2)
	assert.Error(t, err)
}
