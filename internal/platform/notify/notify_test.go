package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type recordingNotifier struct {
	subjects []string
}

func (r *recordingNotifier) Notify(_ context.Context, subjectID string, _ Message) error {
	r.subjects = append(r.subjects, subjectID)
	return nil
}

func TestWebhookNotifierPostsJSON(t *testing.T) {
	var got webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL, time.Second)
	err := notifier.Notify(context.Background(), "u-1", Message{Title: "You won", Body: "10 credits"})
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.SubjectID)
	assert.Equal(t, "You won", got.Message.Title)
}

func TestWebhookNotifierReportsFailureStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	err := NewWebhookNotifier(server.URL, time.Second).Notify(context.Background(), "u-1", Message{})
	require.Error(t, err)
}

func TestThrottledStopsOnCancelledContext(t *testing.T) {
	next := &recordingNotifier{}
	throttled := &Throttled{Next: next, Limiter: rate.NewLimiter(rate.Every(time.Hour), 1)}

	require.NoError(t, throttled.Notify(context.Background(), "u-1", Message{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, throttled.Notify(ctx, "u-2", Message{}))
	assert.Equal(t, []string{"u-1"}, next.subjects)
}
