// Package notify delivers best-effort messages to subjects after a unit of
// work committed. Delivery failures are reported to the caller but never
// affect persisted state.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

type Message struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, subjectID string, message Message) error
}

// LogNotifier writes notifications to the process log.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(_ context.Context, subjectID string, message Message) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification sent",
		"event", "notify_log_delivered",
		"module", "internal/platform/notify",
		"layer", "platform",
		"subject_id", subjectID,
		"title", message.Title,
	)
	return nil
}

// WebhookNotifier posts one JSON document per notification.
type WebhookNotifier struct {
	URL    string
	Client *http.Client
}

func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

type webhookPayload struct {
	SubjectID string  `json:"subject_id"`
	Message   Message `json:"message"`
}

func (n *WebhookNotifier) Notify(ctx context.Context, subjectID string, message Message) error {
	body, err := json.Marshal(webhookPayload{SubjectID: subjectID, Message: message})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("deliver notification: webhook returned %d", resp.StatusCode)
	}
	return nil
}

// Throttled caps the delivery rate of the wrapped notifier.
type Throttled struct {
	Next    Notifier
	Limiter *rate.Limiter
}

func NewThrottled(next Notifier, perSecond float64, burst int) *Throttled {
	if burst < 1 {
		burst = 1
	}
	return &Throttled{
		Next:    next,
		Limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (t *Throttled) Notify(ctx context.Context, subjectID string, message Message) error {
	if err := t.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("notification throttled: %w", err)
	}
	return t.Next.Notify(ctx, subjectID, message)
}
