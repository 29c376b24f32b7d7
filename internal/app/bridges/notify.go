package bridges

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pollstack/internal/platform/messaging"
	"pollstack/internal/platform/notify"
	"pollstack/internal/shared/events"
)

type NotificationMetrics interface {
	NotificationDelivered(outcome string)
}

// WinnersNotifier tells every lottery winner about the payout. It consumes
// committed draws only, so a failed delivery never touches stored state.
type WinnersNotifier struct {
	Bus      *messaging.Bus
	Notifier notify.Notifier
	Metrics  NotificationMetrics
	Logger   *slog.Logger
}

// Start subscribes until ctx is cancelled. The returned channel closes once
// the consumer has stopped.
func (n WinnersNotifier) Start(ctx context.Context) <-chan struct{} {
	return n.Bus.Subscribe(ctx, events.TopicWinnersDrawn, "winners-notifier", n.Handle)
}

func (n WinnersNotifier) Handle(ctx context.Context, envelope events.Envelope) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	payload, err := events.DecodePayload[events.WinnersDrawn](envelope)
	if err != nil {
		return err
	}

	message := notify.Message{
		Title: "You won extra credit",
		Body:  fmt.Sprintf("You won %d credits in %q.", payload.RewardAmount, payload.Title),
		Data: map[string]any{
			"entity_id":   payload.EntityID,
			"entity_kind": payload.EntityKind,
			"reward":      payload.RewardAmount,
		},
	}
	var failed []error
	for _, subjectID := range payload.Winners {
		if err := n.Notifier.Notify(ctx, subjectID, message); err != nil {
			n.record("failed")
			logger.Warn("winner notification failed",
				"event", "winners_notify_failed",
				"module", "internal/app/bridges",
				"layer", "platform",
				"entity_id", payload.EntityID,
				"subject_id", subjectID,
				"error", err.Error(),
			)
			failed = append(failed, err)
			continue
		}
		n.record("delivered")
	}
	return errors.Join(failed...)
}

func (n WinnersNotifier) record(outcome string) {
	if n.Metrics != nil {
		n.Metrics.NotificationDelivered(outcome)
	}
}
