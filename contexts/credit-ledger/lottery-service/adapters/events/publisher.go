package eventsadapter

import (
	"context"
	"log/slog"

	"pollstack/contexts/credit-ledger/lottery-service/domain/entities"
	"pollstack/contexts/credit-ledger/lottery-service/ports"
	"pollstack/internal/platform/messaging"
	"pollstack/internal/shared/events"
)

// Publisher puts winner announcements on the in-process bus.
type Publisher struct {
	Bus    *messaging.Bus
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func (p Publisher) PublishWinners(ctx context.Context, result entities.Result, title string, reward int64) error {
	eventID, err := p.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := events.NewEnvelope(
		eventID,
		events.TopicWinnersDrawn,
		"lottery-service",
		string(result.EntityKind),
		result.EntityID,
		p.Clock.Now(),
		events.WinnersDrawn{
			EntityID:     result.EntityID,
			EntityKind:   string(result.EntityKind),
			Title:        title,
			RewardAmount: reward,
			Winners:      result.Winners,
		},
	)
	if err != nil {
		return err
	}
	return p.Bus.Publish(ctx, events.TopicWinnersDrawn, envelope)
}

var _ ports.Publisher = Publisher{}
