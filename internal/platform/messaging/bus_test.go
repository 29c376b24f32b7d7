package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"pollstack/internal/shared/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus(4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan events.Envelope, 1)
	bus.Subscribe(ctx, events.TopicWinnersDrawn, "test", func(_ context.Context, e events.Envelope) error {
		received <- e
		return nil
	})

	envelope, err := events.NewEnvelope("evt-1", "lottery.winners_drawn", "lottery-service", "research", "r-1", time.Now(), events.WinnersDrawn{
		EntityID: "r-1",
		Winners:  []string{"u-1"},
	})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, events.TopicWinnersDrawn, envelope))

	select {
	case got := <-received:
		payload, err := events.DecodePayload[events.WinnersDrawn](got)
		require.NoError(t, err)
		assert.Equal(t, []string{"u-1"}, payload.Winners)
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestBusHandlerErrorsDoNotStopConsumer(t *testing.T) {
	bus := NewBus(4, nil)
	ctx, cancel := context.WithCancel(context.Background())

	calls := make(chan struct{}, 2)
	done := bus.Subscribe(ctx, "topic", "test", func(context.Context, events.Envelope) error {
		calls <- struct{}{}
		return errors.New("handler failed")
	})

	require.NoError(t, bus.Publish(ctx, "topic", events.Envelope{EventID: "1"}))
	require.NoError(t, bus.Publish(ctx, "topic", events.Envelope{EventID: "2"}))
	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(time.Second):
			t.Fatal("handler not invoked")
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}
