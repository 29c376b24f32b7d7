package commands

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"pollstack/contexts/survey-content/survey-service/application"
	"pollstack/contexts/survey-content/survey-service/domain/entities"
	"pollstack/contexts/survey-content/survey-service/ports"
)

type TimerState string

const (
	TimerScheduled TimerState = "SCHEDULED"
	TimerFired     TimerState = "FIRED"
	TimerCancelled TimerState = "CANCELLED"
)

type FireFunc func(ctx context.Context, kind entities.Kind, entityID string)

type scheduledClosure struct {
	kind      entities.Kind
	entityID  string
	triggerAt time.Time
	timer     *time.Timer
	state     TimerState
}

// DeadlineTimers closes entities at their deadline within this process.
// Timers are lost on restart and are not shared between instances; the
// sweep remains the authoritative trigger.
type DeadlineTimers struct {
	mu      sync.Mutex
	pending map[string]*scheduledClosure
	fire    FireFunc
	clock   ports.Clock
	timeout time.Duration
	logger  *slog.Logger
}

func NewDeadlineTimers(fire FireFunc, clock ports.Clock, timeout time.Duration, logger *slog.Logger) *DeadlineTimers {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DeadlineTimers{
		pending: make(map[string]*scheduledClosure),
		fire:    fire,
		clock:   clock,
		timeout: timeout,
		logger:  application.ResolveLogger(logger),
	}
}

// Schedule arms a closure at triggerAt, replacing any earlier one for the entity.
func (t *DeadlineTimers) Schedule(kind entities.Kind, entityID string, triggerAt time.Time) {
	key := entities.EntityKey(kind, entityID)
	delay := triggerAt.Sub(t.clock.Now())
	if delay < 0 {
		delay = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if previous, ok := t.pending[key]; ok {
		previous.timer.Stop()
		previous.state = TimerCancelled
	}
	closure := &scheduledClosure{kind: kind, entityID: entityID, triggerAt: triggerAt, state: TimerScheduled}
	closure.timer = time.AfterFunc(delay, func() { t.expire(key, closure) })
	t.pending[key] = closure
}

// Cancel disarms the entity's closure and reports whether one was pending.
func (t *DeadlineTimers) Cancel(kind entities.Kind, entityID string) bool {
	key := entities.EntityKey(kind, entityID)
	t.mu.Lock()
	defer t.mu.Unlock()
	closure, ok := t.pending[key]
	if !ok {
		return false
	}
	closure.timer.Stop()
	closure.state = TimerCancelled
	delete(t.pending, key)
	return true
}

// Pending returns the number of armed closures.
func (t *DeadlineTimers) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Stop disarms every closure.
func (t *DeadlineTimers) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, closure := range t.pending {
		closure.timer.Stop()
		closure.state = TimerCancelled
		delete(t.pending, key)
	}
}

func (t *DeadlineTimers) expire(key string, closure *scheduledClosure) {
	t.mu.Lock()
	if current, ok := t.pending[key]; !ok || current != closure || closure.state != TimerScheduled {
		t.mu.Unlock()
		return
	}
	closure.state = TimerFired
	delete(t.pending, key)
	t.mu.Unlock()

	t.logger.Info("deadline timer fired",
		"event", "survey_deadline_timer_fired",
		"module", "survey-content/survey-service",
		"layer", "application",
		"entity_id", closure.entityID,
		"kind", string(closure.kind),
		"trigger_at", closure.triggerAt,
	)
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()
	t.fire(ctx, closure.kind, closure.entityID)
}

var _ ports.Timers = (*DeadlineTimers)(nil)
