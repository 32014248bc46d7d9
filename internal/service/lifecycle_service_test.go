package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"slingshot-be/internal/pkg/logger"
	"slingshot-be/pkg/events"
	"slingshot-be/pkg/research/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBus struct {
	mu   sync.Mutex
	sent []events.Event
	err  error
}

func (b *fakeBus) Publish(_ context.Context, e events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, e)
	return b.err
}

type fakeStopper struct {
	ids, reasons []string
	err          error
}

func (f *fakeStopper) Stop(_ context.Context, id, reason string) (domain.Snapshot, error) {
	f.ids = append(f.ids, id)
	f.reasons = append(f.reasons, reason)
	return domain.Snapshot{ID: id}, f.err
}

func TestLifecycleService_PublishesLifecycle(t *testing.T) {
	bus := &fakeBus{}
	svc := NewLifecycleService(bus, &fakeStopper{}, logger.NewNop())

	svc.SessionStarted(domain.Snapshot{ID: "a", Mode: domain.ModeResearch, Status: domain.StatusPlanning})
	svc.Wait()
	svc.SessionFinished(domain.Snapshot{ID: "a", Status: domain.StatusComplete})
	svc.Wait()
	svc.SessionFinished(domain.Snapshot{ID: "b", Status: domain.StatusError, Error: "cancelled: user request"})
	svc.Wait()

	require.Len(t, bus.sent, 3)
	assert.Equal(t, events.SessionStarted, bus.sent[0].EventType())
	assert.Equal(t, events.SessionCompleted, bus.sent[1].EventType())
	assert.Equal(t, events.SessionFailed, bus.sent[2].EventType())
	assert.Equal(t, "cancelled: user request", bus.sent[2].Payload()["error"])
}

func TestLifecycleService_PublishErrorIsAbsorbed(t *testing.T) {
	bus := &fakeBus{err: assert.AnError}
	svc := NewLifecycleService(bus, &fakeStopper{}, logger.NewNop())

	svc.SessionStarted(domain.Snapshot{ID: "a"})
	svc.Wait()
	assert.Len(t, bus.sent, 1)
}

func TestLifecycleService_NilPublisher(t *testing.T) {
	svc := NewLifecycleService(nil, &fakeStopper{}, logger.NewNop())
	svc.SessionStarted(domain.Snapshot{ID: "a"})
	svc.Wait()
}

func TestLifecycleService_HandleCancel(t *testing.T) {
	tests := []struct {
		name       string
		event      events.Event
		stopErr    error
		wantErr    bool
		wantStops  int
		wantReason string
	}{
		{"owned session", events.NewCancelRequest("s1", "risk limit"), nil, false, 1, "risk limit"},
		{"default reason", events.NewCancelRequest("s1", ""), nil, false, 1, "stopped by operator"},
		{"held elsewhere", events.NewCancelRequest("s1", "x"), fmt.Errorf("session s1: %w", domain.ErrNotFound), false, 1, "x"},
		{"stop failure", events.NewCancelRequest("s1", "x"), assert.AnError, true, 1, "x"},
		{"no session id", events.BaseEvent{Type: events.SessionCancel, Data: map[string]interface{}{}}, nil, false, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stopper := &fakeStopper{err: tt.stopErr}
			svc := NewLifecycleService(nil, stopper, logger.NewNop())

			err := svc.HandleCancel(context.Background(), tt.event)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			require.Len(t, stopper.ids, tt.wantStops)
			if tt.wantStops > 0 {
				assert.Equal(t, tt.wantReason, stopper.reasons[0])
			}
		})
	}
}
