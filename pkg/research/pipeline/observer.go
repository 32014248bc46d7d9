package pipeline

import (
	"context"
	"time"

	"slingshot-be/pkg/research/domain"
)

// Observer is notified of session lifecycle changes. Calls happen on the
// session's run goroutine, so implementations must not block for long.
type Observer interface {
	SessionStarted(snap domain.Snapshot)
	StepEmitted(sessionID string, mode domain.Mode, step domain.ThoughtStep, elapsed time.Duration)
	SessionFinished(snap domain.Snapshot)
}

// NopObserver can be embedded to implement only part of Observer.
type NopObserver struct{}

func (NopObserver) SessionStarted(domain.Snapshot)                                     {}
func (NopObserver) StepEmitted(string, domain.Mode, domain.ThoughtStep, time.Duration) {}
func (NopObserver) SessionFinished(domain.Snapshot)                                    {}

// Archive reads sessions that have left the in-memory registry.
type Archive interface {
	Load(ctx context.Context, id string) (domain.Snapshot, error)
}
