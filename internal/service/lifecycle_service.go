package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"slingshot-be/internal/pkg/logger"
	"slingshot-be/pkg/events"
	"slingshot-be/pkg/research/domain"
	"slingshot-be/pkg/research/pipeline"
)

const publishTimeout = 5 * time.Second

// SessionStopper is the part of the orchestrator the cancel handler needs.
type SessionStopper interface {
	Stop(ctx context.Context, id, reason string) (domain.Snapshot, error)
}

// LifecycleService announces session lifecycle changes on the event bus and
// serves cancel requests arriving from it.
type LifecycleService struct {
	pipeline.NopObserver
	publisher events.Publisher
	stopper   SessionStopper
	logger    logger.ILogger
	wg        sync.WaitGroup
}

func NewLifecycleService(publisher events.Publisher, stopper SessionStopper, log logger.ILogger) *LifecycleService {
	return &LifecycleService{publisher: publisher, stopper: stopper, logger: log}
}

func (s *LifecycleService) SessionStarted(snap domain.Snapshot) {
	s.publish(lifecycleEvent(events.SessionStarted, snap))
}

func (s *LifecycleService) SessionFinished(snap domain.Snapshot) {
	kind := events.SessionCompleted
	if snap.Status != domain.StatusComplete {
		kind = events.SessionFailed
	}
	s.publish(lifecycleEvent(kind, snap))
}

func lifecycleEvent(kind string, snap domain.Snapshot) events.BaseEvent {
	data := map[string]interface{}{
		"session_id": snap.ID,
		"mode":       string(snap.Mode),
		"subject":    snap.Subject,
		"status":     string(snap.Status),
		"steps":      len(snap.Steps),
		"citations":  len(snap.Citations),
	}
	if snap.UserID != "" {
		data["user_id"] = snap.UserID
	}
	if snap.Error != "" {
		data["error"] = snap.Error
	}
	return events.BaseEvent{Type: kind, Data: data, OccurredAt: time.Now()}
}

// publish runs off the session goroutine so a slow bus never delays a step.
func (s *LifecycleService) publish(evt events.BaseEvent) {
	if s.publisher == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.publisher.Publish(ctx, evt); err != nil {
			s.logger.Warn("LifecycleService", "Failed to publish lifecycle event", map[string]interface{}{
				"type":       evt.Type,
				"session_id": evt.String("session_id"),
				"error":      err.Error(),
			})
		}
	}()
}

// HandleCancel stops the named session when this instance owns it. Requests
// for sessions held elsewhere are acknowledged and ignored.
func (s *LifecycleService) HandleCancel(ctx context.Context, event events.Event) error {
	base := events.BaseEvent{Type: event.EventType(), Data: event.Payload()}
	id := base.String("session_id")
	if id == "" {
		s.logger.Warn("LifecycleService", "Cancel request without session_id", nil)
		return nil
	}
	reason := base.String("reason")
	if reason == "" {
		reason = "stopped by operator"
	}

	if _, err := s.stopper.Stop(ctx, id, reason); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	s.logger.Info("LifecycleService", "Session cancelled from event bus", map[string]interface{}{
		"session_id": id,
		"reason":     reason,
	})
	return nil
}

// Wait blocks until in-flight publishes finish.
func (s *LifecycleService) Wait() {
	s.wg.Wait()
}
