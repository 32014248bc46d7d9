package service

import (
	"context"
	"encoding/json"
	"time"

	"slingshot-be/internal/pkg/logger"
	"slingshot-be/pkg/research/domain"

	"github.com/ThreeDotsLabs/watermill/message"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService writes finished sessions from the archive topic to the
// archive store.
type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	archive    IArchiveService
	logger     logger.ILogger
	retryDelay time.Duration
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	archive IArchiveService,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		archive:    archive,
		logger:     log,
		retryDelay: 2 * time.Second,
	}
}

// Consume subscribes and processes messages until ctx is done.
func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var snap domain.Snapshot
	if err := json.Unmarshal(msg.Payload, &snap); err != nil {
		cs.logger.Error("ConsumerService", "Failed to unmarshal session", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err,
		})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	if err := cs.archive.Save(ctx, snap); err != nil {
		cs.logger.Warn("ConsumerService", "Archive write failed, will retry", map[string]interface{}{
			"session_id": snap.ID,
			"error":      err.Error(),
		})
		select {
		case <-time.After(cs.retryDelay):
			msg.Nack()
		case <-ctx.Done():
		}
		return
	}
	msg.Ack()
}
