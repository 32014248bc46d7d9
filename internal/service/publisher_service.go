package service

import (
	"encoding/json"

	"slingshot-be/internal/pkg/logger"
	"slingshot-be/pkg/research/domain"
	"slingshot-be/pkg/research/pipeline"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// PublisherService hands finished sessions to the archive topic. It is a
// pipeline observer.
type PublisherService struct {
	pipeline.NopObserver
	topicName string
	publisher message.Publisher
	logger    logger.ILogger
}

func NewPublisherService(topicName string, publisher message.Publisher, log logger.ILogger) *PublisherService {
	return &PublisherService{topicName: topicName, publisher: publisher, logger: log}
}

func (ps *PublisherService) SessionFinished(snap domain.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		ps.logger.Error("PublisherService", "Failed to marshal session", map[string]interface{}{
			"session_id": snap.ID,
			"error":      err,
		})
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("session_id", snap.ID)
	msg.Metadata.Set("status", string(snap.Status))

	if err := ps.publisher.Publish(ps.topicName, msg); err != nil {
		ps.logger.Error("PublisherService", "Failed to publish finished session", map[string]interface{}{
			"session_id": snap.ID,
			"error":      err,
		})
	}
}
