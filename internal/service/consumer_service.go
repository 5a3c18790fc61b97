package service

import (
	"context"
	"encoding/json"

	"pdf-qa-be/internal/pkg/logger"
	"pdf-qa-be/pkg/session"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains session lifecycle events off the in-process bus.
// Today it only records them; it is the seam where audit sinks or cache
// warmers would attach without touching the store.
type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	sysLogger logger.ILogger
}

func NewConsumerService(pubSub *gochannel.GoChannel, topicName string, sysLogger logger.ILogger) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		sysLogger: sysLogger,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(msg *message.Message) {
	var evt session.Event
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		cs.sysLogger.Error("ConsumerService", "Failed to unmarshal lifecycle event", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		msg.Ack() // malformed payloads never become valid, do not retry
		return
	}

	cs.sysLogger.Info("ConsumerService", "Session lifecycle event", map[string]interface{}{
		"type":       string(evt.Type),
		"session_id": evt.SessionID,
		"at":         evt.At,
	})
	msg.Ack()
}
