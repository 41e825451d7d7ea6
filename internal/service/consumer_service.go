package service

import (
	"context"
	"encoding/json"
	"log"

	"ai-finagent-be/pkg/events"
	pktNats "ai-finagent-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains the in-process event bus and forwards pipeline
// events onto NATS JetStream. The request path only ever blocks on the
// gochannel publish; everything downstream of the broker is async.
type consumerService struct {
	pubSub        *gochannel.GoChannel
	topicName     string
	natsPublisher *pktNats.Publisher
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	natsPublisher *pktNats.Publisher,
) IConsumerService {
	return &consumerService{
		pubSub:        pubSub,
		topicName:     topicName,
		natsPublisher: natsPublisher,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
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
	var envelope eventEnvelope
	err := json.Unmarshal(msg.Payload, &envelope)
	if err != nil {
		log.Printf("[ERROR] Failed to unmarshal event message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	if cs.natsPublisher == nil {
		msg.Ack()
		return
	}

	evt := events.BaseEvent{
		Type:       envelope.Type,
		Data:       envelope.Data,
		OccurredAt: envelope.OccurredAt,
	}
	if err := cs.natsPublisher.Publish(ctx, evt); err != nil {
		log.Printf("[ERROR] Failed to forward %s event to NATS: %v", envelope.Type, err)
		msg.Nack() // Nack for retriable errors
		return
	}

	msg.Ack()
}
