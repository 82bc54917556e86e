package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

const (
	// TopicPushEvents carries post events from the chat service to the
	// push pipeline.
	TopicPushEvents = "push.events.v1"
	// PoisonTopic collects events that exhausted their retries.
	PoisonTopic = "push.events.v1.poison"
)

// Event kinds on TopicPushEvents.
const (
	EventPublicMessage = "public_message"
	EventDM            = "dm"
)

// Event is the payload published per post. The pipeline resolves the
// actual push targets from the store when it consumes the event, so a
// subscription added between post and delivery is still honored.
type Event struct {
	Kind          string `json:"kind"`
	MessageID     int64  `json:"message_id,omitempty"`
	EnvelopeID    int64  `json:"envelope_id,omitempty"`
	ExcludeUserID int64  `json:"exclude_user_id,omitempty"`
	SenderID      int64  `json:"sender_id,omitempty"`
}

// Notifier is the chat service's fire-and-forget surface. Failures are
// logged by the implementation and never reach message senders.
type Notifier interface {
	PublicMessagePosted(ctx context.Context, messageID, excludeUserID int64)
	DMPosted(ctx context.Context, envelopeID, senderID int64)
}

// Publisher puts events on the in-process pub/sub topic.
type Publisher struct {
	pub    message.Publisher
	logger *slog.Logger
}

func NewPublisher(pub message.Publisher, logger *slog.Logger) *Publisher {
	return &Publisher{pub: pub, logger: logger}
}

func (p *Publisher) publish(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("push event marshal failed", "kind", ev.Kind, "error", err)
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if err := p.pub.Publish(TopicPushEvents, msg); err != nil {
		p.logger.Error("push event publish failed", "kind", ev.Kind, "error", err)
	}
}

func (p *Publisher) PublicMessagePosted(ctx context.Context, messageID, excludeUserID int64) {
	p.publish(ctx, Event{Kind: EventPublicMessage, MessageID: messageID, ExcludeUserID: excludeUserID})
}

func (p *Publisher) DMPosted(ctx context.Context, envelopeID, senderID int64) {
	p.publish(ctx, Event{Kind: EventDM, EnvelopeID: envelopeID, SenderID: senderID})
}
