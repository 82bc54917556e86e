package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	amqp "github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/sony/gobreaker"
)

// PushMessage is one resolved delivery: exactly one of Endpoint (Web Push)
// or FcmToken (mobile) is set.
type PushMessage struct {
	UserID    int64  `json:"user_id"`
	Endpoint  string `json:"endpoint,omitempty"`
	P256dhKey string `json:"p256dh_key,omitempty"`
	AuthKey   string `json:"auth_key,omitempty"`
	FcmToken  string `json:"fcm_token,omitempty"`
	Title     string `json:"title"`
	Body      string `json:"body"`
}

// Sink hands a resolved push to whatever delivers it.
type Sink interface {
	Deliver(ctx context.Context, msg PushMessage) error
}

// LogSink is the default delivery backend: it records the push and drops
// it. Useful in development and when no broker is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink { return &LogSink{logger: logger} }

func (s *LogSink) Deliver(_ context.Context, msg PushMessage) error {
	s.logger.Debug("push delivery (log sink)",
		"user_id", msg.UserID, "title", msg.Title, "web_push", msg.Endpoint != "")
	return nil
}

// AMQPSink bridges resolved pushes onto a broker exchange for an external
// sender process.
type AMQPSink struct {
	pub   message.Publisher
	topic string
}

// NewAMQPSink connects to the broker and publishes on the given exchange.
func NewAMQPSink(url, exchange string, wlogger watermill.LoggerAdapter) (*AMQPSink, error) {
	if exchange == "" {
		exchange = "chat.push"
	}
	cfg := amqp.NewDurablePubSubConfig(url, nil)
	cfg.Exchange.GenerateName = func(string) string { return exchange }
	pub, err := amqp.NewPublisher(cfg, wlogger)
	if err != nil {
		return nil, fmt.Errorf("amqp publisher: %w", err)
	}
	return &AMQPSink{pub: pub, topic: exchange}, nil
}

func (s *AMQPSink) Deliver(ctx context.Context, msg PushMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal push: %w", err)
	}
	m := message.NewMessage(watermill.NewUUID(), payload)
	m.SetContext(ctx)
	return s.pub.Publish(s.topic, m)
}

func (s *AMQPSink) Close() error { return s.pub.Close() }

// breakerSink trips open after repeated backend failures so a dead broker
// cannot stall the consumer.
type breakerSink struct {
	next    Sink
	breaker *gobreaker.CircuitBreaker
}

func withBreaker(next Sink, logger *slog.Logger) Sink {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "push-sink",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("push sink breaker state change",
				"name", name, "from", from.String(), "to", to.String())
		},
	})
	return &breakerSink{next: next, breaker: cb}
}

func (s *breakerSink) Deliver(ctx context.Context, msg PushMessage) error {
	_, err := s.breaker.Execute(func() (any, error) {
		return nil, s.next.Deliver(ctx, msg)
	})
	return err
}
