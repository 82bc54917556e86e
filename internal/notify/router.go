package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/fromchat/chat-core-service/internal/domain/model"
)

const (
	bodyPreviewRunes = 120
	// fanoutParallelism bounds concurrent sink calls during a public
	// broadcast so a slow endpoint stalls one slot, not the batch.
	fanoutParallelism = 8
)

// Directory is the store slice the consumer resolves targets through.
type Directory interface {
	GetMessage(ctx context.Context, id int64) (*model.Message, error)
	GetDMEnvelope(ctx context.Context, id int64) (*model.DMEnvelope, error)
	ListPushSubscriptionsExcept(ctx context.Context, excludeUserID int64) ([]*model.PushSubscription, error)
	ListFcmTokensExcept(ctx context.Context, excludeUserID int64) ([]*model.FcmToken, error)
	GetPushSubscription(ctx context.Context, userID int64) (*model.PushSubscription, error)
	ListFcmTokens(ctx context.Context, userID int64) ([]*model.FcmToken, error)
}

// Consumer drains TopicPushEvents, resolves the targets at delivery time
// and hands each push to the sink.
type Consumer struct {
	dir    Directory
	sink   Sink
	logger *slog.Logger
}

func NewConsumer(dir Directory, sink Sink, logger *slog.Logger) *Consumer {
	return &Consumer{dir: dir, sink: withBreaker(sink, logger), logger: logger}
}

// RegisterHandlers wires the consumer into the router with the retry,
// poison, throttle and timeout chain.
func (c *Consumer) RegisterHandlers(router *message.Router, sub message.Subscriber, pub message.Publisher) error {
	poison, err := middleware.PoisonQueue(pub, PoisonTopic)
	if err != nil {
		return fmt.Errorf("poison queue setup: %w", err)
	}
	retry := middleware.Retry{
		MaxRetries:      3,
		InitialInterval: 2 * time.Second,
		MaxInterval:     15 * time.Second,
		Multiplier:      2.0,
	}
	router.AddNoPublisherHandler("push-events", TopicPushEvents, sub, c.handle).AddMiddleware(
		loggingMiddleware(c.logger),
		retry.Middleware,
		poison,
		middleware.NewThrottle(100, time.Second).Middleware,
		middleware.Timeout(30*time.Second),
	)
	return nil
}

func loggingMiddleware(logger *slog.Logger) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			start := time.Now()
			msgs, err := h(msg)
			logger.Debug("push event handled",
				"msg_id", msg.UUID,
				"duration_ms", time.Since(start).Milliseconds(),
				"success", err == nil)
			return msgs, err
		}
	}
}

func (c *Consumer) handle(msg *message.Message) error {
	var ev Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return fmt.Errorf("decode push event: %w", err)
	}
	ctx := msg.Context()
	switch ev.Kind {
	case EventPublicMessage:
		return c.handlePublic(ctx, ev)
	case EventDM:
		return c.handleDM(ctx, ev)
	default:
		c.logger.Warn("unknown push event kind dropped", "kind", ev.Kind)
		return nil
	}
}

func (c *Consumer) handlePublic(ctx context.Context, ev Event) error {
	msg, err := c.dir.GetMessage(ctx, ev.MessageID)
	if err != nil {
		// Deleted before delivery (spam cleanup): nothing to push.
		c.logger.Debug("push skipped, message gone", "message_id", ev.MessageID)
		return nil
	}
	title := "New message"
	if msg.Author != nil {
		title = msg.Author.PublicName()
	}
	body := preview(msg.Content)

	subs, err := c.dir.ListPushSubscriptionsExcept(ctx, ev.ExcludeUserID)
	if err != nil {
		return fmt.Errorf("list push subscriptions: %w", err)
	}
	tokens, err := c.dir.ListFcmTokensExcept(ctx, ev.ExcludeUserID)
	if err != nil {
		return fmt.Errorf("list fcm tokens: %w", err)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanoutParallelism)
	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			c.deliver(gctx, PushMessage{
				UserID:    sub.UserID,
				Endpoint:  sub.Endpoint,
				P256dhKey: sub.P256dhKey,
				AuthKey:   sub.AuthKey,
				Title:     title,
				Body:      body,
			})
			return nil
		})
	}
	for _, tok := range tokens {
		tok := tok
		g.Go(func() error {
			c.deliver(gctx, PushMessage{UserID: tok.UserID, FcmToken: tok.Token, Title: title, Body: body})
			return nil
		})
	}
	return g.Wait()
}

// handleDM pushes metadata only; envelope content stays opaque end to end.
func (c *Consumer) handleDM(ctx context.Context, ev Event) error {
	env, err := c.dir.GetDMEnvelope(ctx, ev.EnvelopeID)
	if err != nil {
		c.logger.Debug("push skipped, envelope gone", "envelope_id", ev.EnvelopeID)
		return nil
	}
	title := "New message"
	if env.Sender != nil {
		title = env.Sender.PublicName()
	}
	body := "You received an encrypted message"

	if sub, err := c.dir.GetPushSubscription(ctx, env.RecipientID); err == nil {
		c.deliver(ctx, PushMessage{
			UserID:    sub.UserID,
			Endpoint:  sub.Endpoint,
			P256dhKey: sub.P256dhKey,
			AuthKey:   sub.AuthKey,
			Title:     title,
			Body:      body,
		})
	}
	tokens, err := c.dir.ListFcmTokens(ctx, env.RecipientID)
	if err != nil {
		return fmt.Errorf("list fcm tokens: %w", err)
	}
	for _, tok := range tokens {
		c.deliver(ctx, PushMessage{UserID: tok.UserID, FcmToken: tok.Token, Title: title, Body: body})
	}
	return nil
}

// deliver pushes one target. Per-target failures are logged and swallowed
// so one dead endpoint never blocks the rest of the fan-out.
func (c *Consumer) deliver(ctx context.Context, msg PushMessage) {
	if err := c.sink.Deliver(ctx, msg); err != nil {
		c.logger.Warn("push delivery failed", "user_id", msg.UserID, "error", err)
	}
}

// preview unescapes stored content and truncates it for a notification.
func preview(content string) string {
	text := html.UnescapeString(content)
	runes := []rune(text)
	if len(runes) <= bodyPreviewRunes {
		return text
	}
	return string(runes[:bodyPreviewRunes]) + "…"
}
