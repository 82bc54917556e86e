package notify

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/fx"

	"github.com/fromchat/chat-core-service/config"
	"github.com/fromchat/chat-core-service/internal/store"
)

var Module = fx.Module("notify",
	fx.Provide(
		func(cfg *config.Config, wlogger watermill.LoggerAdapter, logger *slog.Logger) (Sink, error) {
			if cfg.Notify.AMQPURL == "" {
				return NewLogSink(logger), nil
			}
			return NewAMQPSink(cfg.Notify.AMQPURL, cfg.Notify.Exchange, wlogger)
		},
		fx.Annotate(
			func(ps *gochannel.GoChannel, logger *slog.Logger) *Publisher {
				return NewPublisher(ps, logger)
			},
			fx.As(new(Notifier)),
		),
		func(s *store.Store, sink Sink, logger *slog.Logger) *Consumer {
			return NewConsumer(s, sink, logger)
		},
		func(wlogger watermill.LoggerAdapter) (*message.Router, error) {
			return message.NewRouter(message.RouterConfig{}, wlogger)
		},
	),
	fx.Invoke(func(lc fx.Lifecycle, router *message.Router, consumer *Consumer, ps *gochannel.GoChannel, logger *slog.Logger) error {
		if err := consumer.RegisterHandlers(router, ps, ps); err != nil {
			return err
		}
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					if err := router.Run(context.Background()); err != nil {
						logger.Error("push router stopped", "error", err)
					}
				}()
				return nil
			},
			OnStop: func(context.Context) error {
				return router.Close()
			},
		})
		return nil
	}),
)
