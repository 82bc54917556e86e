package presence

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/fromchat/chat-core-service/internal/domain/registry"
)

var Module = fx.Module("presence",
	fx.Provide(
		func(hub *registry.Hub, logger *slog.Logger) *Engine {
			return NewEngine(hub, logger)
		},
	),
	fx.Invoke(func(lc fx.Lifecycle, e *Engine) {
		ctx, cancel := context.WithCancel(context.Background())
		stopped := make(chan struct{})
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					defer close(stopped)
					e.Run(ctx)
				}()
				return nil
			},
			OnStop: func(context.Context) error {
				cancel()
				<-stopped
				return nil
			},
		})
	}),
)
