package registry

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/fromchat/chat-core-service/config"
	"github.com/fromchat/chat-core-service/internal/store"
)

var Module = fx.Module("registry",
	fx.Provide(
		func(cfg *config.Config, alloc Allocator, s *store.Store, logger *slog.Logger) *Hub {
			return NewHub(alloc, s, logger,
				WithFlushDelay(cfg.Hub.FlushDelay),
				WithSendBuffer(cfg.Hub.SendBuffer),
				WithSignatureWindow(cfg.Hub.EffectiveSignatureWindow()),
				WithSendTimeout(cfg.Hub.SendTimeout),
			)
		},
	),
	fx.Invoke(func(lc fx.Lifecycle, h *Hub) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				h.Shutdown()
				return nil
			},
		})
	}),
)
