package audit

import (
	"context"

	"go.uber.org/fx"

	"github.com/fromchat/chat-core-service/config"
)

var Module = fx.Module("audit",
	fx.Provide(
		func(cfg *config.Config) *Sink {
			return NewSink(Config{
				Dir:        cfg.Audit.Dir,
				MaxSizeMB:  cfg.Audit.MaxSizeMB,
				MaxBackups: cfg.Audit.MaxBackups,
			})
		},
	),
	fx.Invoke(func(lc fx.Lifecycle, s *Sink) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return s.Close()
			},
		})
	}),
)
