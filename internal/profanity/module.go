package profanity

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/fromchat/chat-core-service/config"
)

var Module = fx.Module("profanity",
	fx.Provide(
		func(cfg *config.Config, logger *slog.Logger) (*Filter, error) {
			return NewFilter(cfg.Profanity.BlocklistPath, logger)
		},
	),
	fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, f *Filter) {
		if !cfg.Profanity.Watch {
			return
		}
		var stop func() error
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				var err error
				stop, err = f.StartWatcher()
				return err
			},
			OnStop: func(ctx context.Context) error {
				if stop != nil {
					return stop()
				}
				return nil
			},
		})
	}),
)
