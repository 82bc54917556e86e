package store

import (
	"context"

	"go.uber.org/fx"

	"github.com/fromchat/chat-core-service/config"
)

var Module = fx.Module("store",
	fx.Provide(
		func(cfg *config.Config) (*Store, error) {
			return New(Config{
				Driver: Driver(cfg.Database.Driver),
				Path:   cfg.Database.Path,
				DSN:    cfg.Database.DSN,
			})
		},
	),
	fx.Invoke(func(lc fx.Lifecycle, s *Store) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return s.Close()
			},
		})
	}),
)
