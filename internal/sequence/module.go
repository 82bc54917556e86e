package sequence

import (
	"context"
	"log/slog"
	"time"

	"go.uber.org/fx"

	"github.com/fromchat/chat-core-service/config"
	"github.com/fromchat/chat-core-service/internal/domain/registry"
	"github.com/fromchat/chat-core-service/internal/store"
)

var Module = fx.Module("sequence",
	fx.Provide(
		func(s *store.Store, logger *slog.Logger) *Sequencer {
			return NewSequencer(s, logger)
		},
		fx.Annotate(
			func(s *Sequencer) *Sequencer { return s },
			fx.As(new(registry.Allocator)),
		),
	),
	fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, s *Sequencer, logger *slog.Logger) {
		retention := cfg.Sequencer.EffectiveRetention()
		interval := cfg.Sequencer.PruneInterval
		if interval <= 0 {
			interval = time.Hour
		}
		done := make(chan struct{})
		stopped := make(chan struct{})
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := s.Bootstrap(ctx); err != nil {
					return err
				}
				go func() {
					defer close(stopped)
					ticker := time.NewTicker(interval)
					defer ticker.Stop()
					for {
						select {
						case <-done:
							return
						case <-ticker.C:
							n, err := s.Prune(context.Background(), retention)
							if err != nil {
								logger.Warn("update log prune failed", "error", err)
								continue
							}
							if n > 0 {
								logger.Info("update log pruned", "rows", n)
							}
						}
					}
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				close(done)
				<-stopped
				return nil
			},
		})
	}),
)
