package spam

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/fromchat/chat-core-service/config"
	"github.com/fromchat/chat-core-service/internal/audit"
)

var Module = fx.Module("spam",
	fx.Provide(
		func(cfg *config.Config, enforcer Enforcer, sink *audit.Sink, logger *slog.Logger) *Monitor {
			return NewMonitor(Config{
				BurstWindow:         cfg.Spam.BurstWindow,
				BurstCount:          cfg.Spam.BurstCount,
				SpamWindow:          cfg.Spam.SpamWindow,
				SimilarityThreshold: cfg.Spam.SimilarityThreshold,
				SpamLimit:           cfg.Spam.SpamLimit,
				ShortLength:         cfg.Spam.ShortLength,
				ShortRepeat:         cfg.Spam.ShortRepeat,
			}, enforcer, sink, logger)
		},
	),
)
