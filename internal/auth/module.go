package auth

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/fromchat/chat-core-service/config"
	"github.com/fromchat/chat-core-service/internal/audit"
	"github.com/fromchat/chat-core-service/internal/profanity"
	"github.com/fromchat/chat-core-service/internal/store"
)

var Module = fx.Module("auth",
	fx.Provide(
		func(cfg *config.Config, s *store.Store, sink *audit.Sink, filter *profanity.Filter, logger *slog.Logger) *Service {
			return NewService(s, sink, filter, logger, Options{
				Secret:           []byte(cfg.Auth.JWTSecret),
				TokenTTL:         cfg.Auth.TokenTTL,
				InactivityWindow: cfg.Auth.InactivityWindow,
				OwnerUsername:    cfg.Auth.OwnerUsername,
			})
		},
	),
)
