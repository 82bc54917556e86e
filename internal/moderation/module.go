package moderation

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/fromchat/chat-core-service/internal/audit"
	"github.com/fromchat/chat-core-service/internal/domain/registry"
	"github.com/fromchat/chat-core-service/internal/profanity"
	"github.com/fromchat/chat-core-service/internal/spam"
	"github.com/fromchat/chat-core-service/internal/store"
)

var Module = fx.Module("moderation",
	fx.Provide(
		func(s *store.Store, hub *registry.Hub, sink *audit.Sink, filter *profanity.Filter, logger *slog.Logger) *Service {
			return NewService(s, hub, sink, filter, logger)
		},
		fx.Annotate(
			func(s *Service) *Service { return s },
			fx.As(new(spam.Enforcer)),
		),
	),
)
