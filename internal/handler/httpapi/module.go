package httpapi

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/fromchat/chat-core-service/config"
	"github.com/fromchat/chat-core-service/internal/audit"
	"github.com/fromchat/chat-core-service/internal/auth"
	"github.com/fromchat/chat-core-service/internal/domain/registry"
	"github.com/fromchat/chat-core-service/internal/moderation"
	"github.com/fromchat/chat-core-service/internal/service"
	"github.com/fromchat/chat-core-service/internal/store"
)

var Module = fx.Module("handler.httpapi",
	fx.Provide(
		func(
			cfg *config.Config,
			st *store.Store,
			authSvc *auth.Service,
			chat *service.Chat,
			mod *moderation.Service,
			hub *registry.Hub,
			sink *audit.Sink,
			logger *slog.Logger,
		) *API {
			return NewAPI(st, authSvc, chat, mod, hub, sink, logger,
				cfg.Uploads.Dir, cfg.WebRTC.ICEServers)
		},
	),
)
