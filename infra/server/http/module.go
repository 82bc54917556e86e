package http

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/fromchat/chat-core-service/config"
	"github.com/fromchat/chat-core-service/internal/handler/httpapi"
	"github.com/fromchat/chat-core-service/internal/handler/ws"
)

var Module = fx.Module("server.http",
	fx.Provide(
		func(cfg *config.Config, api *httpapi.API, socket *ws.Handler, logger *slog.Logger) *Server {
			return NewServer(api, socket, logger, Options{
				Addr:            cfg.Server.Addr,
				ReadTimeout:     cfg.Server.ReadTimeout,
				WriteTimeout:    cfg.Server.WriteTimeout,
				ShutdownTimeout: cfg.Server.ShutdownTimeout,
			})
		},
	),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error { return s.Start() },
			OnStop:  func(ctx context.Context) error { return s.Stop(ctx) },
		})
	}),
)
