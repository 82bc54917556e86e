package cmd

import (
	"go.uber.org/fx"

	"github.com/fromchat/chat-core-service/config"
	httpsrv "github.com/fromchat/chat-core-service/infra/server/http"
	"github.com/fromchat/chat-core-service/internal/audit"
	"github.com/fromchat/chat-core-service/internal/auth"
	"github.com/fromchat/chat-core-service/internal/domain/registry"
	"github.com/fromchat/chat-core-service/internal/handler/httpapi"
	wshandler "github.com/fromchat/chat-core-service/internal/handler/ws"
	"github.com/fromchat/chat-core-service/internal/moderation"
	"github.com/fromchat/chat-core-service/internal/notify"
	"github.com/fromchat/chat-core-service/internal/presence"
	"github.com/fromchat/chat-core-service/internal/profanity"
	"github.com/fromchat/chat-core-service/internal/sequence"
	"github.com/fromchat/chat-core-service/internal/service"
	"github.com/fromchat/chat-core-service/internal/spam"
	"github.com/fromchat/chat-core-service/internal/store"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,
			ProvidePubSub,
		),
		store.Module,
		audit.Module,
		profanity.Module,
		sequence.Module,
		registry.Module,
		presence.Module,
		auth.Module,
		moderation.Module,
		spam.Module,
		service.Module,
		notify.Module,
		wshandler.Module,
		httpapi.Module,
		httpsrv.Module,
	)
}
