package httpapi

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/fromchat/chat-core-service/internal/audit"
	"github.com/fromchat/chat-core-service/internal/auth"
	"github.com/fromchat/chat-core-service/internal/domain/registry"
	"github.com/fromchat/chat-core-service/internal/moderation"
	"github.com/fromchat/chat-core-service/internal/service"
	"github.com/fromchat/chat-core-service/internal/store"
)

// API is the REST edge: account lifecycle, history fetches, moderation,
// file downloads and the operational surface. Live messaging stays on the
// socket.
type API struct {
	store  *store.Store
	auth   *auth.Service
	chat   *service.Chat
	mod    *moderation.Service
	hub    *registry.Hub
	sink   *audit.Sink
	logger *slog.Logger

	uploadsDir string
	iceServers []string
}

func NewAPI(
	st *store.Store,
	authSvc *auth.Service,
	chat *service.Chat,
	mod *moderation.Service,
	hub *registry.Hub,
	sink *audit.Sink,
	logger *slog.Logger,
	uploadsDir string,
	iceServers []string,
) *API {
	return &API{
		store:      st,
		auth:       authSvc,
		chat:       chat,
		mod:        mod,
		hub:        hub,
		sink:       sink,
		logger:     logger,
		uploadsDir: uploadsDir,
		iceServers: iceServers,
	}
}

// Router assembles the route tree.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(a.accessLog)

	r.Get("/healthz", a.handleHealthz)
	r.Get("/internal/stats", a.handleStats)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", a.handleLogin)
		r.Post("/register", a.handleRegister)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)

			r.Get("/logout", a.handleLogout)
			r.Get("/check_auth", a.handleCheckAuth)
			r.Post("/change_password", a.handleChangePassword)
			r.Get("/devices", a.handleListDevices)
			r.Delete("/devices/{sessionID}", a.handleRevokeDevice)
			r.Post("/devices/logout-all", a.handleLogoutAll)

			r.Get("/users", a.handleListUsers)
			r.Get("/get_messages", a.handleGetMessages)
			r.Get("/dm/history/{userID}", a.handleDMHistory)
			r.Get("/dm/conversations", a.handleDMConversations)

			r.Get("/uploads/files/normal/{name}", a.handleNormalFile)
			r.Get("/uploads/files/encrypted/{name}", a.handleEncryptedFile)

			r.Get("/crypto/public-key", a.handleGetOwnPublicKey)
			r.Put("/crypto/public-key", a.handlePutPublicKey)
			r.Get("/crypto/public-key/{userID}", a.handleGetPublicKey)
			r.Get("/crypto/backup", a.handleGetBackup)
			r.Put("/crypto/backup", a.handlePutBackup)

			r.Post("/push/subscribe", a.handlePushSubscribe)
			r.Delete("/push/unsubscribe", a.handlePushUnsubscribe)

			r.Get("/webrtc/ice", a.handleICEServers)

			r.Group(func(r chi.Router) {
				r.Use(a.requireOwner)
				r.Post("/user/{userID}/suspend", a.handleSuspend)
				r.Post("/user/{userID}/unsuspend", a.handleUnsuspend)
				r.Post("/user/{userID}/delete", a.handleDeleteUser)
				r.Post("/user/{userID}/verify", a.handleToggleVerify)
				r.Post("/user/{userID}/clear-rate-limit", a.handleClearRateLimit)
				r.Get("/moderation/blocklist", a.handleBlocklistGet)
				r.Post("/moderation/blocklist", a.handleBlocklistAdd)
				r.Delete("/moderation/blocklist", a.handleBlocklistRemove)
			})
		})
	})
	return r
}
