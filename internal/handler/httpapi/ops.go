package httpapi

import (
	"net/http"

	"github.com/fromchat/chat-core-service/internal/domain/model"
)

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStats exposes hub counters to operators. A service token or the
// owner's access token is required.
func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, model.AuthRequired("Authentication required"))
		return
	}
	subject, err := a.auth.VerifyServiceToken(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	if info := accessInfoFrom(r.Context()); info != nil {
		info.username = subject
	}
	writeJSON(w, http.StatusOK, a.hub.Stats())
}

type iceServerView struct {
	URLs string `json:"urls"`
}

func (a *API) handleICEServers(w http.ResponseWriter, r *http.Request) {
	servers := make([]iceServerView, 0, len(a.iceServers))
	for _, s := range a.iceServers {
		servers = append(servers, iceServerView{URLs: s})
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "iceServers": servers})
}
