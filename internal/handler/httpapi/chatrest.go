package httpapi

import (
	"net/http"

	"github.com/fromchat/chat-core-service/internal/domain/model"
)

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	payloads := make([]model.UserPayload, 0, len(users))
	for _, u := range users {
		payloads = append(payloads, model.BuildUserPayload(u))
	}
	model.SortUserPayloads(payloads)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "users": payloads})
}

func (a *API) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := a.chat.PublicHistory(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "messages": msgs})
}

func (a *API) handleDMHistory(w http.ResponseWriter, r *http.Request) {
	peerID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}
	id := identityFrom(r.Context())
	envs, err := a.chat.DMHistory(r.Context(), id.User.ID, peerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "messages": envs})
}

func (a *API) handleDMConversations(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	peers, err := a.chat.DMConversations(r.Context(), id.User.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "conversations": peers})
}
