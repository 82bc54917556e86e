package httpapi

import (
	"net/http"
)

type suspendRequest struct {
	Reason string `json:"reason"`
}

func (a *API) handleSuspend(w http.ResponseWriter, r *http.Request) {
	targetID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}
	var req suspendRequest
	_ = decodeBody(r, &req)

	id := identityFrom(r.Context())
	if err := a.mod.Suspend(r.Context(), id.User, targetID, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleUnsuspend(w http.ResponseWriter, r *http.Request) {
	targetID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}
	id := identityFrom(r.Context())
	if err := a.mod.Unsuspend(r.Context(), id.User, targetID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	targetID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}
	id := identityFrom(r.Context())
	if err := a.mod.DeleteUser(r.Context(), id.User, targetID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleToggleVerify(w http.ResponseWriter, r *http.Request) {
	targetID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}
	id := identityFrom(r.Context())
	verified, err := a.mod.ToggleVerify(r.Context(), id.User, targetID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "verified": verified})
}

func (a *API) handleClearRateLimit(w http.ResponseWriter, r *http.Request) {
	targetID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}
	id := identityFrom(r.Context())
	if err := a.chat.ClearRateLimit(r.Context(), id.User, targetID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleBlocklistGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"words":  a.mod.BlocklistEntries(),
	})
}

type blocklistRequest struct {
	Words []string `json:"words"`
}

func (a *API) handleBlocklistAdd(w http.ResponseWriter, r *http.Request) {
	var req blocklistRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id := identityFrom(r.Context())
	added, entries, err := a.mod.BlocklistAdd(r.Context(), id.User, req.Words)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "added": added, "words": entries})
}

func (a *API) handleBlocklistRemove(w http.ResponseWriter, r *http.Request) {
	var req blocklistRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id := identityFrom(r.Context())
	removed, entries, err := a.mod.BlocklistRemove(r.Context(), id.User, req.Words)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "removed": removed, "words": entries})
}
