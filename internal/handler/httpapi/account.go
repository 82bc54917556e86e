package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fromchat/chat-core-service/internal/domain/model"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	token, user, _, err := a.auth.Login(r.Context(), req.Username, req.Password, r.UserAgent(), clientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if info := accessInfoFrom(r.Context()); info != nil {
		info.username = user.Username
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"token":  token,
		"user":   model.BuildUserPayload(user),
	})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	user, err := a.auth.Register(r.Context(), req.Username, req.DisplayName, req.Password, clientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"status": "ok",
		"user":   model.BuildUserPayload(user),
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	if err := a.auth.Logout(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleCheckAuth(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"user":   model.BuildUserPayload(id.User),
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id := identityFrom(r.Context())
	if err := a.auth.ChangePassword(r.Context(), id, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type deviceView struct {
	SessionID  string `json:"session_id"`
	Client     string `json:"client"`
	DeviceType string `json:"device_type"`
	CreatedAt  string `json:"created_at"`
	LastSeen   string `json:"last_seen"`
	Revoked    bool   `json:"revoked"`
	Current    bool   `json:"current"`
}

func (a *API) handleListDevices(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	sessions, err := a.auth.Sessions(r.Context(), id.User.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]deviceView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, deviceView{
			SessionID:  s.SessionID,
			Client:     s.ClientLabel(),
			DeviceType: s.DeviceType,
			CreatedAt:  model.WireTime(s.CreatedAt),
			LastSeen:   model.WireTime(s.LastSeen),
			Revoked:    s.Revoked,
			Current:    s.SessionID == id.Session.SessionID,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "devices": views})
}

func (a *API) handleRevokeDevice(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		writeError(w, model.Validation("Invalid session id"))
		return
	}
	if err := a.auth.RevokeSession(r.Context(), id, sessionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	revoked, err := a.store.RevokeOtherDeviceSessions(r.Context(), id.User.ID, id.Session.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "revoked": revoked})
}
