package httpapi

import (
	"net/http"

	"github.com/fromchat/chat-core-service/internal/domain/model"
)

type pushSubscribeRequest struct {
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
	FcmToken string `json:"fcm_token"`
}

func (a *API) handlePushSubscribe(w http.ResponseWriter, r *http.Request) {
	var req pushSubscribeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id := identityFrom(r.Context())
	ctx := r.Context()

	if req.FcmToken != "" {
		if err := a.store.SaveFcmToken(ctx, id.User.ID, req.FcmToken); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Endpoint != "" {
		if req.P256dh == "" || req.Auth == "" {
			writeError(w, model.Validation("p256dh and auth are required"))
			return
		}
		if err := a.store.UpsertPushSubscription(ctx, id.User.ID, req.Endpoint, req.P256dh, req.Auth); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.FcmToken == "" && req.Endpoint == "" {
		writeError(w, model.Validation("endpoint or fcm_token is required"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type pushUnsubscribeRequest struct {
	FcmToken string `json:"fcm_token"`
}

func (a *API) handlePushUnsubscribe(w http.ResponseWriter, r *http.Request) {
	// Body is optional; absent or empty means web-push only.
	var req pushUnsubscribeRequest
	_ = decodeBody(r, &req)

	id := identityFrom(r.Context())
	if err := a.store.DeletePushSubscriptions(r.Context(), id.User.ID); err != nil {
		writeError(w, err)
		return
	}
	if req.FcmToken != "" {
		if err := a.store.DeleteFcmToken(r.Context(), req.FcmToken); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
