package httpapi

import (
	"errors"
	"net/http"

	"github.com/fromchat/chat-core-service/internal/domain/model"
)

func (a *API) handleGetOwnPublicKey(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	a.writePublicKey(w, r, id.User.ID)
}

func (a *API) handleGetPublicKey(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}
	a.writePublicKey(w, r, userID)
}

func (a *API) writePublicKey(w http.ResponseWriter, r *http.Request, userID int64) {
	key, err := a.store.GetCryptoPublicKey(r.Context(), userID)
	if errors.Is(err, model.ErrKeyNotFound) {
		writeError(w, model.NotFound("Public key not published"))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"user_id":    key.UserID,
		"public_key": key.PublicKey,
	})
}

type putPublicKeyRequest struct {
	PublicKey string `json:"public_key"`
}

func (a *API) handlePutPublicKey(w http.ResponseWriter, r *http.Request) {
	var req putPublicKeyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.PublicKey == "" {
		writeError(w, model.Validation("public_key is required"))
		return
	}
	id := identityFrom(r.Context())
	if err := a.store.UpsertCryptoPublicKey(r.Context(), id.User.ID, req.PublicKey); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleGetBackup(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	backup, err := a.store.GetCryptoBackup(r.Context(), id.User.ID)
	if errors.Is(err, model.ErrBackupNotFound) {
		writeError(w, model.NotFound("No backup stored"))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"ciphertext": backup.Ciphertext,
		"iv":         backup.IV,
		"salt":       backup.Salt,
		"updated_at": model.WireTime(backup.UpdatedAt),
	})
}

type putBackupRequest struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	Salt       string `json:"salt"`
}

func (a *API) handlePutBackup(w http.ResponseWriter, r *http.Request) {
	var req putBackupRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Ciphertext == "" || req.IV == "" || req.Salt == "" {
		writeError(w, model.Validation("ciphertext, iv and salt are required"))
		return
	}
	id := identityFrom(r.Context())
	if err := a.store.UpsertCryptoBackup(r.Context(), id.User.ID, req.Ciphertext, req.IV, req.Salt); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
