package httpapi

import (
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fromchat/chat-core-service/internal/domain/model"
)

var (
	safeFileName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
	// Encrypted attachments are stored as <sender>_<recipient>_<envelope>_<uuid>.
	encryptedName = regexp.MustCompile(`^(\d+)_(\d+)_(\d+)_`)
)

func (a *API) handleNormalFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !safeFileName.MatchString(name) {
		writeError(w, model.Validation("Invalid file name"))
		return
	}
	http.ServeFile(w, r, filepath.Join(a.uploadsDir, "files", "normal", name))
}

// handleEncryptedFile serves DM attachments. Only the two participants
// encoded in the file name may fetch the blob.
func (a *API) handleEncryptedFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !safeFileName.MatchString(name) {
		writeError(w, model.Validation("Invalid file name"))
		return
	}
	m := encryptedName.FindStringSubmatch(name)
	if m == nil {
		writeError(w, model.Validation("Invalid file name"))
		return
	}
	senderID, _ := strconv.ParseInt(m[1], 10, 64)
	recipientID, _ := strconv.ParseInt(m[2], 10, 64)

	id := identityFrom(r.Context())
	if id.User.ID != senderID && id.User.ID != recipientID {
		writeError(w, model.Forbidden("Not a participant of this conversation"))
		return
	}
	http.ServeFile(w, r, filepath.Join(a.uploadsDir, "files", "encrypted", name))
}
