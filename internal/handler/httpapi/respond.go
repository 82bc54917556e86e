package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fromchat/chat-core-service/internal/domain/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code   int    `json:"code"`
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, err error) {
	re := model.AsRequestError(err)
	writeJSON(w, re.Code, map[string]errorBody{"error": {Code: re.Code, Detail: re.Detail}})
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return model.Validation("Invalid request body")
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, model.Validation("Invalid " + name)
	}
	return id, nil
}
