package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/fromchat/chat-core-service/internal/auth"
	"github.com/fromchat/chat-core-service/internal/domain/model"
)

type ctxKey int

const (
	identityKey ctxKey = iota
	accessInfoKey
)

func identityFrom(ctx context.Context) *auth.Identity {
	id, _ := ctx.Value(identityKey).(*auth.Identity)
	return id
}

// accessInfo is a mutable holder the auth middleware fills in, so the
// outer access-log middleware can record who the request was.
type accessInfo struct {
	username string
}

func accessInfoFrom(ctx context.Context) *accessInfo {
	info, _ := ctx.Value(accessInfoKey).(*accessInfo)
	return info
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// requireAuth authenticates the bearer token and stashes the identity on
// the request context.
func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, model.AuthRequired("Authentication required"))
			return
		}
		identity, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			writeError(w, err)
			return
		}
		if info := accessInfoFrom(r.Context()); info != nil {
			info.username = identity.User.Username
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, identity)))
	})
}

// requireOwner gates the moderation surface.
func (a *API) requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := identityFrom(r.Context())
		if id == nil || !id.User.IsOwner() {
			writeError(w, model.Forbidden("Owner access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// accessLog writes every request to the access audit stream.
func (a *API) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		info := &accessInfo{}
		r = r.WithContext(context.WithValue(r.Context(), accessInfoKey, info))
		start := time.Now()
		next.ServeHTTP(rec, r)

		a.sink.HTTPRequest(r.Method, r.URL.Path, rec.status, info.username, clientIP(r))
		a.logger.Debug("http request",
			"method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration_ms", time.Since(start).Milliseconds())
	})
}
