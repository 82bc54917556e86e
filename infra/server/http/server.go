package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fromchat/chat-core-service/internal/handler/httpapi"
	"github.com/fromchat/chat-core-service/internal/handler/ws"
)

// Options tunes the listener.
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server is the single listener: REST under /api plus the socket at
// /chat/ws.
type Server struct {
	srv     *http.Server
	opts    Options
	logger  *slog.Logger
	stopped chan struct{}
}

func NewServer(api *httpapi.API, socket *ws.Handler, logger *slog.Logger, opts Options) *Server {
	root := chi.NewRouter()
	root.Handle("/chat/ws", socket)
	root.Mount("/", api.Router())

	return &Server{
		srv: &http.Server{
			Addr:         opts.Addr,
			Handler:      root,
			ReadTimeout:  opts.ReadTimeout,
			WriteTimeout: opts.WriteTimeout,
		},
		opts:    opts,
		logger:  logger,
		stopped: make(chan struct{}),
	}
}

// Start binds the listener and serves in the background. Binding happens
// synchronously so a busy port fails startup instead of surfacing later.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("http server listening", "addr", ln.Addr().String())
	go func() {
		defer close(s.stopped)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", "error", err)
		}
	}()
	return nil
}

// Stop drains in-flight requests within the shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	timeout := s.opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := s.srv.Shutdown(ctx)
	<-s.stopped
	return err
}
