package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/huddlenotify/huddlenotify/internal/config"
	"github.com/huddlenotify/huddlenotify/internal/notifier"
)

type Server struct {
	config  *config.Config
	handler *Handler
	server  *http.Server
	logger  zerolog.Logger
	cancel  context.CancelFunc
}

func NewServer(cfg *config.Config, deps Deps, customPort int, logger zerolog.Logger) *Server {
	handler := NewHandler(deps, logger)
	mux := http.NewServeMux()
	handler.SetupRoutes(mux)

	port := cfg.Web.Port
	if customPort > 0 {
		port = customPort
	}

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, port)
	httpServer := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		// WriteTimeout would cut long-lived websocket streams.
		IdleTimeout: 60 * time.Second,
	}

	return &Server{
		config:  cfg,
		handler: handler,
		server:  httpServer,
		logger:  logger,
	}
}

// Hub is where delivered events should be published.
func (s *Server) Hub() *Hub {
	return s.handler.hub
}

// Start serves until Shutdown. Saved settings are relayed to stream clients
// while the server runs.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.relaySettings(ctx)

	s.logger.Info().Str("addr", "http://"+s.server.Addr).Msg("starting web server")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down web server")
	if s.cancel != nil {
		s.cancel()
	}
	s.handler.hub.Close()
	return s.server.Shutdown(ctx)
}

func (s *Server) GetAddress() string {
	return s.server.Addr
}

func (s *Server) relaySettings(ctx context.Context) {
	if s.handler.settings == nil {
		return
	}
	updates, unsubscribe := s.handler.settings.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-updates:
			if !ok {
				return
			}
			s.handler.hub.Publish(notifier.TypeSettingsUpdated, next)
		}
	}
}
