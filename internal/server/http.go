package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/parlorgames/undercover/internal/config"
	"github.com/parlorgames/undercover/internal/content"
	"github.com/parlorgames/undercover/internal/game/room"
	"github.com/parlorgames/undercover/internal/network"
)

// HTTPServer serves the outer HTTP surface: health, the category listing,
// join QR codes, and the websocket upgrade. It implements Service.
type HTTPServer struct {
	srv             *http.Server
	logger          *zap.Logger
	shutdownTimeout time.Duration
}

// NewHTTPServer builds the HTTP surface over the given collaborators.
//
// Precondition: registry, provider, hub, and logger must be non-nil.
func NewHTTPServer(
	cfg config.HTTPConfig,
	registry *room.Registry,
	provider content.Provider,
	hub *network.Hub,
	logger *zap.Logger,
) *HTTPServer {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	mux.HandleFunc("GET /categories", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(provider.ActiveCategories()); err != nil {
			logger.Warn("writing categories", zap.Error(err))
		}
	})

	mux.HandleFunc("GET /rooms/{code}/qr", func(w http.ResponseWriter, r *http.Request) {
		if cfg.PublicURL == "" {
			http.NotFound(w, r)
			return
		}
		code := strings.ToUpper(r.PathValue("code"))
		if _, ok := registry.Get(code); !ok {
			http.NotFound(w, r)
			return
		}
		png, err := qrcode.Encode(cfg.PublicURL+"/join/"+code, qrcode.Medium, 256)
		if err != nil {
			logger.Warn("encoding join qr", zap.String("room", code), zap.Error(err))
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	})

	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		network.ServeWS(hub, w, r)
	})

	return &HTTPServer{
		srv: &http.Server{
			Addr:    cfg.Addr(),
			Handler: mux,
		},
		logger:          logger,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
}

// Handler exposes the route mux, mainly for tests over httptest.
func (s *HTTPServer) Handler() http.Handler {
	return s.srv.Handler
}

// Start listens and serves until Stop is called.
func (s *HTTPServer) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully within the configured timeout.
func (s *HTTPServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("http shutdown", zap.Error(err))
	}
}
