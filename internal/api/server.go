package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wellsgz/pingheat/internal/config"
)

// shutdownTimeout bounds how long in-flight requests may finish on shutdown
const shutdownTimeout = 5 * time.Second

// Server represents the API server
type Server struct {
	config  *config.Config
	router  *gin.Engine
	handler *Handler
	hub     *Hub
}

// NewServer creates a new API server with the given configuration
func NewServer(cfg *config.Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(Recovery())
	router.Use(RequestLogger())
	router.Use(CORS())

	handler := NewHandler(cfg)
	hub := NewHub()
	SetupRoutes(router, handler, hub)

	return &Server{
		config:  cfg,
		router:  router,
		handler: handler,
		hub:     hub,
	}
}

// Run serves on address until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, address string) error {
	httpServer := &http.Server{
		Addr:         address,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go s.hub.Run()
	defer s.hub.Stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[API] Starting server on %s", address)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Println("[API] Shutting down server...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	log.Println("[API] Server stopped")
	return nil
}

// Router returns the underlying Gin router for testing or extension
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Handler returns the API handler for wiring data sources
func (s *Server) Handler() *Handler {
	return s.handler
}

// Hub returns the WebSocket hub for wiring the collector
func (s *Server) Hub() *Hub {
	return s.hub
}
