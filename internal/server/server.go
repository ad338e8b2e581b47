// Package server provides the local bridge HTTP API for DocIQ.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/dociq/internal/catalog"
	"github.com/hyperjump/dociq/internal/chat"
	"github.com/hyperjump/dociq/internal/config"
	"github.com/hyperjump/dociq/internal/drive"
	"github.com/hyperjump/dociq/internal/selection"
	"github.com/hyperjump/dociq/internal/workspace"
	"go.uber.org/zap"
)

// Server is the HTTP server that carries viewer selections and chat/workspace operations.
type Server struct {
	assembler  *chat.Assembler
	bridge     *selection.Bridge
	workspaces *workspace.Store
	catalog    *catalog.Catalog
	drive      *drive.Poller
	config     *config.ServerConfig
	logger     *zap.Logger
	server     *http.Server
}

// NewServer creates a server with the given dependencies. poller may be nil, in which
// case the drive endpoints answer 501.
func NewServer(
	assembler *chat.Assembler,
	bridge *selection.Bridge,
	workspaces *workspace.Store,
	cat *catalog.Catalog,
	poller *drive.Poller,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		assembler:  assembler,
		bridge:     bridge,
		workspaces: workspaces,
		catalog:    cat,
		drive:      poller,
		config:     cfg,
		logger:     logger,
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/selections", s.handleSelection)
		r.Get("/snippets", s.handleListSnippets)
		r.Delete("/snippets/{id}", s.handleRemoveSnippet)

		r.Post("/ask", s.handleAsk)
		r.Get("/messages", s.handleMessages)
		r.Get("/state", s.handleState)

		r.Get("/workspaces", s.handleListWorkspaces)
		r.Post("/workspaces", s.handleCreateWorkspace)
		r.Get("/documents", s.handleListDocuments)
		r.Put("/documents/{id}/workspace", s.handleMoveDocument)

		r.Get("/drive/status", s.handleDriveStatus)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	s.logger.Info("Starting bridge server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
