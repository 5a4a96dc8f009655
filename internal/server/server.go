// Package server wires the store, service, handlers and middleware into an
// HTTP server.
//
// DEPENDENCY FLOW:
// main.go builds the store and hands it to New, which assembles
//
//	store → SnippetService → SnippetHandler → routes
//
// Keeping this out of main lets tests build the same router around a store
// with a fake clock.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/snippets/internal/auth"
	"github.com/sakif/snippets/internal/handler"
	"github.com/sakif/snippets/internal/middleware"
	"github.com/sakif/snippets/internal/repository"
	"github.com/sakif/snippets/internal/service"
)

// Config holds server configuration.
type Config struct {
	Port int

	// PublicURL overrides the origin used in locators. Empty means derive
	// it from each request.
	PublicURL string

	Limits handler.Limits

	// Likes and Edits enable the optional routes.
	Likes bool
	Edits bool
}

// Server represents the HTTP server and its dependencies.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	store  repository.SnippetRepository
}

// New creates a Server serving snippets out of store.
func New(cfg Config, logger *slog.Logger, store repository.SnippetRepository) *Server {
	if cfg.Limits == (handler.Limits{}) {
		cfg.Limits = handler.DefaultLimits()
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures middleware and routes.
//
// ROUTES (every route also answers without its trailing slash, since the
// locators handed out have none):
//
//	POST   /snippets/              create
//	GET    /snippets/{name}/       fetch
//	POST   /snippets/{name}/like/  like     (Likes)
//	POST   /snippets/{name}/       edit     (Edits)
//	DELETE /snippets/{name}/       delete   (Edits)
//	GET    /healthz                health
//
// MIDDLEWARE ORDER:
// RequestID runs first so the logger can read the id. Recoverer sits
// inside the logger so a recovered panic is logged as a 500.
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	snippetService := service.NewSnippetService(s.store, auth.NewPasswordService(), s.logger)
	snippetHandler := handler.NewSnippetHandler(snippetService, s.config.PublicURL, s.config.Limits, s.logger)

	s.router.Get("/healthz", snippetHandler.HandleHealth)

	route(s.router, http.MethodPost, "/snippets/", snippetHandler.HandleCreate)
	route(s.router, http.MethodGet, "/snippets/{name}/", snippetHandler.HandleGet)
	if s.config.Likes {
		route(s.router, http.MethodPost, "/snippets/{name}/like/", snippetHandler.HandleLike)
	}
	if s.config.Edits {
		route(s.router, http.MethodPost, "/snippets/{name}/", snippetHandler.HandleEdit)
		route(s.router, http.MethodDelete, "/snippets/{name}/", snippetHandler.HandleDelete)
	}
}

// route registers h under pattern and under pattern without its trailing
// slash.
//
// chi's StripSlashes middleware is not used because it rewrites the routing
// path from the decoded URL, which breaks names containing an escaped "/".
func route(r chi.Router, method, pattern string, h http.HandlerFunc) {
	r.Method(method, pattern, h)
	r.Method(method, strings.TrimSuffix(pattern, "/"), h)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server until SIGINT or SIGTERM, then drains in-flight
// requests for up to 30 seconds.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("public_url", s.config.PublicURL),
			slog.Bool("likes", s.config.Likes),
			slog.Bool("edits", s.config.Edits),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully", slog.Int("snippets", s.store.Len()))
	}

	return nil
}
