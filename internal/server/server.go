// Package server is the composition root: it builds the services and
// handlers from a Config and a store, mounts them on a chi router and runs
// the HTTP server until its context is cancelled.
//
// DEPENDENCY INJECTION FLOW:
//
//	cmd/server opens:  sqlstore.DB, auth.Providers
//	server.New builds: TokenCodec → UserDirectory → AuthService
//	                   BookmarkService, CategoryAggregator
//	                   → handlers → routes
//
// Each layer only receives what it needs: services get repository
// interfaces, handlers get services, nothing below the handlers knows HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/category-note/internal/auth"
	"github.com/sakif/category-note/internal/config"
	"github.com/sakif/category-note/internal/handler"
	"github.com/sakif/category-note/internal/middleware"
	"github.com/sakif/category-note/internal/repository/sqlstore"
	"github.com/sakif/category-note/internal/service"
)

const shutdownTimeout = 30 * time.Second

// Server owns the router and the configuration it was built from. The
// database handle belongs to the caller, which closes it after Start
// returns.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
}

// New wires every component. providers decides which OAuth providers the
// login routes accept.
func New(cfg *config.Config, db *sqlstore.DB, providers auth.Providers, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenCodec(cfg.JWTSecret, cfg.JWTAlgorithm, cfg.JWTExpiration)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	directory := service.NewUserDirectory(db, logger)
	authService := service.NewAuthService(providers, directory, db, tokens, logger)
	bookmarkService := service.NewBookmarkService(db, cfg.TitlePrefixLength, logger)
	categories := service.NewCategoryAggregator(db)

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}
	s.routes(
		handler.NewHealthHandler(db, logger),
		handler.NewAuthHandler(authService, cfg.FrontendURL, cfg.IsProduction(), logger),
		handler.NewBookmarkHandler(bookmarkService, categories, logger),
		auth.RequireAuth(authService, handler.NewErrorWriter(logger)),
	)
	return s, nil
}

// routes mounts middleware and handlers.
//
// ROUTES:
//
//	GET    /                              → API banner
//	GET    /health                        → database ping
//	GET    /auth/login/{provider}         → redirect to provider
//	GET    /auth/signin/{provider}        → same, older path
//	GET    /auth/callback/{provider}      → finish login, redirect to frontend
//	GET    /auth/me                       → current user            [bearer]
//	POST   /auth/logout                   → acknowledge
//	POST   /api/bookmark/                 → create                  [bearer]
//	GET    /api/bookmark/                 → list/filter/paginate    [bearer]
//	GET    /api/bookmark/categories/list  → distinct categories     [bearer]
//	GET    /api/bookmark/{id}             → one bookmark            [bearer]
//	PUT    /api/bookmark/{id}/categories  → partial category update [bearer]
//	DELETE /api/bookmark/{id}             → soft delete             [bearer]
//	POST   /api/url                       → create, 201             [bearer]
//
// MIDDLEWARE ORDER MATTERS:
// RequestID runs first so the logger can report it; Recoverer sits inside
// the logger so a panic is still logged as a 500.
func (s *Server) routes(
	health *handler.HealthHandler,
	authH *handler.AuthHandler,
	bookmarks *handler.BookmarkHandler,
	requireAuth func(http.Handler) http.Handler,
) {
	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", health.HandleRoot)
	r.Get("/health", health.HandleHealth)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login/{provider}", authH.HandleLogin)
		r.Get("/signin/{provider}", authH.HandleLogin)
		r.Get("/callback/{provider}", authH.HandleCallback)
		r.Post("/logout", authH.HandleLogout)
		r.With(requireAuth).Get("/me", authH.HandleMe)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(requireAuth)

		r.Route("/bookmark", func(r chi.Router) {
			r.Post("/", bookmarks.HandleCreate)
			r.Get("/", bookmarks.HandleList)
			r.Get("/categories/list", bookmarks.HandleCategories)
			r.Get("/{id}", bookmarks.HandleGet)
			r.Put("/{id}/categories", bookmarks.HandleUpdateCategories)
			r.Delete("/{id}", bookmarks.HandleDelete)
		})
		r.Post("/url", bookmarks.HandleCreateLegacy)
	})
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully: stop
// accepting connections and give in-flight requests up to 30s to finish.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("env", s.config.AppEnv),
			slog.String("url", s.config.PublicBaseURL),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	}
}
