// Package server assembles the HTTP server: gateways, store, middleware and
// the v1 API routes.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/dwellify/dwellify/internal/profile"
	"github.com/dwellify/dwellify/plugin/mls"
	"github.com/dwellify/dwellify/plugin/valuation"
	"github.com/dwellify/dwellify/server/ai"
	"github.com/dwellify/dwellify/server/auth"
	apiv1 "github.com/dwellify/dwellify/server/router/api/v1"
	"github.com/dwellify/dwellify/server/runner/embedding"
	"github.com/dwellify/dwellify/store"
)

// Server is the assembled HTTP server.
type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	apiService *apiv1.APIV1Service
	backfill   *embedding.Runner
	done       chan struct{}
}

// NewServer wires all components from the profile. The MLS provider falls
// back to fixtures in demo mode or when no key is configured; everything
// else is mandatory.
func NewServer(ctx context.Context, prof *profile.Profile, st *store.Store) (*Server, error) {
	gateway, err := ai.NewProvider(&ai.Config{
		BaseURL:        prof.AIBaseURL,
		APIKey:         prof.AIAPIKey,
		EmbeddingModel: prof.AIEmbeddingModel,
		ChatModel:      prof.AIChatModel,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create AI provider")
	}

	var listings mls.Provider
	if prof.Mode == "demo" || prof.MLSAPIKey == "" {
		slog.Info("using demo listing fixtures")
		listings = mls.NewDemoProvider()
	} else {
		client, err := mls.NewClient(&mls.Config{BaseURL: prof.MLSBaseURL, APIKey: prof.MLSAPIKey})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create MLS client")
		}
		listings = client
	}

	val := valuation.NewClient(&valuation.Config{
		BaseURL: prof.ValuationBaseURL,
		APIKey:  prof.ValuationAPIKey,
	})

	authenticator, err := auth.NewAuthenticator(prof.Secret, 0)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create authenticator")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status)
			return nil
		},
	}))

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	apiService := apiv1.NewAPIV1Service(prof, st, gateway, listings, val, authenticator)
	apiService.RegisterRoutes(e)

	return &Server{
		Profile:    prof,
		Store:      st,
		echoServer: e,
		apiService: apiService,
		backfill:   embedding.NewRunner(st, gateway),
		done:       make(chan struct{}),
	}, nil
}

// Start begins serving and blocks until the listener fails or ctx ends.
func (s *Server) Start(ctx context.Context) error {
	go s.backfill.Run(ctx)
	s.apiService.StartLimiterCleanup(s.done)

	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	slog.Info("server started",
		"address", address,
		"mode", s.Profile.Mode,
		"version", s.Profile.Version)
	return s.echoServer.Start(address)
}

// Shutdown stops the HTTP listener and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	close(s.done)
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shut down server", "error", err)
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}
	slog.Info("server stopped")
}
