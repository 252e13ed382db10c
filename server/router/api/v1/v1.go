// Package v1 is the JSON API surface. Handlers validate input, resolve the
// caller's tenant, and delegate to the store, the retrieval engines and the
// advisor.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dwellify/dwellify/internal/profile"
	"github.com/dwellify/dwellify/plugin/mls"
	"github.com/dwellify/dwellify/plugin/valuation"
	"github.com/dwellify/dwellify/server/advisor"
	"github.com/dwellify/dwellify/server/ai"
	"github.com/dwellify/dwellify/server/auth"
	svcerr "github.com/dwellify/dwellify/internal/errors"
	"github.com/dwellify/dwellify/server/internal/observability"
	"github.com/dwellify/dwellify/server/middleware"
	"github.com/dwellify/dwellify/server/retrieval"
	"github.com/dwellify/dwellify/store"
)

// APIV1Service wires the v1 routes to their collaborators.
type APIV1Service struct {
	Profile   *profile.Profile
	Store     *store.Store
	Gateway   *ai.Provider
	Listings  mls.Provider
	Valuation *valuation.Client

	authenticator *auth.Authenticator
	scoped        *retrieval.ScopedRetriever
	semantic      *retrieval.SemanticRetriever
	advisor       *advisor.Orchestrator
	limiter       *middleware.RateLimiter
}

// NewAPIV1Service creates the v1 service.
func NewAPIV1Service(
	prof *profile.Profile,
	st *store.Store,
	gateway *ai.Provider,
	listings mls.Provider,
	val *valuation.Client,
	authenticator *auth.Authenticator,
) *APIV1Service {
	return &APIV1Service{
		Profile:   prof,
		Store:     st,
		Gateway:   gateway,
		Listings:  listings,
		Valuation: val,

		authenticator: authenticator,
		scoped:        retrieval.NewScopedRetriever(st),
		semantic:      retrieval.NewSemanticRetriever(st),
		advisor:       advisor.NewOrchestrator(gateway, retrieval.NewSemanticRetriever(st), listings),
		limiter:       middleware.NewRateLimiter(10, 20),
	}
}

// StartLimiterCleanup starts the periodic rate-limit bucket cleanup. Stops
// when done is closed.
func (s *APIV1Service) StartLimiterCleanup(done <-chan struct{}) {
	s.limiter.StartCleanup(done)
}

// RegisterRoutes mounts all v1 routes on the echo group.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api/v1",
		middleware.Authenticate(s.authenticator),
		middleware.RequestContext(),
		s.limiter.Middleware())

	api.GET("/notes", s.ListNotes)
	api.POST("/notes", s.CreateNote)
	api.GET("/notes/:id", s.GetNote)
	api.PUT("/notes/:id", s.UpdateNote, middleware.RequireAdmin())
	api.DELETE("/notes/:id", s.DeleteNote, middleware.RequireAdmin())
	api.POST("/embeddings/regenerate", s.RegenerateEmbedding, middleware.RequireAdmin())

	api.POST("/chat", s.Advise)

	api.GET("/listings/search", s.SearchListings)
	api.GET("/listings/:id", s.GetListing)
	api.GET("/listings/:id/detail", s.GetListingDetail)
	api.GET("/valuation", s.GetValuation)

	api.GET("/metrics", s.GetMetrics, middleware.RequireAdmin())
}

// identity returns the verified caller or a 401.
func identity(c echo.Context) (*auth.Identity, error) {
	id, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing identity")
	}
	return id, nil
}

// httpStatusOf maps the error taxonomy onto HTTP statuses. Input errors are
// the caller's problem; upstream and advisor failures are ours.
func httpStatusOf(err error) int {
	switch svcerr.CodeOf(err, svcerr.ErrCodeInternal) {
	case svcerr.ErrCodeInvalidArgument:
		return http.StatusBadRequest
	case svcerr.ErrCodeNotFound:
		return http.StatusNotFound
	case svcerr.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case svcerr.ErrCodePermissionDenied:
		return http.StatusForbidden
	case svcerr.ErrCodeUpstream, svcerr.ErrCodeAdvisorFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail logs the error and renders it with a taxonomy-derived status.
func fail(c echo.Context, err error) error {
	if rc, ok := observability.FromContext(c.Request().Context()); ok {
		rc.Error("request failed", err)
	}
	status := httpStatusOf(err)
	message := "internal error"
	if status < http.StatusInternalServerError {
		message = err.Error()
	} else if svcerr.IsCode(err, svcerr.ErrCodeUpstream) || svcerr.IsCode(err, svcerr.ErrCodeAdvisorFailed) {
		message = "a dependent service is temporarily unavailable"
	}
	return echo.NewHTTPError(status, message)
}

// GetMetrics returns the advisory and gateway counters.
func (s *APIV1Service) GetMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, observability.GlobalMetrics().Snapshot())
}
