package middleware

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/dwellify/dwellify/server/auth"
	"github.com/dwellify/dwellify/server/internal/observability"
)

// RequestContext attaches a per-request logging context carrying a request id
// and the caller's tenant. Runs after Authenticate so the tenant is known.
func RequestContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			orgID := ""
			if identity, ok := auth.IdentityFromContext(c.Request().Context()); ok {
				orgID = identity.OrgID
			}
			rc := observability.NewRequestContext(slog.Default(), orgID)
			ctx := observability.WithRequestContext(c.Request().Context(), rc)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if err == nil {
				rc.Info("request handled",
					slog.String("path", c.Path()),
					slog.Int64(observability.LogFieldDuration, rc.DurationMs()))
			}
			return err
		}
	}
}
