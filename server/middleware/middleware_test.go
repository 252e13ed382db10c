package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwellify/dwellify/server/auth"
)

func newAuthenticator(t *testing.T) *auth.Authenticator {
	t.Helper()
	a, err := auth.NewAuthenticator("test-secret", time.Hour)
	require.NoError(t, err)
	return a
}

func runRequest(t *testing.T, mw echo.MiddlewareFunc, token string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.GET("/ping", func(c echo.Context) error {
		identity, _ := auth.IdentityFromContext(c.Request().Context())
		if identity != nil {
			return c.String(http.StatusOK, identity.OrgID)
		}
		return c.String(http.StatusOK, "ok")
	}, mw)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticateAttachesIdentity(t *testing.T) {
	a := newAuthenticator(t)
	token, err := a.Sign(auth.Identity{UserID: "u1", OrgID: "org-1"})
	require.NoError(t, err)

	rec := runRequest(t, Authenticate(a), token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "org-1", rec.Body.String())
}

func TestAuthenticateRejectsMissingOrBadToken(t *testing.T) {
	a := newAuthenticator(t)
	assert.Equal(t, http.StatusUnauthorized, runRequest(t, Authenticate(a), "").Code)
	assert.Equal(t, http.StatusUnauthorized, runRequest(t, Authenticate(a), "garbage").Code)
}

func TestRequireAdmin(t *testing.T) {
	a := newAuthenticator(t)

	e := echo.New()
	e.GET("/admin", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}, Authenticate(a), RequireAdmin())

	adminToken, err := a.Sign(auth.Identity{UserID: "u1", OrgID: "org-1", Admin: true})
	require.NoError(t, err)
	plainToken, err := a.Sign(auth.Identity{UserID: "u2", OrgID: "org-1"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+plainToken)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRateLimiterBudget(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	assert.True(t, rl.Allow("caller"))
	assert.True(t, rl.Allow("caller"))
	assert.False(t, rl.Allow("caller"))
	// A different caller has its own bucket.
	assert.True(t, rl.Allow("other"))
}

func TestRateLimiterCleanupDropsBuckets(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	assert.True(t, rl.Allow("caller"))
	assert.False(t, rl.Allow("caller"))

	rl.flush()
	assert.Empty(t, rl.limits)
	assert.True(t, rl.Allow("caller"))
}

func TestRateLimiterCleanupStopsOnDone(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	done := make(chan struct{})
	rl.StartCleanup(done)
	// Closing done must not panic or leak; the goroutine exits on its own.
	close(done)
}
