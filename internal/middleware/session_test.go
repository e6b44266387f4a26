package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentline/frontdesk/pkg/config"
	"github.com/dentline/frontdesk/pkg/jwtutil"
)

func TestClassifyPath(t *testing.T) {
	cases := []struct {
		path string
		want PathClass
	}{
		{"/", PathPublic},
		{"/pricing", PathPublic},
		{"/health", PathPublic},
		{"/metrics", PathPublic},
		{"/api/auth/login", PathPublic},
		{"/api/auth/bootstrap", PathPublic},
		{"/api/bookings", PathPublic},
		{"/admin/login", PathAdminLogin},
		{"/admin/login/reset", PathAdminLogin},
		{"/admin", PathAdminProtected},
		{"/admin/practices", PathAdminProtected},
		{"/admin/api/bookings", PathAdminProtected},
		{"/login", PathClientAuth},
		{"/signup", PathClientAuth},
		{"/forgot-password", PathClientAuth},
		{"/reset-password", PathClientAuth},
		{"/dashboard", PathClientProtected},
		{"/dashboard/settings", PathClientProtected},
		{"/api/practice", PathClientProtected},
		{"/api/profile", PathClientProtected},
		// Prefix lookalikes stay public.
		{"/administrator", PathPublic},
		{"/loginfo", PathPublic},
		{"/dashboards", PathPublic},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyPath(tc.path), "path %q", tc.path)
	}
}

func TestDecide(t *testing.T) {
	cases := []struct {
		name        string
		class       PathClass
		hasIdentity bool
		isAdmin     bool
		want        Decision
	}{
		{"admin path, anonymous", PathAdminProtected, false, false, Decision{Redirect: "/admin/login"}},
		{"admin path, identity without admin row", PathAdminProtected, true, false, Decision{Redirect: "/admin/login?error=unauthorized", SignOut: true}},
		{"admin path, admin", PathAdminProtected, true, true, Decision{Allow: true}},
		{"admin login, anonymous", PathAdminLogin, false, false, Decision{Allow: true}},
		{"admin login, non-admin identity", PathAdminLogin, true, false, Decision{Allow: true}},
		{"admin login, admin identity", PathAdminLogin, true, true, Decision{Redirect: "/admin"}},
		{"client page, anonymous", PathClientProtected, false, false, Decision{Redirect: "/login"}},
		{"client page, identity", PathClientProtected, true, false, Decision{Allow: true}},
		{"client auth page, anonymous", PathClientAuth, false, false, Decision{Allow: true}},
		{"client auth page, identity", PathClientAuth, true, false, Decision{Redirect: "/dashboard"}},
		{"public, anonymous", PathPublic, false, false, Decision{Allow: true}},
		{"public, identity", PathPublic, true, false, Decision{Allow: true}},
		{"public, admin", PathPublic, true, true, Decision{Allow: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decide(tc.class, tc.hasIdentity, tc.isAdmin))
		})
	}
}

func testSession(t *testing.T, lookup AdminLookup) (echo.MiddlewareFunc, SessionConfig) {
	t.Helper()
	jwtutil.Initialize(&config.JWTConfig{SigningKey: "test-signing-key", ExpirationHours: 1})
	cfg := SessionConfig{CookieName: "fd_session", LookupAdmin: lookup}
	return Session(cfg), cfg
}

func doRequest(t *testing.T, mw echo.MiddlewareFunc, path, token string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	e := echo.New()
	handlerCalled := false
	h := mw(func(c echo.Context) error {
		handlerCalled = true
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "fd_session", Value: token})
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h(c))
	return rec, handlerCalled
}

func TestSession_AdminPathAnonymousRedirects(t *testing.T) {
	mw, _ := testSession(t, func(ctx context.Context, id uint) (bool, error) {
		t.Fatal("lookup must not run without an identity")
		return false, nil
	})

	rec, called := doRequest(t, mw, "/admin/practices", "")
	assert.False(t, called)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/login", rec.Header().Get("Location"))
}

func TestSession_AdminPathNonAdminSignsOut(t *testing.T) {
	mw, _ := testSession(t, func(ctx context.Context, id uint) (bool, error) {
		return false, nil
	})

	token, err := jwtutil.GenerateToken(42, "user@example.com")
	require.NoError(t, err)

	rec, called := doRequest(t, mw, "/admin", token)
	assert.False(t, called)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/login?error=unauthorized", rec.Header().Get("Location"))

	// The session cookie must be invalidated so the next request behaves as
	// anonymous. The clearing cookie must also be the only one on the
	// response: a refresh alongside it would leave the outcome to whichever
	// Set-Cookie the browser applies last.
	var sessionCookies []*http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "fd_session" {
			sessionCookies = append(sessionCookies, c)
		}
	}
	require.Len(t, sessionCookies, 1, "sign-out must not also refresh the session")
	assert.Empty(t, sessionCookies[0].Value)
	assert.Negative(t, sessionCookies[0].MaxAge)
}

func TestSession_AdminPathAdminAllowed(t *testing.T) {
	mw, _ := testSession(t, func(ctx context.Context, id uint) (bool, error) {
		return id == 7, nil
	})

	token, err := jwtutil.GenerateToken(7, "ops@example.com")
	require.NoError(t, err)

	rec, called := doRequest(t, mw, "/admin/api/bookings", token)
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSession_AdminLookupErrorFailsClosed(t *testing.T) {
	mw, _ := testSession(t, func(ctx context.Context, id uint) (bool, error) {
		return false, errors.New("store unreachable")
	})

	token, err := jwtutil.GenerateToken(7, "ops@example.com")
	require.NoError(t, err)

	rec, called := doRequest(t, mw, "/admin", token)
	assert.False(t, called)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/login?error=unauthorized", rec.Header().Get("Location"))
}

func TestSession_MalformedTokenTreatedAsAnonymous(t *testing.T) {
	mw, _ := testSession(t, func(ctx context.Context, id uint) (bool, error) {
		return true, nil
	})

	rec, called := doRequest(t, mw, "/dashboard", "not-a-jwt")
	assert.False(t, called)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestSession_ClientPathAnonymousRedirects(t *testing.T) {
	mw, _ := testSession(t, nil)

	rec, called := doRequest(t, mw, "/dashboard/settings", "")
	assert.False(t, called)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestSession_ClientAuthPageWithSessionRedirectsHome(t *testing.T) {
	mw, _ := testSession(t, nil)

	token, err := jwtutil.GenerateToken(3, "owner@example.com")
	require.NoError(t, err)

	rec, called := doRequest(t, mw, "/login", token)
	assert.False(t, called)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

func TestSession_RefreshesCookieOnEveryRequest(t *testing.T) {
	mw, _ := testSession(t, nil)

	token, err := jwtutil.GenerateToken(3, "owner@example.com")
	require.NoError(t, err)

	// Even a redirected request gets a renewed session.
	rec, _ := doRequest(t, mw, "/login", token)

	var refreshed string
	for _, c := range rec.Result().Cookies() {
		if c.Name == "fd_session" && c.Value != "" {
			refreshed = c.Value
		}
	}
	require.NotEmpty(t, refreshed, "expected a refreshed session cookie")

	claims, err := jwtutil.ValidateToken(refreshed)
	require.NoError(t, err)
	assert.Equal(t, uint(3), claims.IdentityID)
	assert.Equal(t, "owner@example.com", claims.Email)
}

func TestSession_PublicPathPassesThrough(t *testing.T) {
	mw, _ := testSession(t, nil)

	rec, called := doRequest(t, mw, "/pricing", "")
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSession_IdentitySetInContext(t *testing.T) {
	jwtutil.Initialize(&config.JWTConfig{SigningKey: "test-signing-key", ExpirationHours: 1})
	mw := Session(SessionConfig{CookieName: "fd_session"})

	token, err := jwtutil.GenerateToken(11, "owner@example.com")
	require.NoError(t, err)

	e := echo.New()
	var gotID uint
	var gotEmail string
	h := mw(func(c echo.Context) error {
		gotID, _ = c.Get("identity_id").(uint)
		gotEmail, _ = c.Get("email").(string)
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.AddCookie(&http.Cookie{Name: "fd_session", Value: token})
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))

	assert.Equal(t, uint(11), gotID)
	assert.Equal(t, "owner@example.com", gotEmail)
}
