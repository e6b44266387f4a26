package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dentline/frontdesk/pkg/jwtutil"
	"github.com/dentline/frontdesk/pkg/logger"
	"github.com/dentline/frontdesk/prometheus"
)

// PathClass buckets a request path for the session decision table. Classes
// are mutually exclusive; classification picks the most specific match.
type PathClass int

const (
	PathPublic PathClass = iota
	PathAdminLogin
	PathAdminProtected
	PathClientAuth
	PathClientProtected
)

const (
	adminLoginPath    = "/admin/login"
	adminHomePath     = "/admin"
	clientLoginPath   = "/login"
	clientHomePath    = "/dashboard"
	unauthorizedParam = "?error=unauthorized"
)

// ClassifyPath maps a request path to its class.
func ClassifyPath(path string) PathClass {
	switch {
	case path == adminLoginPath || strings.HasPrefix(path, adminLoginPath+"/"):
		return PathAdminLogin
	case path == adminHomePath || strings.HasPrefix(path, adminHomePath+"/"):
		return PathAdminProtected
	case isClientAuthPath(path):
		return PathClientAuth
	case path == clientHomePath || strings.HasPrefix(path, clientHomePath+"/"):
		return PathClientProtected
	case strings.HasPrefix(path, "/api/auth/") || path == "/api/bookings":
		// Marketing-site surface: credential endpoints and lead capture.
		return PathPublic
	case strings.HasPrefix(path, "/api/"):
		return PathClientProtected
	}
	return PathPublic
}

func isClientAuthPath(path string) bool {
	for _, p := range []string{"/login", "/signup", "/forgot-password", "/reset-password"} {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Decision is the outcome of the session decision table.
type Decision struct {
	Allow    bool
	Redirect string
	SignOut  bool
}

// Decide applies the decision table to (path class, identity present, admin
// attachment present). First matching row wins. It is a pure function so the
// whole table is enumerable in tests.
func Decide(class PathClass, hasIdentity, isAdmin bool) Decision {
	switch {
	case class == PathAdminProtected && !hasIdentity:
		return Decision{Redirect: adminLoginPath}
	case class == PathAdminProtected && !isAdmin:
		// Authenticated but not an operator: kill the session so the next
		// attempt starts from a clean slate.
		return Decision{Redirect: adminLoginPath + unauthorizedParam, SignOut: true}
	case class == PathAdminProtected:
		return Decision{Allow: true}
	case class == PathAdminLogin && hasIdentity && isAdmin:
		return Decision{Redirect: adminHomePath}
	case class == PathClientProtected && !hasIdentity:
		return Decision{Redirect: clientLoginPath}
	case class == PathClientAuth && hasIdentity:
		return Decision{Redirect: clientHomePath}
	}
	return Decision{Allow: true}
}

// AdminLookup reports whether the identity has an admin attachment. An error
// is treated as "not an admin": fail closed. A legitimate operator can be
// locked out during a store outage, which is the accepted cost of a closed
// privilege boundary.
type AdminLookup func(ctx context.Context, identityID uint) (bool, error)

// SessionConfig wires the session middleware.
type SessionConfig struct {
	CookieName   string
	CookieSecure bool
	LookupAdmin  AdminLookup
}

// Session is the request gatekeeper. For every request it resolves the
// identity from the session cookie, refreshes the cookie, classifies the
// path, and applies the decision table. Authorization failures on page
// navigation are redirects, not JSON errors.
func Session(cfg SessionConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			claims := resolveIdentity(c, cfg.CookieName)
			class := ClassifyPath(c.Request().URL.Path)

			isAdmin := false
			if claims != nil && (class == PathAdminProtected || class == PathAdminLogin) {
				var err error
				isAdmin, err = cfg.LookupAdmin(c.Request().Context(), claims.IdentityID)
				if err != nil {
					// Fail closed.
					isAdmin = false
					log.Warn("admin lookup failed, treating as non-admin",
						zap.Uint("identity_id", claims.IdentityID),
						zap.Error(err))
					prometheus.RecordAdminRejection("lookup_failed")
				}
			}

			d := Decide(class, claims != nil, isAdmin)

			// Renew the session so a soon-to-expire token cannot pass the
			// check and then die on the next request. Fire and forget: a
			// signing failure never changes the decision. A sign-out
			// decision must leave the clearing cookie as the only one on
			// the response.
			if claims != nil && !d.SignOut {
				if token, err := jwtutil.RefreshToken(claims); err == nil {
					setSessionCookie(c, cfg, token)
				} else {
					log.Warn("session refresh failed", zap.Error(err))
				}
			}

			if d.SignOut {
				clearSessionCookie(c, cfg)
				prometheus.RecordAdminRejection("not_admin")
				log.Warn("non-admin identity on admin path, session invalidated",
					zap.Uint("identity_id", claims.IdentityID),
					zap.String("path", c.Request().URL.Path))
			}
			if d.Redirect != "" {
				return c.Redirect(http.StatusFound, d.Redirect)
			}

			if claims != nil {
				c.Set("identity_id", claims.IdentityID)
				c.Set("email", claims.Email)
			}

			return next(c)
		}
	}
}

// resolveIdentity parses the session cookie. Any failure, a malformed or
// expired token included, resolves to no identity.
func resolveIdentity(c echo.Context, cookieName string) *jwtutil.SessionClaims {
	cookie, err := c.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	claims, err := jwtutil.ValidateToken(cookie.Value)
	if err != nil {
		prometheus.RecordAuthError("invalid_token")
		return nil
	}
	return claims
}

func setSessionCookie(c echo.Context, cfg SessionConfig, token string) {
	c.SetCookie(&http.Cookie{
		Name:     cfg.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(c echo.Context, cfg SessionConfig) {
	c.SetCookie(&http.Cookie{
		Name:     cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
