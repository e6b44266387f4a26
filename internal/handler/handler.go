package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/dentline/frontdesk/internal/identity"
	"github.com/dentline/frontdesk/internal/model"
	"github.com/dentline/frontdesk/pkg/config"
	"github.com/dentline/frontdesk/pkg/database"
)

// Handler carries the dependencies of every API boundary handler. The
// elevated store accessor is an explicit field rather than an implicit
// package reach so the privilege boundary is visible at each call site.
type Handler struct {
	cfg      *config.Config
	identity *identity.Service
	elevated func() (*gorm.DB, error)
}

// New wires a handler set.
func New(cfg *config.Config, ident *identity.Service) *Handler {
	return &Handler{
		cfg:      cfg,
		identity: ident,
		elevated: database.Elevated,
	}
}

// identityID pulls the identity resolved by the session middleware out of
// the request context. Zero means unauthenticated.
func identityID(c echo.Context) uint {
	id, _ := c.Get("identity_id").(uint)
	return id
}

// classification is the tagged view of an identity: unclassified, a client
// belonging to one practice, or an admin with a role. Authorization always
// re-derives this from the attachment tables, never from token claims or
// request bodies.
type classification struct {
	Client *model.ClientUser
	Admin  *model.AdminUser
}

// classify resolves the role attachments of an identity.
func classify(ctx context.Context, db *gorm.DB, identityID uint) (classification, error) {
	var cls classification

	var admin model.AdminUser
	result := db.WithContext(ctx).First(&admin, identityID)
	switch {
	case result.Error == nil:
		cls.Admin = &admin
		return cls, nil
	case !errors.Is(result.Error, gorm.ErrRecordNotFound):
		return cls, result.Error
	}

	var client model.ClientUser
	result = db.WithContext(ctx).First(&client, identityID)
	switch {
	case result.Error == nil:
		cls.Client = &client
		return cls, nil
	case !errors.Is(result.Error, gorm.ErrRecordNotFound):
		return cls, result.Error
	}

	return cls, nil
}

// requireAdmin re-derives the caller's admin attachment from the store and
// writes the rejection itself when there is none. The middleware already
// gates admin paths, but handlers re-enforce the boundary because some of
// them run on the elevated connection.
func (h *Handler) requireAdmin(c echo.Context) (*model.AdminUser, bool) {
	id := identityID(c)
	if id == 0 {
		c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
		return nil, false
	}

	var admin model.AdminUser
	result := database.GetDB().WithContext(c.Request().Context()).First(&admin, id)
	if result.Error != nil {
		c.JSON(http.StatusForbidden, echo.Map{"error": "admin access required"})
		return nil, false
	}

	// Touch last_login at most once a minute, best effort.
	if admin.LastLogin == nil || time.Since(*admin.LastLogin) > time.Minute {
		now := time.Now()
		database.GetDB().WithContext(c.Request().Context()).Model(&admin).Update("last_login", now)
	}

	return &admin, true
}

// requireClient resolves the caller's tenant membership and writes the
// rejection itself when none resolves. A request without a resolvable
// practice is rejected, not silently filtered to nothing.
func (h *Handler) requireClient(c echo.Context) (*model.ClientUser, bool) {
	id := identityID(c)
	if id == 0 {
		c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
		return nil, false
	}

	var client model.ClientUser
	result := database.GetDB().WithContext(c.Request().Context()).First(&client, id)
	if result.Error != nil {
		c.JSON(http.StatusForbidden, echo.Map{"error": "no practice membership"})
		return nil, false
	}
	return &client, true
}
