package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dentline/frontdesk/internal/identity"
	"github.com/dentline/frontdesk/internal/model"
	"github.com/dentline/frontdesk/internal/saga"
	"github.com/dentline/frontdesk/pkg/database"
	"github.com/dentline/frontdesk/pkg/logger"
	"github.com/dentline/frontdesk/prometheus"
)

// Bootstrap creates the first super_admin. It is gated by a shared setup
// secret and refuses to run once any super_admin row exists, no matter what
// secret is presented. Not a retryable operation: a second invocation is a
// hard failure by design.
func (h *Handler) Bootstrap(c echo.Context) error {
	log := logger.FromEcho(c)

	// The existence check comes first so the refusal does not depend on the
	// secret being right. A concurrent first call that slips past the check
	// still fails on the single-super-admin index (see model.AdminUser).
	var count int64
	result := database.GetDB().WithContext(c.Request().Context()).
		Model(&model.AdminUser{}).Where("role = ?", model.RoleSuperAdmin).Count(&count)
	if result.Error != nil {
		log.Error("bootstrap existence check failed", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "bootstrap unavailable"})
	}
	if count > 0 {
		prometheus.RecordAdminRejection("bootstrap_already_done")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "setup already completed"})
	}

	var req struct {
		SetupSecret string `json:"setup_secret"`
		Email       string `json:"email"`
		Password    string `json:"password"`
		FullName    string `json:"full_name"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if h.cfg.Admin.SetupSecret == "" ||
		subtle.ConstantTimeCompare([]byte(req.SetupSecret), []byte(h.cfg.Admin.SetupSecret)) != 1 {
		prometheus.RecordAdminRejection("bad_setup_secret")
		log.Warn("bootstrap attempt with invalid secret")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "invalid setup secret"})
	}

	if req.Email == "" || len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and a password of at least 8 characters are required"})
	}

	admin, err := h.createAdmin(c.Request().Context(), log, req.Email, req.Password, req.FullName, model.RoleSuperAdmin)
	if err != nil {
		if errors.Is(err, identity.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		}
		log.Error("bootstrap failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "bootstrap failed"})
	}

	log.Info("super admin bootstrapped", zap.Uint("admin_id", admin.ID))
	return c.JSON(http.StatusCreated, echo.Map{"data": echo.Map{
		"admin": echo.Map{"id": admin.ID, "email": admin.Email, "role": admin.Role},
	}})
}

// ListAdminUsers returns the operator roster. Any admin role may read it.
func (h *Handler) ListAdminUsers(c echo.Context) error {
	if _, ok := h.requireAdmin(c); !ok {
		return nil
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var admins []model.AdminUser
	result := database.GetDB().WithContext(c.Request().Context()).
		Order("created_at ASC").Find(&admins)
	if result.Error != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list admins"})
	}

	return c.JSON(http.StatusOK, echo.Map{"data": admins})
}

// CreateAdminUser adds an operator. Only a super_admin may do this, and only
// the admin and viewer roles can be granted; super_admin exists solely
// through bootstrap. The temporary password is returned exactly once.
func (h *Handler) CreateAdminUser(c echo.Context) error {
	log := logger.FromEcho(c)

	actor, ok := h.requireAdmin(c)
	if !ok {
		return nil
	}
	if actor.Role != model.RoleSuperAdmin {
		prometheus.RecordAdminRejection("create_admin_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "insufficient role"})
	}

	var req struct {
		Email    string          `json:"email"`
		FullName string          `json:"full_name"`
		Role     model.AdminRole `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email is required"})
	}
	if !req.Role.Assignable() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be admin or viewer"})
	}

	tempPassword := generateTempPassword()

	admin, err := h.createAdmin(c.Request().Context(), log, req.Email, tempPassword, req.FullName, req.Role)
	if err != nil {
		if errors.Is(err, identity.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		}
		log.Error("admin creation failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "admin creation failed"})
	}

	log.Info("admin user created",
		zap.Uint("admin_id", admin.ID),
		zap.String("role", string(admin.Role)),
		zap.Uint("created_by", actor.ID))

	return c.JSON(http.StatusCreated, echo.Map{"data": echo.Map{
		"admin":              admin,
		"temporary_password": tempPassword,
	}})
}

// UpdateAdminRole changes another admin's role. Gated by the role hierarchy:
// strictly higher rank, never self, and super_admin is not grantable here.
func (h *Handler) UpdateAdminRole(c echo.Context) error {
	log := logger.FromEcho(c)

	actor, ok := h.requireAdmin(c)
	if !ok {
		return nil
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid admin id"})
	}

	var req struct {
		Role     model.AdminRole `json:"role"`
		FullName *string         `json:"full_name"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	var target model.AdminUser
	if result := database.GetDB().WithContext(c.Request().Context()).First(&target, id); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "admin not found"})
	}

	if !model.CanManage(actor, &target) {
		prometheus.RecordAdminRejection("manage_denied")
		log.Warn("admin management denied",
			zap.Uint("actor_id", actor.ID),
			zap.Uint("target_id", target.ID))
		return c.JSON(http.StatusForbidden, echo.Map{"error": "cannot manage this admin"})
	}

	updates := map[string]interface{}{}
	if req.Role != "" {
		if !req.Role.Assignable() {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be admin or viewer"})
		}
		updates["role"] = req.Role
	}
	if req.FullName != nil {
		updates["full_name"] = *req.FullName
	}
	if len(updates) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no updatable fields provided"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if result := database.GetDB().WithContext(c.Request().Context()).Model(&target).Updates(updates); result.Error != nil {
		log.Error("admin update failed", zap.Uint("target_id", target.ID), zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{"data": target})
}

// DeleteAdminUser removes an operator. Same hierarchy gate as role edits.
// The admin row goes first, then the identity; a stranded identity without
// the attachment has no privileges, so that order fails safe.
func (h *Handler) DeleteAdminUser(c echo.Context) error {
	log := logger.FromEcho(c)

	actor, ok := h.requireAdmin(c)
	if !ok {
		return nil
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid admin id"})
	}

	var target model.AdminUser
	if result := database.GetDB().WithContext(c.Request().Context()).First(&target, id); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "admin not found"})
	}

	if !model.CanManage(actor, &target) {
		prometheus.RecordAdminRejection("manage_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "cannot manage this admin"})
	}

	// Hard delete. The email column carries a unique index that a tombstoned
	// row would keep holding, making the address unusable for any future
	// admin or practice.
	defer prometheus.TrackDBOperation("delete")(time.Now())
	if result := database.GetDB().WithContext(c.Request().Context()).Unscoped().Delete(&target); result.Error != nil {
		log.Error("admin delete failed", zap.Uint("target_id", target.ID), zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}

	if err := h.identity.DeleteUser(c.Request().Context(), target.ID); err != nil {
		// The attachment is gone, so the identity holds no privileges.
		log.Error("orphaned identity after admin delete",
			zap.Uint("identity_id", target.ID), zap.Error(err))
	}

	log.Info("admin user deleted",
		zap.Uint("target_id", target.ID),
		zap.Uint("actor_id", actor.ID))

	return c.JSON(http.StatusOK, echo.Map{"data": echo.Map{"deleted": true}})
}

// createAdmin runs the two-store creation (identity, then admin row) as a
// saga so a failed attachment write compensates the identity away.
func (h *Handler) createAdmin(ctx context.Context, log *zap.Logger, email, password, fullName string, role model.AdminRole) (*model.AdminUser, error) {
	taken, err := h.emailTaken(ctx, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, identity.ErrEmailExists
	}

	var (
		ident *identity.Identity
		admin model.AdminUser
	)

	s := saga.New("create_admin", log)
	s.AddStep(saga.Step{
		Name: "create_identity",
		Action: func(ctx context.Context) error {
			var err error
			ident, err = h.identity.CreateUser(ctx, email, password, true)
			return err
		},
		Compensate: func(ctx context.Context) error {
			return h.identity.DeleteUser(ctx, ident.ID)
		},
	})
	s.AddStep(saga.Step{
		Name: "create_admin_row",
		Action: func(ctx context.Context) error {
			admin = model.AdminUser{
				ID:       ident.ID,
				Email:    ident.Email,
				FullName: fullName,
				Role:     role,
			}
			return database.GetDB().WithContext(ctx).Create(&admin).Error
		},
	})

	if err := s.Execute(ctx); err != nil {
		return nil, err
	}
	return &admin, nil
}
