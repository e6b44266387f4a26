package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dentline/frontdesk/internal/identity"
	"github.com/dentline/frontdesk/internal/model"
	"github.com/dentline/frontdesk/pkg/database"
	"github.com/dentline/frontdesk/pkg/logger"
	"github.com/dentline/frontdesk/prometheus"
)

// GetPractice returns the caller's own practice. Tenant-scoped: the practice
// id comes from the resolved membership, never from the request.
func (h *Handler) GetPractice(c echo.Context) error {
	member, ok := h.requireClient(c)
	if !ok {
		return nil
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var practice model.Practice
	result := database.GetDB().WithContext(c.Request().Context()).First(&practice, member.PracticeID)
	if result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "practice not found"})
	}

	return c.JSON(http.StatusOK, echo.Map{"data": practice})
}

// UpdatePractice lets a practice owner edit contact fields. Status, plan and
// the AI platform identifiers are operator-managed and not writable here.
func (h *Handler) UpdatePractice(c echo.Context) error {
	log := logger.FromEcho(c)

	member, ok := h.requireClient(c)
	if !ok {
		return nil
	}

	var req struct {
		Name      *string `json:"name"`
		OwnerName *string `json:"owner_name"`
		Phone     *string `json:"phone"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	updates := map[string]interface{}{}
	if req.Name != nil && *req.Name != "" {
		updates["name"] = *req.Name
	}
	if req.OwnerName != nil {
		updates["owner_name"] = *req.OwnerName
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if len(updates) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no updatable fields provided"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	result := database.GetDB().WithContext(c.Request().Context()).
		Model(&model.Practice{}).Where("id = ?", member.PracticeID).Updates(updates)
	if result.Error != nil {
		log.Error("practice update failed", zap.Uint("practice_id", member.PracticeID), zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}

	var practice model.Practice
	if result := database.GetDB().WithContext(c.Request().Context()).First(&practice, member.PracticeID); result.Error != nil {
		log.Error("practice reload failed", zap.Uint("practice_id", member.PracticeID), zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": practice})
}

// ListPractices returns every practice. Admin-only; runs on the elevated
// connection, which is safe here because the whole route group sits behind
// the admin gate and the handler re-checks the attachment itself.
func (h *Handler) ListPractices(c echo.Context) error {
	if _, ok := h.requireAdmin(c); !ok {
		return nil
	}

	elevated, err := h.elevated()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store unavailable"})
	}

	query := elevated.WithContext(c.Request().Context()).Order("created_at DESC")
	if status := c.QueryParam("status"); status != "" {
		if !model.ValidStatus(model.PracticeStatus(status)) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
		}
		query = query.Where("status = ?", status)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var practices []model.Practice
	if result := query.Find(&practices); result.Error != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list practices"})
	}

	return c.JSON(http.StatusOK, echo.Map{"data": practices})
}

// CreatePractice onboards a practice on behalf of a customer: identity plus
// tenant plus membership through the saga. The generated temporary password
// is returned exactly once and never persisted in clear.
func (h *Handler) CreatePractice(c echo.Context) error {
	log := logger.FromEcho(c)

	admin, ok := h.requireAdmin(c)
	if !ok {
		return nil
	}
	if admin.Role == model.RoleViewer {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "insufficient role"})
	}

	var req struct {
		Email        string             `json:"email"`
		PracticeName string             `json:"practice_name"`
		OwnerName    string             `json:"owner_name"`
		Phone        string             `json:"phone"`
		Plan         model.PracticePlan `json:"plan"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Email == "" || req.PracticeName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and practice_name are required"})
	}
	if req.Plan != "" && !model.ValidPlan(req.Plan) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown plan"})
	}

	tempPassword := generateTempPassword()

	practice, member, err := h.onboardPractice(c.Request().Context(), log, onboardInput{
		Email:        req.Email,
		Password:     tempPassword,
		PracticeName: req.PracticeName,
		OwnerName:    req.OwnerName,
		Phone:        req.Phone,
		Plan:         req.Plan,
	})
	if err != nil {
		if errors.Is(err, identity.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		}
		log.Error("admin onboarding failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "onboarding failed"})
	}

	log.Info("practice onboarded by admin",
		zap.Uint("practice_id", practice.ID),
		zap.Uint("admin_id", admin.ID))

	return c.JSON(http.StatusCreated, echo.Map{"data": echo.Map{
		"practice":           practice,
		"user":               echo.Map{"id": member.ID, "email": member.Email},
		"temporary_password": tempPassword,
	}})
}

// AdminUpdatePractice edits operator-managed practice fields: status, plan,
// and the AI platform identifiers.
func (h *Handler) AdminUpdatePractice(c echo.Context) error {
	log := logger.FromEcho(c)

	admin, ok := h.requireAdmin(c)
	if !ok {
		return nil
	}
	if admin.Role == model.RoleViewer {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "insufficient role"})
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid practice id"})
	}

	var req struct {
		Status          *model.PracticeStatus `json:"status"`
		Plan            *model.PracticePlan   `json:"plan"`
		AIPhoneNumber   *string               `json:"ai_phone_number"`
		VapiAssistantID *string               `json:"vapi_assistant_id"`
		TrialEndsAt     *time.Time            `json:"trial_ends_at"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	updates := map[string]interface{}{}
	if req.Status != nil {
		if !model.ValidStatus(*req.Status) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
		}
		updates["status"] = *req.Status
	}
	if req.Plan != nil {
		if !model.ValidPlan(*req.Plan) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown plan"})
		}
		updates["plan"] = *req.Plan
	}
	if req.AIPhoneNumber != nil {
		updates["ai_phone_number"] = *req.AIPhoneNumber
	}
	if req.VapiAssistantID != nil {
		updates["vapi_assistant_id"] = *req.VapiAssistantID
	}
	if req.TrialEndsAt != nil {
		updates["trial_ends_at"] = *req.TrialEndsAt
	}
	if len(updates) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no updatable fields provided"})
	}

	elevated, err := h.elevated()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store unavailable"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	result := elevated.WithContext(c.Request().Context()).
		Model(&model.Practice{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		log.Error("practice update failed", zap.Uint64("practice_id", id), zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	if result.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "practice not found"})
	}

	var practice model.Practice
	if result := elevated.WithContext(c.Request().Context()).First(&practice, id); result.Error != nil {
		log.Error("practice reload failed", zap.Uint64("practice_id", id), zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": practice})
}
