package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dentline/frontdesk/internal/identity"
	"github.com/dentline/frontdesk/internal/model"
	"github.com/dentline/frontdesk/pkg/database"
	"github.com/dentline/frontdesk/pkg/logger"
	"github.com/dentline/frontdesk/prometheus"
)

// CreateBooking accepts a lead from the marketing site. Public endpoint:
// leads precede tenant assignment. The row is only ever readable through the
// admin listing.
func (h *Handler) CreateBooking(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.BookingCounter.Inc()

	var req struct {
		FirstName string            `json:"first_name"`
		LastName  string            `json:"last_name"`
		Email     string            `json:"email"`
		Phone     string            `json:"phone"`
		Goal      model.BookingGoal `json:"goal"`
		Details   string            `json:"details"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.FirstName == "" || req.LastName == "" || req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "first_name, last_name and email are required"})
	}

	goal := req.Goal
	if goal == "" {
		goal = model.GoalOther
	}
	if !model.ValidBookingGoal(goal) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown goal"})
	}

	booking := model.BookingRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:     req.Phone,
		Goal:      goal,
		Details:   req.Details,
		Status:    model.BookingStatusPending,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := database.GetDB().WithContext(c.Request().Context()).Create(&booking); result.Error != nil {
		log.Error("failed to store booking request", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "booking failed"})
	}

	log.Info("booking request received",
		zap.Uint("booking_id", booking.ID),
		zap.String("goal", string(booking.Goal)))

	// Echo back only the id; the record itself is admin-visible.
	return c.JSON(http.StatusOK, echo.Map{"data": echo.Map{"id": booking.ID}})
}

// ListBookings returns leads for the admin console, optionally filtered by
// status.
func (h *Handler) ListBookings(c echo.Context) error {
	if _, ok := h.requireAdmin(c); !ok {
		return nil
	}

	elevated, err := h.elevated()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store unavailable"})
	}

	query := elevated.WithContext(c.Request().Context()).Order("created_at DESC")
	if status := c.QueryParam("status"); status != "" {
		if !model.ValidBookingStatus(model.BookingStatus(status)) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
		}
		query = query.Where("status = ?", status)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var bookings []model.BookingRequest
	if result := query.Find(&bookings); result.Error != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list bookings"})
	}

	return c.JSON(http.StatusOK, echo.Map{"data": bookings})
}

// UpdateBooking moves a lead through the funnel and edits notes.
func (h *Handler) UpdateBooking(c echo.Context) error {
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
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	var req struct {
		Status *model.BookingStatus `json:"status"`
		Notes  *string              `json:"notes"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	updates := map[string]interface{}{}
	if req.Status != nil {
		if !model.ValidBookingStatus(*req.Status) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
		}
		updates["status"] = *req.Status
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
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
		Model(&model.BookingRequest{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		log.Error("booking update failed", zap.Uint64("booking_id", id), zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	if result.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	}

	var booking model.BookingRequest
	if result := elevated.WithContext(c.Request().Context()).First(&booking, id); result.Error != nil {
		log.Error("booking reload failed", zap.Uint64("booking_id", id), zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": booking})
}

// ConvertBooking turns a lead into a live practice: identity, practice and
// owner membership through the onboarding saga, then the lead is marked
// completed. The temporary password appears in this response and nowhere
// else.
func (h *Handler) ConvertBooking(c echo.Context) error {
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
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	elevated, err := h.elevated()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store unavailable"})
	}

	var booking model.BookingRequest
	if result := elevated.WithContext(c.Request().Context()).First(&booking, id); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	}
	if booking.Status == model.BookingStatusCompleted {
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking already converted"})
	}

	var req struct {
		PracticeName string `json:"practice_name"`
	}
	// Body is optional; default the practice name from the lead.
	_ = c.Bind(&req)
	practiceName := req.PracticeName
	if practiceName == "" {
		practiceName = booking.FirstName + " " + booking.LastName + " Dental"
	}

	tempPassword := generateTempPassword()

	practice, member, err := h.onboardPractice(c.Request().Context(), log, onboardInput{
		Email:        booking.Email,
		Password:     tempPassword,
		PracticeName: practiceName,
		OwnerName:    booking.FirstName + " " + booking.LastName,
		Phone:        booking.Phone,
	})
	if err != nil {
		if errors.Is(err, identity.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		}
		log.Error("lead conversion failed", zap.Uint64("booking_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "conversion failed"})
	}

	// The lead transition is best effort once the tenant exists: a completed
	// conversion with a stale lead status beats undoing a live tenant.
	if err := elevated.WithContext(c.Request().Context()).Model(&booking).Update("status", model.BookingStatusCompleted).Error; err != nil {
		log.Error("failed to mark booking completed", zap.Uint64("booking_id", id), zap.Error(err))
	}

	prometheus.ConversionCounter.Inc()
	log.Info("lead converted",
		zap.Uint64("booking_id", id),
		zap.Uint("practice_id", practice.ID),
		zap.Uint("admin_id", admin.ID))

	return c.JSON(http.StatusCreated, echo.Map{"data": echo.Map{
		"practice":           practice,
		"user":               echo.Map{"id": member.ID, "email": member.Email},
		"temporary_password": tempPassword,
	}})
}

// generateTempPassword returns a one-time credential for admin-driven
// onboarding. Only the bcrypt hash is ever persisted.
func generateTempPassword() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
}
