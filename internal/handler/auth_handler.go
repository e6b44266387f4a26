package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dentline/frontdesk/internal/identity"
	"github.com/dentline/frontdesk/pkg/database"
	"github.com/dentline/frontdesk/pkg/jwtutil"
	"github.com/dentline/frontdesk/pkg/logger"
	"github.com/dentline/frontdesk/prometheus"
)

// Login authenticates an identity and sets the session cookie. The response
// carries the identity's role attachment so the frontend knows which
// dashboard to send the user to. Unknown email and wrong password are
// indistinguishable in the response.
func (h *Handler) Login(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	ident, err := h.identity.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			log.Warn("login rejected", zap.String("email", req.Email))
			prometheus.RecordAuthError("invalid_credentials")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		log.Error("sign-in failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sign-in failed"})
	}

	token, err := jwtutil.GenerateToken(ident.ID, ident.Email)
	if err != nil {
		log.Error("failed to generate session token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sign-in failed"})
	}
	h.setSessionCookie(c, token)
	prometheus.IncreaseActiveSessions()

	cls, err := classify(c.Request().Context(), database.GetDB(), ident.ID)
	if err != nil {
		// The session is valid either way; classification is advisory here.
		log.Warn("role classification failed", zap.Uint("identity_id", ident.ID), zap.Error(err))
	}

	data := echo.Map{
		"user": echo.Map{"id": ident.ID, "email": ident.Email},
	}
	switch {
	case cls.Admin != nil:
		data["admin"] = echo.Map{"role": cls.Admin.Role, "full_name": cls.Admin.FullName}
	case cls.Client != nil:
		data["practice_id"] = cls.Client.PracticeID
	}

	log.Info("user logged in", zap.Uint("identity_id", ident.ID))
	return c.JSON(http.StatusOK, echo.Map{"data": data})
}

// Signup self-service registers a new practice: identity, practice row, and
// owner membership as one saga-backed unit, then signs the new owner in.
func (h *Handler) Signup(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.SignupCounter.Inc()

	var req struct {
		Email        string `json:"email"`
		Password     string `json:"password"`
		PracticeName string `json:"practice_name"`
		OwnerName    string `json:"owner_name"`
		Phone        string `json:"phone"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Email == "" || req.Password == "" || req.PracticeName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email, password and practice_name are required"})
	}
	if len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	}

	practice, member, err := h.onboardPractice(c.Request().Context(), log, onboardInput{
		Email:        req.Email,
		Password:     req.Password,
		PracticeName: req.PracticeName,
		OwnerName:    req.OwnerName,
		Phone:        req.Phone,
	})
	if err != nil {
		if errors.Is(err, identity.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		}
		log.Error("signup failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "signup failed"})
	}

	token, err := jwtutil.GenerateToken(member.ID, member.Email)
	if err == nil {
		h.setSessionCookie(c, token)
		prometheus.IncreaseActiveSessions()
	}

	return c.JSON(http.StatusCreated, echo.Map{"data": echo.Map{
		"user":     echo.Map{"id": member.ID, "email": member.Email},
		"practice": practice,
	}})
}

// Logout clears the session cookie.
func (h *Handler) Logout(c echo.Context) error {
	h.clearSessionCookie(c)
	prometheus.DecreaseActiveSessions()
	return c.JSON(http.StatusOK, echo.Map{"data": echo.Map{"signed_out": true}})
}

// ForgotPassword accepts a reset request. The response is identical whether
// or not the email exists.
func (h *Handler) ForgotPassword(c echo.Context) error {
	log := logger.FromEcho(c)

	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email is required"})
	}

	exists, err := h.identity.EmailExists(c.Request().Context(), req.Email)
	if err != nil {
		log.Error("reset lookup failed", zap.Error(err))
	} else if exists {
		// Delivery is handled out of band; only the attempt is recorded here.
		log.Info("password reset requested", zap.String("email", req.Email))
	}

	return c.JSON(http.StatusOK, echo.Map{"data": echo.Map{
		"message": "if the email is registered, a reset link has been sent",
	}})
}

// ChangePassword updates the caller's password after verifying the current
// one.
func (h *Handler) ChangePassword(c echo.Context) error {
	log := logger.FromEcho(c)

	id := identityID(c)
	if id == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if len(req.NewPassword) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	}

	if err := h.identity.VerifyPassword(c.Request().Context(), id, req.CurrentPassword); err != nil {
		prometheus.RecordAuthError("invalid_credentials")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	if err := h.identity.UpdatePassword(c.Request().Context(), id, req.NewPassword); err != nil {
		log.Error("password update failed", zap.Uint("identity_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "password update failed"})
	}

	log.Info("password changed", zap.Uint("identity_id", id))
	return c.JSON(http.StatusOK, echo.Map{"data": echo.Map{"updated": true}})
}

// GetProfile returns the caller's identity and role attachment.
func (h *Handler) GetProfile(c echo.Context) error {
	id := identityID(c)
	if id == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	ident, err := h.identity.GetByID(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "profile not found"})
	}

	cls, err := classify(c.Request().Context(), database.GetDB(), id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "profile lookup failed"})
	}

	data := echo.Map{"user": echo.Map{
		"id":              ident.ID,
		"email":           ident.Email,
		"last_sign_in_at": ident.LastSignInAt,
	}}
	switch {
	case cls.Admin != nil:
		data["admin"] = cls.Admin
	case cls.Client != nil:
		data["client"] = cls.Client
	}

	return c.JSON(http.StatusOK, echo.Map{"data": data})
}

func (h *Handler) setSessionCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     h.cfg.JWT.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.JWT.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     h.cfg.JWT.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.cfg.JWT.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
