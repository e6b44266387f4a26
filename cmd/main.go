package main

import (
	"context"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/dentline/frontdesk/internal/handler"
	"github.com/dentline/frontdesk/internal/identity"
	"github.com/dentline/frontdesk/internal/jobs"
	"github.com/dentline/frontdesk/internal/middleware"
	"github.com/dentline/frontdesk/internal/model"
	"github.com/dentline/frontdesk/pkg/config"
	"github.com/dentline/frontdesk/pkg/database"
	"github.com/dentline/frontdesk/pkg/jwtutil"
	"github.com/dentline/frontdesk/pkg/logger"
	"github.com/dentline/frontdesk/prometheus"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	if err := logger.InitLogger(cfg); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	log.Info("Starting frontdesk service...", zap.String("environment", cfg.Server.Env))

	// Initialize database
	if err := database.InitDB(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Initialize session token utility
	jwtutil.Initialize(&cfg.JWT)

	// Identity service and handler set
	idSvc := identity.NewService(database.GetDB())
	h := handler.New(cfg, idSvc)

	// Trial expiry sweep runs on the elevated connection; it crosses tenants.
	if elevated, err := database.Elevated(); err != nil {
		log.Warn("trial expiry sweep disabled", zap.Error(err))
	} else {
		jobs.StartTrialExpiry(elevated, log)
	}

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware())
	e.Use(prometheus.MetricsMiddleware())
	e.Use(middleware.Session(middleware.SessionConfig{
		CookieName:   cfg.JWT.CookieName,
		CookieSecure: cfg.JWT.CookieSecure,
		LookupAdmin:  adminLookup,
	}))

	// Public routes
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)

	// Marketing-site surface: credential endpoints and lead capture
	auth := e.Group("/api/auth")
	auth.POST("/login", h.Login)
	auth.POST("/signup", h.Signup)
	auth.POST("/logout", h.Logout)
	auth.POST("/forgot-password", h.ForgotPassword)
	auth.POST("/bootstrap", h.Bootstrap)

	e.POST("/api/bookings", h.CreateBooking)

	// Client dashboard API - session middleware gates these as
	// client-protected; handlers still resolve the tenant themselves
	api := e.Group("/api")
	api.GET("/profile", h.GetProfile)
	api.POST("/change-password", h.ChangePassword)
	api.GET("/practice", h.GetPractice)
	api.PATCH("/practice", h.UpdatePractice)

	// Admin console API - gated as admin-protected by the session
	// middleware; every handler re-derives the caller's admin row
	admin := e.Group("/admin/api")
	admin.GET("/practices", h.ListPractices)
	admin.POST("/practices", h.CreatePractice)
	admin.PATCH("/practices/:id", h.AdminUpdatePractice)
	admin.GET("/bookings", h.ListBookings)
	admin.PATCH("/bookings/:id", h.UpdateBooking)
	admin.POST("/bookings/:id/convert", h.ConvertBooking)
	admin.GET("/admins", h.ListAdminUsers)
	admin.POST("/admins", h.CreateAdminUser)
	admin.PATCH("/admins/:id", h.UpdateAdminRole)
	admin.DELETE("/admins/:id", h.DeleteAdminUser)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}

// adminLookup answers the session middleware's "does this identity have an
// admin attachment" question straight from the store.
func adminLookup(ctx context.Context, identityID uint) (bool, error) {
	var count int64
	err := database.GetDB().WithContext(ctx).
		Model(&model.AdminUser{}).Where("id = ?", identityID).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
