package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dentline/frontdesk/pkg/database"
	"github.com/dentline/frontdesk/prometheus"
)

// HealthCheck reports service and database health.
func HealthCheck(c echo.Context) error {
	status := "ok"
	code := http.StatusOK

	if db := database.GetDB(); db != nil {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.Ping() != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	return c.JSON(code, echo.Map{"status": status})
}

// MetricsHandler exposes the Prometheus metrics endpoint.
func MetricsHandler(c echo.Context) error {
	handler := prometheus.GetPrometheusHandler()
	handler.ServeHTTP(c.Response(), c.Request())
	return nil
}
