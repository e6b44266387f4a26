// Package jobs holds the scheduled maintenance tasks of the service.
package jobs

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dentline/frontdesk/internal/model"
	"github.com/dentline/frontdesk/prometheus"
)

// StartTrialExpiry runs an hourly sweep pausing practices whose free trial
// has lapsed. The sweep runs on the elevated connection because it crosses
// every tenant; the filter below is the entire authorization story, so keep
// it tight.
func StartTrialExpiry(db *gorm.DB, log *zap.Logger) *cron.Cron {
	c := cron.New()

	_, err := c.AddFunc("@hourly", func() {
		sweepExpiredTrials(db, log)
	})
	if err != nil {
		log.Error("failed to schedule trial expiry sweep", zap.Error(err))
		return c
	}

	c.Start()
	log.Info("trial expiry sweep scheduled")
	return c
}

func sweepExpiredTrials(db *gorm.DB, log *zap.Logger) {
	result := db.Model(&model.Practice{}).
		Where("plan = ?", model.PlanFreeTrial).
		Where("trial_ends_at IS NOT NULL AND trial_ends_at < ?", time.Now()).
		Where("status IN ?", []model.PracticeStatus{
			model.PracticeStatusOnboarding,
			model.PracticeStatusPilot,
			model.PracticeStatusActive,
		}).
		Update("status", model.PracticeStatusPaused)

	if result.Error != nil {
		log.Error("trial expiry sweep failed", zap.Error(result.Error))
		return
	}
	if result.RowsAffected > 0 {
		log.Info("expired trials paused", zap.Int64("count", result.RowsAffected))
	}

	// The sweep is the only job that changes statuses in bulk, so it also
	// refreshes the active-practices gauge.
	var active int64
	err := db.Model(&model.Practice{}).
		Where("status = ?", model.PracticeStatusActive).Count(&active).Error
	if err != nil {
		log.Error("active practice count failed", zap.Error(err))
		return
	}
	prometheus.UpdateActivePractices(int(active))
}
