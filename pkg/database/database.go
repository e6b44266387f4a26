package database

import (
	"fmt"
	"sync"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dentline/frontdesk/internal/identity"
	"github.com/dentline/frontdesk/internal/model"
	"github.com/dentline/frontdesk/pkg/config"
)

var (
	db *gorm.DB

	elevatedOnce sync.Once
	elevatedDB   *gorm.DB
	elevatedErr  error

	cfgSnapshot *config.Config
)

// InitDB initializes the default database connection and migrates the schema.
func InitDB(cfg *config.Config) error {
	// Connect with PreferSimpleProtocol to prevent "prepared statement
	// already exists" errors behind connection poolers.
	pgConfig := postgres.Config{
		DSN:                  cfg.DB.GetDSN(),
		PreferSimpleProtocol: true,
	}

	var err error
	db, err = gorm.Open(postgres.New(pgConfig), &gorm.Config{
		Logger: logger.Default.LogMode(cfg.DB.LogLevel),
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get database connection: %w", err)
	}

	if cfg.DB.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	}
	if cfg.DB.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	}
	if cfg.DB.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)
	}

	// AutoMigrate will automatically create or update the table structure
	// based on our models.
	err = db.AutoMigrate(
		&identity.Identity{},
		&model.Practice{},
		&model.ClientUser{},
		&model.AdminUser{},
		&model.BookingRequest{},
	)
	if err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	cfgSnapshot = cfg
	return nil
}

// GetDB returns the default database instance.
func GetDB() *gorm.DB {
	return db
}

// Elevated returns the service-role connection. Queries on it are not subject
// to the tenant scoping conventions, so every caller must filter explicitly
// by the resolved tenant or be reachable only from admin-gated routes.
//
// The connection is constructed lazily on first use so that environments
// without service-role credentials (local development, CI) can still start
// the application; those environments fall back to the default pool.
func Elevated() (*gorm.DB, error) {
	elevatedOnce.Do(func() {
		if cfgSnapshot == nil || cfgSnapshot.DB.ServiceUser == "" {
			elevatedDB = db
			return
		}
		pgConfig := postgres.Config{
			DSN:                  cfgSnapshot.DB.GetServiceDSN(),
			PreferSimpleProtocol: true,
		}
		elevatedDB, elevatedErr = gorm.Open(postgres.New(pgConfig), &gorm.Config{
			Logger: logger.Default.LogMode(cfgSnapshot.DB.LogLevel),
		})
	})
	if elevatedErr != nil {
		return nil, fmt.Errorf("connect elevated database: %w", elevatedErr)
	}
	return elevatedDB, nil
}
