// Package postgres implements the PostgreSQL-backed repositories for the
// limitd rate limiting service.
package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/limitd/limitd/internal/config"
	"github.com/limitd/limitd/internal/domain/models"
	"github.com/limitd/limitd/pkg/logger"
)

// NewDBConnection opens the GORM connection pool and runs schema migration.
func NewDBConnection(cfg *config.DatabaseConfig, log logger.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}

	if cfg.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxConnLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxConnLifetime) * time.Minute)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Info(context.Background(), "PostgreSQL connection established",
		logger.String("host", cfg.Host),
		logger.Int("port", cfg.Port),
		logger.String("database", cfg.Database),
	)

	return db, nil
}

// Migrate creates or updates the schema for all owned tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.RateLimitConfig{},
		&models.ConfigChangeRecord{},
		&models.UsageSample{},
		&models.Application{},
		&models.Role{},
		&models.Service{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
