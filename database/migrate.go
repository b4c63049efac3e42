package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"payflow_backend/internal/config"
	"payflow_backend/internal/logger"
	"payflow_backend/internal/models"
)

var gormDB *gorm.DB

// ConnectGorm opens the GORM connection using the configured DSN.
func ConnectGorm() (*gorm.DB, error) {
	if gormDB != nil {
		return gormDB, nil
	}

	cfg := config.GetConfig()
	dsn := cfg.Database.DSN

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to GORM: %w", err)
	}

	gormDB = db
	return db, nil
}

// AutoMigrate migrates the payment schema. uuid-ossp provides the
// uuid_generate_v4 column default.
func AutoMigrate() error {
	db, err := ConnectGorm()
	if err != nil {
		return err
	}

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		return fmt.Errorf("failed to create uuid extension: %w", err)
	}

	err = db.AutoMigrate(
		&models.Payment{},
		&models.Transaction{},
		&models.WebhookEvent{},
	)
	if err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}

	logger.Info("AutoMigrate completed")
	return nil
}
