package database

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shrimpynuts/ape-monitor-sub000/internal/models"
)

var DB *gorm.DB

// Initialize opens the shared database and brings the schema up to date
func Initialize(dbPath string) error {
	db, err := Open(dbPath)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open connects to a SQLite file, cleans legacy data and migrates the schema.
// Use ":memory:" for a throwaway database.
func Open(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}

	log.Infof("Database connected successfully (%s)", dbPath)

	// Must run before AutoMigrate adds the unique indexes
	if err := normalizeWalletAddresses(db); err != nil {
		return nil, fmt.Errorf("failed to normalize wallet addresses: %w", err)
	}
	if err := cleanupDuplicateSnapshots(db); err != nil {
		return nil, fmt.Errorf("failed to clean duplicate snapshots: %w", err)
	}

	err = db.AutoMigrate(&models.CollectionStats{}, &models.TrackedWallet{}, &models.PortfolioSnapshot{})
	if err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run data migrations: %w", err)
	}

	log.Info("Database migration completed")
	return db, nil
}

func GetDB() *gorm.DB {
	return DB
}
