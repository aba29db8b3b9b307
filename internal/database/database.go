package database

import (
	"os"
	"path/filepath"

	"github.com/Ryuya-dot-com/SelfPacedReading/internal/config"
	logging "github.com/Ryuya-dot-com/SelfPacedReading/internal/logging"
	"github.com/Ryuya-dot-com/SelfPacedReading/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func Init(log *zap.Logger) {
	path := config.Conf.Database.Path
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatal("Failed to create database directory", zap.Error(err))
		}
	}

	// Create our custom GORM logger
	gormLogger := logging.NewGormZapLogger(log)
	gormLogger.LogLevel = logger.Warn

	var err error
	DB, err = gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}

	log.Info("Database connection established successfully.", zap.String("path", path))
	runMigrations(log)
}

func runMigrations(log *zap.Logger) {
	// GORM's AutoMigrate will create tables, columns, and foreign keys.
	err := DB.AutoMigrate(
		&models.SessionRecord{},
		&models.EventRecord{},
	)
	if err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}
	log.Info("Database migrations completed successfully.")

	eventsIndex := `CREATE INDEX IF NOT EXISTS idx_events_query ON event_records (session_record_id, phase, event);`
	if err := DB.Exec(eventsIndex).Error; err != nil {
		log.Fatal("Failed to create custom index on event records", zap.Error(err))
	}
	log.Info("Custom indexes ensured successfully.")
}
