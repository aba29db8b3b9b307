package main

import (
	"github.com/Ryuya-dot-com/SelfPacedReading/internal/config"
	"github.com/Ryuya-dot-com/SelfPacedReading/internal/database"
	"github.com/Ryuya-dot-com/SelfPacedReading/internal/handlers"
	logger "github.com/Ryuya-dot-com/SelfPacedReading/internal/logging"
	"github.com/Ryuya-dot-com/SelfPacedReading/internal/repository"
	"github.com/Ryuya-dot-com/SelfPacedReading/internal/router"

	"go.uber.org/zap"
)

func main() {
	// Initialize Logger with defaults; reconfigured once the config is read.
	log, err := logger.Init("logs", logger.Rotation{})
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}

	// Initialize Configuration
	if err := config.Init(".", log); err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Rebuild the logger against the configured directory and rotation.
	lc := config.Conf.Logging
	log, err = logger.Init(lc.Directory, logger.Rotation{
		MaxSize:    lc.MaxSize,
		MaxBackups: lc.MaxBackups,
		MaxAge:     lc.MaxAge,
		Compress:   lc.Compress,
	})
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	// Initialize Database
	database.Init(log)
	store := repository.New(database.DB)

	// Load materials at startup; a failure is not fatal, the operator can
	// retrigger the load once the file is in place.
	sessionHandler := handlers.NewSessionHandler(log, store, config.Conf.Experiment)
	if err := sessionHandler.LoadBank(config.Conf.Experiment.MaterialsPath); err != nil {
		log.Warn("Materials not loaded; waiting for reload", zap.Error(err))
	}

	// Setup router, passing the logger to it
	r := router.Setup(log, sessionHandler)

	// Start the Gin server
	port := ":" + config.Conf.Server.Port
	log.Info("Server listening on http://localhost" + port)
	if err := r.Run(port); err != nil {
		log.Fatal("Failed to run Gin server", zap.Error(err))
	}
}
