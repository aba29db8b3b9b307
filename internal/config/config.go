package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Conf holds the application configuration, making it accessible globally.
var Conf *Config

// Config struct is the top-level configuration structure.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Experiment ExperimentConfig `mapstructure:"experiment"`
}

// ServerConfig holds server-related settings.
type ServerConfig struct {
	Port          string `mapstructure:"port"`
	AssetsDir     string `mapstructure:"assets_dir"`
	SessionSecret string `mapstructure:"session_secret"`
}

// DatabaseConfig holds the sqlite database location.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds settings for the logger.
type LoggingConfig struct {
	Directory  string `mapstructure:"directory"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// ExperimentConfig holds the sequencing and protocol knobs.
type ExperimentConfig struct {
	MaterialsPath       string `mapstructure:"materials_path"`
	ExportDir           string `mapstructure:"export_dir"`
	BlockSize           int    `mapstructure:"block_size"`
	MaxConsecutiveTests int    `mapstructure:"max_consecutive_tests"`
	AllocationRetries   int    `mapstructure:"allocation_retries"`
	PracticeTrials      int    `mapstructure:"practice_trials"`
	PracticeQuestions   int    `mapstructure:"practice_questions"`
	BreakFixationMs     int    `mapstructure:"break_fixation_ms"`
}

// setDefaults sets the default values for the configuration.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "5050")
	v.SetDefault("server.assets_dir", "assets")
	v.SetDefault("server.session_secret", "spr-dev-secret")

	// Database defaults
	v.SetDefault("database.path", "data/sessions.db")

	// Logging defaults
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.max_size", 10)   // 10 MB
	v.SetDefault("logging.max_backups", 3) // Keep 3 backups
	v.SetDefault("logging.max_age", 7)     // 7 days
	v.SetDefault("logging.compress", true) // Compress old logs

	// Experiment defaults follow the published design.
	v.SetDefault("experiment.materials_path", "materials/jiang_full_materials_with_fillers_list1_list2.json")
	v.SetDefault("experiment.export_dir", "exports")
	v.SetDefault("experiment.block_size", 20)
	v.SetDefault("experiment.max_consecutive_tests", 3)
	v.SetDefault("experiment.allocation_retries", 50)
	v.SetDefault("experiment.practice_trials", 10)
	v.SetDefault("experiment.practice_questions", 6)
	v.SetDefault("experiment.break_fixation_ms", 3000)
}

// Init initializes the configuration with Viper.
func Init(projectRoot string, log *zap.Logger) error {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// --- File Configuration ---
	v.AddConfigPath(filepath.Join(projectRoot, "config"))
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// --- Environment Variable Binding ---
	v.SetEnvPrefix("SPR") // e.g., SPR_SERVER_PORT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read the initial configuration from the file.
	// It's okay if the file doesn't exist; defaults and env vars will be used.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Unmarshal the config into our global Conf variable
	if err := v.Unmarshal(&Conf); err != nil {
		return fmt.Errorf("unable to decode config into struct: %w", err)
	}

	// Set up a watch for configuration changes for hot-reloading
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info("Configuration file changed, reloading.", zap.String("file", e.Name))
		if err := v.Unmarshal(&Conf); err != nil {
			log.Error("Error reloading configuration", zap.Error(err))
		}
	})

	log.Info("Configuration loaded successfully")
	return nil
}
