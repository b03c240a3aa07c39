package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	config := GetDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/dataveil/")
	viper.AddConfigPath("$HOME/.dataveil/")

	viper.SetEnvPrefix("DATAVEIL")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Detection.SampleRows <= 0 {
		return fmt.Errorf("invalid detection sample_rows: %d (must be > 0)", config.Detection.SampleRows)
	}

	if config.Detection.MinConfidence < 0 || config.Detection.MinConfidence > 1 {
		return fmt.Errorf("invalid detection min_confidence: %f (must be in [0,1])", config.Detection.MinConfidence)
	}

	if config.Risk.UniquenessThreshold <= 0 || config.Risk.UniquenessThreshold > 1 {
		return fmt.Errorf("invalid risk uniqueness_threshold: %f (must be in (0,1])", config.Risk.UniquenessThreshold)
	}

	if config.Anonymize.BatchSize <= 0 {
		return fmt.Errorf("invalid anonymize batch_size: %d (must be > 0)", config.Anonymize.BatchSize)
	}

	if config.Anonymize.Workers <= 0 {
		return fmt.Errorf("invalid anonymize workers: %d (must be > 0)", config.Anonymize.Workers)
	}

	if len(config.Anonymize.Salt) < 6 {
		return fmt.Errorf("anonymize salt too short: need at least 6 characters")
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	return nil
}

// Watch starts watching the configuration file for changes
func Watch(config *Config, callback func(*Config)) error {
	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) {
		newConfig := GetDefaults()
		if err := viper.Unmarshal(newConfig); err != nil {
			// Log error but don't crash
			return
		}

		if err := validateConfig(newConfig); err != nil {
			return
		}

		callback(newConfig)
	})

	return nil
}
