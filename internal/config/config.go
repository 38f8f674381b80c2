package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds server and runtime configuration loaded from the
// environment (and an optional .env file).
type Config struct {
	Env             string
	Port            string
	DatabasePath    string
	JWTSecret       string
	CleanupInterval time.Duration
	InactiveAfter   time.Duration
}

// Load reads configuration from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("DATABASE_PATH", "teawars.db")
	viper.SetDefault("JWT_SECRET", "teawars-secret-key")
	viper.SetDefault("CLEANUP_INTERVAL", "5m")
	viper.SetDefault("INACTIVE_AFTER", "30m")

	cleanupInterval, err := time.ParseDuration(viper.GetString("CLEANUP_INTERVAL"))
	if err != nil {
		return nil, err
	}
	inactiveAfter, err := time.ParseDuration(viper.GetString("INACTIVE_AFTER"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Env:             viper.GetString("ENV"),
		Port:            viper.GetString("PORT"),
		DatabasePath:    viper.GetString("DATABASE_PATH"),
		JWTSecret:       viper.GetString("JWT_SECRET"),
		CleanupInterval: cleanupInterval,
		InactiveAfter:   inactiveAfter,
	}, nil
}
