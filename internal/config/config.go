// Package config loads runtime settings from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// RedisConfig holds the optional Redis connection used for sequences.
// An empty Address disables Redis.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// Config holds all runtime settings.
type Config struct {
	DBPath    string
	Addr      string
	AdminUser string
	LogPath   string
	LogLevel  string
	TokenTTL  time.Duration
	Redis     RedisConfig
}

// Load reads a .env file if present, then the environment. Flags parsed
// by the caller override the returned values.
func Load() *Config {
	// A missing .env file is normal outside development.
	_ = godotenv.Load()

	return &Config{
		DBPath:    getEnv("ZAHTEVKI_DB", "zahtevki.sqlite3"),
		Addr:      getEnv("ZAHTEVKI_ADDR", ":8080"),
		AdminUser: getEnv("ZAHTEVKI_ADMIN", "Admin"),
		LogPath:   getEnv("ZAHTEVKI_LOG", ""),
		LogLevel:  getEnv("ZAHTEVKI_LOG_LEVEL", "info"),
		TokenTTL:  getDuration("ZAHTEVKI_TOKEN_TTL", 7*24*time.Hour),
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
