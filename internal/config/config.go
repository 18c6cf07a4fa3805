// internal/config/config.go
//
// Typed configuration for the Tradle game host.
// Values come from the process environment; main loads `.env` with godotenv
// before calling Load, so local development can keep settings in a file.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Game      GameConfig
	Handshake HandshakeConfig
	Report    ReportConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP and storage settings.
type ServerConfig struct {
	Port         string
	Env          string // "development" or "production"
	DBPath       string
	Store        string // "sqlite" or "memory"
	JWTSecret    string
	ClientCookie string
	ClientOrigin string
}

// GameConfig holds puzzle settings.
type GameConfig struct {
	ID            string // game identifier sent in handshake requests and reports
	DailySalt     string
	HideImageMode bool // default for the hideImageMode setting
	RotationMode  bool // default for the rotationMode setting
}

// HandshakeConfig holds the cross-frame allow lists.
type HandshakeConfig struct {
	WithHistory        bool // ask the parent for the player's history too
	TrustedOrigins     []string
	TrustedRootDomains []string
}

// ReportConfig holds best-effort telemetry settings.
type ReportConfig struct {
	ScoreURL    string
	IPLookupURL string
	Timeout     time.Duration
	IPHashKey   string

	// Optional DynamoDB archive for collected scores; empty table disables it.
	ArchiveTable  string
	ArchiveRegion string
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string
	Format string // "json" or "console"
}

// Load loads configuration from environment variables with defaults.
func Load() *Config {
	port := getEnv("PORT", "5175")
	return &Config{
		Server: ServerConfig{
			Port:         port,
			Env:          getEnv("ENV", "development"),
			DBPath:       getEnv("DB_PATH", "./data/tradle.db"),
			Store:        getEnv("STORE", "sqlite"),
			JWTSecret:    getEnv("JWT_SECRET", "dev_secret_change_me"),
			ClientCookie: getEnv("CLIENT_COOKIE", "tradle_client"),
			ClientOrigin: getEnv("CLIENT_ORIGIN", "http://localhost:5173"),
		},
		Game: GameConfig{
			ID:            getEnv("GAME_ID", "tradle"),
			DailySalt:     getEnv("DAILY_SALT", "local_dev_salt"),
			HideImageMode: getEnvBool("HIDE_IMAGE_MODE", false),
			RotationMode:  getEnvBool("ROTATION_MODE", false),
		},
		Handshake: HandshakeConfig{
			WithHistory: getEnvBool("HANDSHAKE_HISTORY", true),
			TrustedOrigins: getEnvList("TRUSTED_ORIGINS", []string{
				"https://oec.world",
				"https://dev.oec.world",
				"https://staging.oec.world",
			}),
			TrustedRootDomains: getEnvList("TRUSTED_ROOT_DOMAINS", []string{"oec.world"}),
		},
		Report: ReportConfig{
			ScoreURL:    getEnv("SCORE_URL", "http://localhost:"+port+"/tradle/score"),
			IPLookupURL: getEnv("IP_LOOKUP_URL", "https://geolocation-db.com/json/"),
			Timeout:     time.Duration(getEnvInt("REPORT_TIMEOUT_SECONDS", 10)) * time.Second,
			IPHashKey:   getEnv("IP_HASH_KEY", "local_dev_ip_key"),

			ArchiveTable:  getEnv("SCORE_ARCHIVE_TABLE", ""),
			ArchiveRegion: getEnv("AWS_REGION", "us-east-1"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return ":" + c.Server.Port
}

// getEnv returns an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// getEnvInt returns an environment variable as an integer or a default value.
func getEnvInt(key string, defaultValue int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
