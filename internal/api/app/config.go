package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	JWTSecret string // Required: HMAC key for signing tokens
	Issuer    string // Optional: issuer claim for tokens (default: learninpublic)

	AccessTokenTTL  time.Duration // Optional: access token lifetime (default: 15m)
	RefreshTokenTTL time.Duration // Optional: refresh token lifetime (default: 30 days)

	DatabaseFile string // Optional: path to SQLite database file (default: ./scheduler.db)
	PepperFile   string // Optional: path to file containing pepper for password hashing (default: ./pepper)

	GeminiAPIKey string // Required for post generation
	GeminiModel  string // Optional: Gemini model name (default set in ai package)

	LinkedInClientID     string // Required for the LinkedIn OAuth flow
	LinkedInClientSecret string
	LinkedInRedirectURI  string
	MobileCallbackURL    string // Optional: app-scheme URL the OAuth callback redirects to

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
	PublishInterval      time.Duration // Due-post publishing interval (default: 1m)
}

func LoadConfig() Config {
	return Config{
		JWTSecret:       os.Getenv("JWT_SECRET"),
		Issuer:          getEnvOrDefault("TOKEN_ISSUER", "learninpublic"),
		AccessTokenTTL:  getEnvDurationOrDefault("ACCESS_TOKEN_TTL", 0),
		RefreshTokenTTL: getEnvDurationOrDefault("REFRESH_TOKEN_TTL", 0),

		DatabaseFile: getEnvOrDefault("DATABASE_FILE", "scheduler.db"),
		PepperFile:   getEnvOrDefault("PEPPER_FILE", "pepper"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  os.Getenv("GEMINI_MODEL"),

		LinkedInClientID:     os.Getenv("LINKEDIN_CLIENT_ID"),
		LinkedInClientSecret: os.Getenv("LINKEDIN_CLIENT_SECRET"),
		LinkedInRedirectURI:  os.Getenv("LINKEDIN_REDIRECT_URI"),
		MobileCallbackURL:    getEnvOrDefault("MOBILE_CALLBACK_URL", "learninpublic://callback"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		PublishInterval:      getEnvDurationOrDefault("PUBLISH_INTERVAL", time.Minute),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
