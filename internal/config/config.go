// Package config provides configuration for the application
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Logging  LoggingConfig
	CORS     CORSConfig
	JWT      JWTConfig
	Uploads  UploadsConfig
	Tags     TagsConfig
	Owner    OwnerConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port           int
	MaxRequestSize int64
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string
}

// JWTConfig holds session token configuration
type JWTConfig struct {
	Secret      string
	Issuer      string
	Audience    string
	TokenExpiry time.Duration
}

// UploadsConfig holds blob store settings
type UploadsConfig struct {
	Dir          string
	WriteRetries int
	RetryBackoff time.Duration
}

// TagsConfig holds tag maintenance settings
type TagsConfig struct {
	// PruneSchedule is a standard cron expression, empty disables scheduled pruning
	PruneSchedule string
}

// OwnerConfig names the account that receives ADMIN and OWNER without an existing owner
type OwnerConfig struct {
	Email string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	godotenv.Load()

	cfg := &Config{}

	// Database configuration
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		return nil, fmt.Errorf("DB_HOST is required")
	}
	cfg.Database.Host = dbHost

	dbPortStr := os.Getenv("DB_PORT")
	if dbPortStr == "" {
		return nil, fmt.Errorf("DB_PORT is required")
	}
	dbPort, err := strconv.Atoi(dbPortStr)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	cfg.Database.Port = dbPort

	dbUser := os.Getenv("DB_USER")
	if dbUser == "" {
		return nil, fmt.Errorf("DB_USER is required")
	}
	cfg.Database.User = dbUser

	dbPassword := os.Getenv("DB_PASSWORD")
	if dbPassword == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	cfg.Database.Password = dbPassword

	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		return nil, fmt.Errorf("DB_NAME is required")
	}
	cfg.Database.DBName = dbName

	// Server configuration
	serverPortStr := os.Getenv("SERVER_PORT")
	if serverPortStr == "" {
		serverPortStr = "8080" // default port
	}
	serverPort, err := strconv.Atoi(serverPortStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}
	cfg.Server.Port = serverPort

	maxRequestSizeStr := os.Getenv("MAX_REQUEST_SIZE")
	if maxRequestSizeStr == "" {
		maxRequestSizeStr = "10485760" // 10MB
	}
	maxRequestSize, err := strconv.ParseInt(maxRequestSizeStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_REQUEST_SIZE: %w", err)
	}
	cfg.Server.MaxRequestSize = maxRequestSize

	// Logging configuration
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info" // default level
	}
	cfg.Logging.Level = logLevel

	// CORS configuration
	cfg.CORS.AllowedOrigins = parseOrigins(os.Getenv("CORS_ALLOWED_ORIGINS"))

	// JWT configuration
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	cfg.JWT.Secret = jwtSecret

	jwtIssuer := os.Getenv("JWT_ISSUER")
	if jwtIssuer == "" {
		jwtIssuer = "blog-backend"
	}
	cfg.JWT.Issuer = jwtIssuer

	jwtAudience := os.Getenv("JWT_AUDIENCE")
	if jwtAudience == "" {
		jwtAudience = "blog-frontend"
	}
	cfg.JWT.Audience = jwtAudience

	// Session token expiry (default: 1 hour, matches the session cookie lifetime)
	expiryStr := os.Getenv("JWT_TOKEN_EXPIRY")
	if expiryStr == "" {
		expiryStr = "1h"
	}
	expiry, err := time.ParseDuration(expiryStr)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_TOKEN_EXPIRY: %w", err)
	}
	cfg.JWT.TokenExpiry = expiry

	// Uploads configuration
	uploadsDir := os.Getenv("UPLOADS_DIR")
	if uploadsDir == "" {
		uploadsDir = "wwwroot/uploads"
	}
	cfg.Uploads.Dir = uploadsDir

	retriesStr := os.Getenv("UPLOADS_WRITE_RETRIES")
	if retriesStr == "" {
		retriesStr = "3"
	}
	retries, err := strconv.Atoi(retriesStr)
	if err != nil {
		return nil, fmt.Errorf("invalid UPLOADS_WRITE_RETRIES: %w", err)
	}
	if retries < 1 {
		return nil, fmt.Errorf("UPLOADS_WRITE_RETRIES must be at least 1")
	}
	cfg.Uploads.WriteRetries = retries

	backoffStr := os.Getenv("UPLOADS_RETRY_BACKOFF")
	if backoffStr == "" {
		backoffStr = "100ms"
	}
	backoff, err := time.ParseDuration(backoffStr)
	if err != nil {
		return nil, fmt.Errorf("invalid UPLOADS_RETRY_BACKOFF: %w", err)
	}
	cfg.Uploads.RetryBackoff = backoff

	// Bootstrap owner account (optional)
	cfg.Owner.Email = strings.TrimSpace(os.Getenv("OWNER_EMAIL"))

	// Orphan tag cleanup (optional)
	cfg.Tags.PruneSchedule = strings.TrimSpace(os.Getenv("TAG_PRUNE_SCHEDULE"))

	return cfg, nil
}

// parseOrigins splits a comma-separated origin list.
// An empty or blank list allows all origins (for development); session cookies are
// then not sent cross-origin, see middleware.CORSMiddleware.
func parseOrigins(raw string) []string {
	if raw == "" {
		return []string{"*"}
	}

	origins := make([]string, 0)
	for _, origin := range strings.Split(raw, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// DSN returns the database connection string
func (c *Config) DSN() string {
	if c.Database.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
	)
}
