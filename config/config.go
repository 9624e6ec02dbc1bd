package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	DatabaseURL    string
	DatabaseDriver string
	Port           string
	GoEnv          string
	AppURL         string
	LogLevel       string

	SessionSecret   string
	SessionIssuer   string
	SessionAudience string
	SessionTTL      time.Duration

	SMTPHost         string
	SMTPPort         string
	SMTPUser         string
	SMTPPassword     string
	SMTPFrom         string
	ContactRecipient string

	StorageDriver      string
	StoragePublicURL   string
	UploadFallbackURL  string
	AWSRegion          string
	AWSS3Bucket        string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	MinioEndpoint      string
	MinioAccessKey     string
	MinioSecretKey     string
	MinioUseSSL        bool

	RedisURL           string
	CORSAllowedOrigins []string
}

var appConfig *Config

// Load loads the configuration from environment variables
// It automatically determines which .env file to load based on GO_ENV
func Load() (*Config, error) {
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	// Try to load environment-specific file first
	envFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envFile); err != nil {
		if err := godotenv.Load(); err != nil {
			// In production environment variables are set directly
			log.Printf("No .env file found, using system environment variables")
		}
	} else {
		log.Printf("Loaded configuration from %s", envFile)
	}

	config := &Config{
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		DatabaseDriver: getEnv("DB_DRIVER", "postgres"),
		Port:           getEnv("PORT", "8080"),
		GoEnv:          getEnv("GO_ENV", "development"),
		AppURL:         strings.TrimRight(getEnv("APP_URL", "https://therusticroots.com.au"), "/"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		SessionSecret:   getEnv("SESSION_SECRET", ""),
		SessionIssuer:   getEnv("SESSION_ISSUER", "rustic-roots-api"),
		SessionAudience: getEnv("SESSION_AUDIENCE", "rustic-roots-storefront"),
		SessionTTL:      getEnvDuration("SESSION_TTL", 30*24*time.Hour),

		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         getEnv("SMTP_PORT", "587"),
		SMTPUser:         getEnv("SMTP_USER", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:         getEnv("SMTP_FROM", ""),
		ContactRecipient: getEnv("CONTACT_RECIPIENT", "admin@therusticroots.com.au"),

		StorageDriver:      getEnv("STORAGE_DRIVER", "s3"),
		StoragePublicURL:   strings.TrimRight(getEnv("STORAGE_PUBLIC_URL", ""), "/"),
		UploadFallbackURL:  getEnv("UPLOAD_FALLBACK_URL", ""),
		AWSRegion:          getEnv("AWS_REGION", "ap-southeast-2"),
		AWSS3Bucket:        getEnv("AWS_S3_BUCKET", ""),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		MinioEndpoint:      getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey:     getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:     getEnv("MINIO_SECRET_KEY", ""),
		MinioUseSSL:        getEnvBool("MINIO_USE_SSL", true),

		RedisURL:           getEnv("REDIS_URL", ""),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
	}

	if config.SMTPFrom == "" {
		config.SMTPFrom = config.SMTPUser
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	appConfig = config
	return config, nil
}

// Validate checks that all required configuration values are set.
// Every missing value is reported so a misconfigured deploy fails once.
func (c *Config) Validate() error {
	var errs []error
	require := func(value, name string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}

	require(c.DatabaseURL, "DATABASE_URL")
	require(c.SessionSecret, "SESSION_SECRET")
	require(c.SMTPHost, "SMTP_HOST")
	require(c.SMTPUser, "SMTP_USER")
	require(c.SMTPPassword, "SMTP_PASSWORD")

	switch c.StorageDriver {
	case "s3":
		require(c.AWSS3Bucket, "AWS_S3_BUCKET")
		require(c.AWSRegion, "AWS_REGION")
		require(c.AWSAccessKeyID, "AWS_ACCESS_KEY_ID")
		require(c.AWSSecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	case "minio":
		require(c.AWSS3Bucket, "AWS_S3_BUCKET")
		require(c.MinioEndpoint, "MINIO_ENDPOINT")
		require(c.MinioAccessKey, "MINIO_ACCESS_KEY")
		require(c.MinioSecretKey, "MINIO_SECRET_KEY")
	default:
		errs = append(errs, fmt.Errorf("unsupported STORAGE_DRIVER %q (supported: s3, minio)", c.StorageDriver))
	}

	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q (supported: postgres, sqlite)", c.DatabaseDriver))
	}

	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}

	if len(c.CORSAllowedOrigins) == 0 {
		errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS must list at least one origin"))
	}

	return errors.Join(errs...)
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.GoEnv == "test"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// GetDatabaseURL returns the database URL
func (c *Config) GetDatabaseURL() string {
	return c.DatabaseURL
}

// GetConfig returns the configuration loaded by Load (or set by SetConfig)
func GetConfig() *Config {
	return appConfig
}

// SetConfig sets the configuration instance (primarily for testing)
func SetConfig(cfg *Config) {
	appConfig = cfg
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Invalid boolean for %s=%q, using default %t", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid duration for %s=%q, using default %s", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
