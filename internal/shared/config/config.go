package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all configuration for our application
type Config struct {
	// Server configuration
	Port           string        `validate:"required,numeric"`
	GinMode        string        `validate:"oneof=debug release test"`
	APIVersion     string        `validate:"required"`
	APIPrefix      string        `validate:"required,startswith=/"`
	ReadTimeout    time.Duration `validate:"gt=0"`
	WriteTimeout   time.Duration `validate:"gt=0"`
	IdleTimeout    time.Duration `validate:"gt=0"`
	MaxHeaderBytes int           `validate:"gt=0"`

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	RateLimit   RateLimitConfig
	Kafka       KafkaConfig
	Reservation ReservationConfig
	Events      EventsConfig

	// Logging
	LogLevel string `validate:"oneof=debug info warn warning error"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string `validate:"required"`
	Port            string `validate:"required,numeric"`
	Name            string `validate:"required"`
	User            string `validate:"required"`
	Password        string
	SSLMode         string `validate:"oneof=disable require verify-ca verify-full prefer allow"`
	MaxIdleConns    int    `validate:"gte=0"`
	MaxOpenConns    int    `validate:"gt=0"`
	ConnMaxLifetime time.Duration
	DSN             string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int `validate:"gte=0,lte=15"`
	Addr     string

	CacheTTL time.Duration `validate:"gt=0"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string        `validate:"required,min=16"`
	JWTExpiresIn     time.Duration `validate:"gt=0"`
	RefreshExpiresIn time.Duration `validate:"gt=0"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled                 bool          `json:"enabled"`
	WindowDuration          time.Duration `json:"window_duration" validate:"gt=0"`
	DefaultRequests         int           `json:"default_requests" validate:"gt=0"`
	PublicRequests          int           `json:"public_requests" validate:"gt=0"`
	AuthRequests            int           `json:"auth_requests" validate:"gt=0"`
	BookingRequests         int           `json:"booking_requests" validate:"gt=0"`
	BookingCriticalRequests int           `json:"booking_critical_requests" validate:"gt=0"`
	UserRequests            int           `json:"user_requests" validate:"gt=0"`
	HealthRequests          int           `json:"health_requests" validate:"gt=0"`
	WhitelistedIPs          []string      `json:"whitelisted_ips" validate:"dive,ip"`
}

// KafkaConfig holds the booking notification pipeline configuration
type KafkaConfig struct {
	Enabled      bool
	Brokers      []string      `validate:"required_if=Enabled true,dive,hostname_port"`
	BookingTopic string        `validate:"required"`
	GroupID      string        `validate:"required"`
	Workers      int           `validate:"gt=0"`
	Timeout      time.Duration `validate:"gt=0"`
}

// ReservationConfig tunes the reservation engine
type ReservationConfig struct {
	Strategy      string        `validate:"oneof=pessimistic optimistic"`
	MaxAttempts   int           `validate:"gte=1,lte=10"`
	BaseBackoff   time.Duration `validate:"gt=0"`
	MaxBackoff    time.Duration `validate:"gtefield=BaseBackoff"`
	CommitTimeout time.Duration `validate:"gt=0"`
}

// EventsConfig holds catalog defaults
type EventsConfig struct {
	FreePassCapacity int `validate:"gt=0"`
	DefaultPageSize  int `validate:"gt=0,lte=100"`
}

// Load loads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		// Server configuration
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		APIVersion:     getEnv("API_VERSION", "v1"),
		APIPrefix:      getEnv("API_PREFIX", "/api"),
		ReadTimeout:    getDurationEnv("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:   getDurationEnv("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:    getDurationEnv("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes: getIntEnv("MAX_HEADER_BYTES", 1<<20), // 1 MB

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "eventbook_db"),
			User:            getEnv("DB_USER", "eventbook_user"),
			Password:        getEnv("DB_PASSWORD", "eventbook_password"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", time.Hour),
		},

		Redis: RedisConfig{
			Enabled:  getBoolEnv("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			CacheTTL: getDurationEnv("REDIS_CACHE_TTL", 2*time.Hour),
		},

		JWT: JWTConfig{
			Secret:           getEnv("JWT_SECRET", "change-me-eventbook-secret"),
			JWTExpiresIn:     getDurationEnvSeconds("JWT_EXPIRES_IN", 15*time.Minute),
			RefreshExpiresIn: getDurationEnvSeconds("JWT_REFRESH_EXPIRES_IN", 24*time.Hour),
		},

		RateLimit: RateLimitConfig{
			Enabled:                 getBoolEnv("RATE_LIMIT_ENABLED", true),
			WindowDuration:          getDurationEnv("RATE_LIMIT_WINDOW_DURATION", 60*time.Second),
			DefaultRequests:         getIntEnv("RATE_LIMIT_DEFAULT_REQUESTS", 60),
			PublicRequests:          getIntEnv("RATE_LIMIT_PUBLIC_REQUESTS", 100),
			AuthRequests:            getIntEnv("RATE_LIMIT_AUTH_REQUESTS", 10),
			BookingRequests:         getIntEnv("RATE_LIMIT_BOOKING_REQUESTS", 20),
			BookingCriticalRequests: getIntEnv("RATE_LIMIT_BOOKING_CRITICAL_REQUESTS", 10),
			UserRequests:            getIntEnv("RATE_LIMIT_USER_REQUESTS", 60),
			HealthRequests:          getIntEnv("RATE_LIMIT_HEALTH_REQUESTS", 300),
			WhitelistedIPs:          getStringSliceEnv("RATE_LIMIT_WHITELISTED_IPS", []string{}),
		},

		Kafka: KafkaConfig{
			Enabled:      getBoolEnv("KAFKA_ENABLED", false),
			Brokers:      getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
			BookingTopic: getEnv("KAFKA_BOOKING_TOPIC", "bookings"),
			GroupID:      getEnv("KAFKA_GROUP_ID", "eventbook-booking-notifier"),
			Workers:      getIntEnv("KAFKA_WORKERS", 2),
			Timeout:      getDurationEnv("KAFKA_TIMEOUT", 10*time.Second),
		},

		Reservation: ReservationConfig{
			Strategy:      getEnv("RESERVATION_STRATEGY", "pessimistic"),
			MaxAttempts:   getIntEnv("RESERVATION_MAX_ATTEMPTS", 4),
			BaseBackoff:   getDurationEnv("RESERVATION_BASE_BACKOFF", 10*time.Millisecond),
			MaxBackoff:    getDurationEnv("RESERVATION_MAX_BACKOFF", 200*time.Millisecond),
			CommitTimeout: getDurationEnv("RESERVATION_COMMIT_TIMEOUT", 5*time.Second),
		},

		Events: EventsConfig{
			FreePassCapacity: getIntEnv("FREE_PASS_CAPACITY", 1000),
			DefaultPageSize:  getIntEnv("EVENTS_DEFAULT_PAGE_SIZE", 10),
		},

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "debug"),
	}

	// Build composite values
	cfg.Database.DSN = buildDatabaseDSN(cfg.Database)
	cfg.Redis.Addr = cfg.Redis.Host + ":" + cfg.Redis.Port

	return cfg
}

// Validate checks the loaded values against their struct tags
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// buildDatabaseDSN builds the database connection string
func buildDatabaseDSN(db DatabaseConfig) string {
	return "host=" + db.Host +
		" port=" + db.Port +
		" user=" + db.User +
		" password=" + db.Password +
		" dbname=" + db.Name +
		" sslmode=" + db.SSLMode
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return fallback
}

// getDurationEnv gets a duration environment variable with a fallback value
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}

// getDurationEnvSeconds reads an integer number of seconds
func getDurationEnvSeconds(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return fallback
}

// getStringSliceEnv gets a comma-separated string environment variable as a slice
func getStringSliceEnv(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		var result []string
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GinMode == "debug"
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return ":" + c.Port
}

// GetAPIBasePath returns the API base path
func (c *Config) GetAPIBasePath() string {
	return c.APIPrefix + "/" + c.APIVersion
}
