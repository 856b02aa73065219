package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string
	EnableCORS    bool

	// Store configuration
	StoreBackend  string // "dynamodb" or "memory"
	AWSRegion     string
	DynamoDBTable string
	GraphIndex    string // GSI for lookups by graph identity across tenants

	// Controller configuration
	ControllerEndpoint string
	ControllerUsername string
	ControllerPassword string
	ControllerTimeout  time.Duration
	ControllerRetries  int

	// Lifecycle policy
	AllowFailedResubmit bool
	StaleAfter          time.Duration
	PurgeDeleted        bool

	// Authentication
	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration

	// Users maps configured credentials to tenant scopes until an
	// external identity service replaces it
	Users []UserEntry

	// Logging
	LogLevel string

	// Tracing
	EnableTracing bool
}

// UserEntry is one configured principal
type UserEntry struct {
	Username string
	Password string
	TenantID string

	// Resources are the pre-existing endpoint resources the tenant owns
	Resources []string

	// Roles grants beyond the default tenant role
	Roles []string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),

		StoreBackend:  getEnv("STORE_BACKEND", "dynamodb"),
		AWSRegion:     getEnv("AWS_REGION", "us-west-2"),
		DynamoDBTable: getEnv("TABLE_NAME", "nffg-graphs"),
		GraphIndex:    getEnv("GRAPH_INDEX_NAME", "GraphIndex"),

		ControllerEndpoint: getEnv("CONTROLLER_ENDPOINT", "http://localhost:8181"),
		ControllerUsername: getEnv("CONTROLLER_USERNAME", "admin"),
		ControllerPassword: getEnv("CONTROLLER_PASSWORD", "admin"),
		ControllerTimeout:  getEnvDuration("CONTROLLER_TIMEOUT", 10*time.Second),
		ControllerRetries:  getEnvInt("CONTROLLER_RETRIES", 2),

		AllowFailedResubmit: getEnvBool("ALLOW_FAILED_RESUBMIT", false),
		StaleAfter:          getEnvDuration("STALE_AFTER", 30*time.Second),
		PurgeDeleted:        getEnvBool("PURGE_DELETED", false),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "nffg-orchestrator"),
		TokenTTL:  getEnvDuration("TOKEN_TTL", 24*time.Hour),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		EnableTracing: getEnvBool("ENABLE_XRAY", false),
	}

	users, err := parseUsers(getEnv("AUTH_USERS", ""))
	if err != nil {
		return nil, err
	}
	cfg.Users = users

	// Outside production a missing secret falls back to a fixed dev
	// value so the server can start without any environment setup.
	if cfg.JWTSecret == "" && cfg.Environment != "production" {
		cfg.JWTSecret = "insecure-dev-secret"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required configuration
func (c *Config) Validate() error {
	if c.StoreBackend != "dynamodb" && c.StoreBackend != "memory" {
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	if c.StoreBackend == "dynamodb" && c.DynamoDBTable == "" {
		return fmt.Errorf("TABLE_NAME is required for the dynamodb backend")
	}
	if c.Environment == "production" && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.ControllerEndpoint == "" {
		return fmt.Errorf("CONTROLLER_ENDPOINT is required")
	}
	return nil
}

// parseUsers parses AUTH_USERS entries of the form
// "username:password:tenant[:res1;res2[:role1;role2]]" separated by commas.
func parseUsers(raw string) ([]UserEntry, error) {
	if raw == "" {
		return nil, nil
	}
	var users []UserEntry
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return nil, fmt.Errorf("malformed AUTH_USERS entry %q", entry)
		}
		user := UserEntry{
			Username: parts[0],
			Password: parts[1],
			TenantID: parts[2],
		}
		if len(parts) > 3 && parts[3] != "" {
			user.Resources = strings.Split(parts[3], ";")
		}
		if len(parts) > 4 && parts[4] != "" {
			user.Roles = strings.Split(parts[4], ";")
		}
		users = append(users, user)
	}
	return users, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
