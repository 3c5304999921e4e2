// ============================================================================
// backend/internal/shared/config.go
// Configuration loading (godotenv + viper) and environment helpers
// ============================================================================

package shared

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ============================================================================
// Configuration Structs
// ============================================================================

// ServiceConfig holds the configuration for the API server and the seeder
type ServiceConfig struct {
	ServiceName string
	HTTPPort    string
	OpsPort     string // gRPC health + reflection
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error

	// MongoDB Configuration
	MongoDB MongoConfig

	// Redis Configuration (optional principal cache)
	Redis RedisConfig

	// Security Configuration
	Security SecurityConfig

	// CORS Configuration
	CORS CORSConfig

	// IDAllocation selects the strategy for ACC/TTB identifiers: counter or probe
	IDAllocation string

	// UploadMaxBytes caps multipart grade sheet uploads
	UploadMaxBytes int64
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	JWTSecret          string
	JWTExpirationHours int
	BCryptCost         int // BCrypt hashing cost (10-12 recommended)
	DefaultStudentPass string
}

// RedisConfig holds the optional Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int // in seconds
}

const (
	AllocationCounter = "counter"
	AllocationProbe   = "probe"
)

// ============================================================================
// Configuration Loading Functions
// ============================================================================

// LoadEnv loads environment variables from .env file
func LoadEnv(envFile string) error {
	if envFile == "" {
		envFile = ".env"
	}

	if err := godotenv.Load(envFile); err != nil {
		log.Printf("WARN: %s file not found, using system environment variables", envFile)
		return err
	}

	log.Printf("INFO: loaded environment from %s", envFile)
	return nil
}

// newViper returns a viper instance with every default registered so that
// AutomaticEnv can resolve the keys from the process environment.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	v.SetDefault("http_port", "8080")
	v.SetDefault("ops_port", "50051")
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("mongo_uri", "")
	v.SetDefault("mongo_db_name", "school")
	v.SetDefault("mongo_connect_timeout", 20*time.Second)
	v.SetDefault("mongo_max_pool_size", 50)
	v.SetDefault("mongo_min_pool_size", 5)
	v.SetDefault("mongo_max_idle_time", 30*time.Second)

	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("principal_cache_ttl", 10*time.Minute)

	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_expiration_hours", 24)
	v.SetDefault("bcrypt_cost", 10)
	v.SetDefault("default_student_password", "")

	v.SetDefault("cors_allowed_origins", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("cors_allowed_methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	v.SetDefault("cors_allowed_headers", "Accept,Authorization,Content-Type,X-CSRF-Token")
	v.SetDefault("cors_allow_credentials", true)
	v.SetDefault("cors_max_age", 300)

	v.SetDefault("id_allocation", AllocationCounter)
	v.SetDefault("upload_max_bytes", int64(5<<20))

	v.AutomaticEnv()
	return v
}

// LoadServiceConfig loads the service configuration from the environment
func LoadServiceConfig(serviceName string) (*ServiceConfig, error) {
	v := newViper()

	config := &ServiceConfig{
		ServiceName:    serviceName,
		HTTPPort:       v.GetString("http_port"),
		OpsPort:        v.GetString("ops_port"),
		Environment:    v.GetString("environment"),
		LogLevel:       v.GetString("log_level"),
		IDAllocation:   strings.ToLower(v.GetString("id_allocation")),
		UploadMaxBytes: v.GetInt64("upload_max_bytes"),
	}

	mongoURI := v.GetString("mongo_uri")
	if mongoURI == "" {
		return nil, fmt.Errorf("MONGO_URI environment variable is required")
	}

	config.MongoDB = MongoConfig{
		URI:            mongoURI,
		Database:       v.GetString("mongo_db_name"),
		ConnectTimeout: v.GetDuration("mongo_connect_timeout"),
		MaxPoolSize:    uint64(v.GetInt("mongo_max_pool_size")),
		MinPoolSize:    uint64(v.GetInt("mongo_min_pool_size")),
		MaxIdleTime:    v.GetDuration("mongo_max_idle_time"),
	}

	config.Redis = RedisConfig{
		Addr:     v.GetString("redis_addr"),
		Password: v.GetString("redis_password"),
		DB:       v.GetInt("redis_db"),
		CacheTTL: v.GetDuration("principal_cache_ttl"),
	}

	config.Security = SecurityConfig{
		JWTSecret:          v.GetString("jwt_secret"),
		JWTExpirationHours: v.GetInt("jwt_expiration_hours"),
		BCryptCost:         v.GetInt("bcrypt_cost"),
		DefaultStudentPass: v.GetString("default_student_password"),
	}

	config.CORS = CORSConfig{
		AllowedOrigins:   splitList(v.GetString("cors_allowed_origins")),
		AllowedMethods:   splitList(v.GetString("cors_allowed_methods")),
		AllowedHeaders:   splitList(v.GetString("cors_allowed_headers")),
		AllowCredentials: v.GetBool("cors_allow_credentials"),
		MaxAge:           v.GetInt("cors_max_age"),
	}

	if config.Security.JWTSecret == "" && serviceName == "api" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required for the api server")
	}

	return config, nil
}

// ============================================================================
// Environment Variable Helper Functions
// ============================================================================

// GetEnv retrieves an environment variable or returns a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// splitList splits a comma-separated value, dropping empty items
func splitList(value string) []string {
	var result []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// ============================================================================
// Configuration Validation
// ============================================================================

// ValidateServiceConfig validates service configuration
func ValidateServiceConfig(config *ServiceConfig) error {
	if config.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}

	if config.HTTPPort == "" {
		return fmt.Errorf("HTTP port is required")
	}

	if config.MongoDB.URI == "" {
		return fmt.Errorf("MongoDB URI is required")
	}

	if config.MongoDB.Database == "" {
		return fmt.Errorf("MongoDB database name is required")
	}

	switch config.IDAllocation {
	case AllocationCounter, AllocationProbe:
	default:
		return fmt.Errorf("ID_ALLOCATION must be %q or %q, got %q", AllocationCounter, AllocationProbe, config.IDAllocation)
	}

	if config.Security.BCryptCost < 4 || config.Security.BCryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST out of range: %d", config.Security.BCryptCost)
	}

	return nil
}

// ============================================================================
// Configuration Display (for debugging)
// ============================================================================

// PrintConfig prints configuration (sanitized) for debugging
func PrintConfig(config *ServiceConfig) {
	log.Println("=== Service Configuration ===")
	log.Printf("Service Name: %s", config.ServiceName)
	log.Printf("HTTP Port: %s", config.HTTPPort)
	log.Printf("Ops Port: %s", config.OpsPort)
	log.Printf("Environment: %s", config.Environment)
	log.Printf("Log Level: %s", config.LogLevel)
	log.Printf("ID Allocation: %s", config.IDAllocation)
	log.Println("=== MongoDB Configuration ===")
	log.Printf("Database: %s", config.MongoDB.Database)
	log.Printf("Max Pool Size: %d", config.MongoDB.MaxPoolSize)
	log.Printf("Min Pool Size: %d", config.MongoDB.MinPoolSize)
	log.Println("=== Redis Configuration ===")
	if config.Redis.Addr == "" {
		log.Println("Principal cache: disabled")
	} else {
		log.Printf("Principal cache: %s (ttl %v)", config.Redis.Addr, config.Redis.CacheTTL)
	}
	log.Println("=== Security Configuration ===")
	log.Printf("JWT Expiration: %d hours", config.Security.JWTExpirationHours)
	log.Printf("BCrypt Cost: %d", config.Security.BCryptCost)
	log.Println("=== CORS Configuration ===")
	log.Printf("Allowed Origins: %v", config.CORS.AllowedOrigins)
	log.Printf("Allow Credentials: %t", config.CORS.AllowCredentials)
	log.Println("=============================")
}

// IsDevelopment checks if running in development environment
func IsDevelopment(config *ServiceConfig) bool {
	return config.Environment == "development"
}
