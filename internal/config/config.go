package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the full service configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Cache      CacheConfig
	Redis      RedisConfig
	Log        LogConfig
	CORS       CORSConfig
	Metrics    MetricsConfig
	Auth       AuthConfig
	HL7        HL7Config
	Scheduling SchedulingConfig
	Annotation AnnotationConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	LogLevel string
}

// CacheConfig selects the cache backend
type CacheConfig struct {
	Enabled bool
	Type    string // "redis" or "memory"
}

// RedisConfig holds Redis settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Format string
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// MetricsConfig toggles the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool
}

// AuthConfig holds JWT settings for the staff API
type AuthConfig struct {
	JWTSecret string
}

// HL7Config holds interchange identity, rule documents and counterpart endpoints.
type HL7Config struct {
	Application     string // sending/receiving application name of this RIS
	Facility        string // institution name carried in MSH
	HISName         string // receiving application name of the HIS
	HISAddr         string // host:port of the HIS MLLP listener
	ModalityAET     string // application entity title of the worklist service
	ModalityURL     string // base URL of the worklist service HTTP endpoint
	MessageRules    string // path to the message structure rule document
	SegmentRules    string // path to the segment pattern rule document
	OutboundTimeout time.Duration
}

// SchedulingConfig holds examination slot computation settings
type SchedulingConfig struct {
	ShiftStart string // "08:00"
	ShiftEnd   string // "23:00"
	DayRange   int    // number of days ahead of today to consider
}

// AnnotationConfig holds the report annotation service settings. An empty
// URL disables annotation; reports are then stored without annotations.
type AnnotationConfig struct {
	URL     string
	Timeout time.Duration
}

// Load reads configuration from .env (if present) and the process environment
func Load() (*Config, error) {
	// .env is optional; environment variables win
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "ris"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "ris"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			LogLevel: getEnv("DB_LOG_LEVEL", "warn"),
		},
		Cache: CacheConfig{
			Enabled: getEnvBool("CACHE_ENABLED", true),
			Type:    getEnv("CACHE_TYPE", "memory"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvList("CORS_ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type"}),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		HL7: HL7Config{
			Application:     getEnv("HL7_APPLICATION", "OPENRIS"),
			Facility:        getEnv("HL7_FACILITY", "DEBUG HOSPITAL"),
			HISName:         getEnv("HIS_NAME", "DEBUG HIS"),
			HISAddr:         getEnv("HIS_MLLP_ADDR", "localhost:2575"),
			ModalityAET:     getEnv("MODALITY_AET", "ORTHANC"),
			ModalityURL:     getEnv("MODALITY_URL", "http://localhost:8042"),
			MessageRules:    getEnv("HL7_MESSAGE_RULES", "configs/hl7_messages.json"),
			SegmentRules:    getEnv("HL7_SEGMENT_RULES", "configs/hl7_segments.json"),
			OutboundTimeout: getEnvDuration("HL7_OUTBOUND_TIMEOUT", 15*time.Second),
		},
		Scheduling: SchedulingConfig{
			ShiftStart: getEnv("SHIFT_START", "08:00"),
			ShiftEnd:   getEnv("SHIFT_END", "23:00"),
			DayRange:   getEnvInt("SCHEDULE_DAY_RANGE", 7),
		},
		Annotation: AnnotationConfig{
			URL:     getEnv("ANNOTATION_URL", ""),
			Timeout: getEnvDuration("ANNOTATION_TIMEOUT", 10*time.Second),
		},
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Host == "" || c.Database.DBName == "" {
		return fmt.Errorf("database host and name are required")
	}
	if c.Cache.Enabled && c.Cache.Type != "redis" && c.Cache.Type != "memory" {
		return fmt.Errorf("unsupported cache type: %s", c.Cache.Type)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.HL7.Application == "" || c.HL7.Facility == "" {
		return fmt.Errorf("HL7 application and facility names are required")
	}
	if _, err := time.Parse("15:04", c.Scheduling.ShiftStart); err != nil {
		return fmt.Errorf("invalid SHIFT_START: %w", err)
	}
	if _, err := time.Parse("15:04", c.Scheduling.ShiftEnd); err != nil {
		return fmt.Errorf("invalid SHIFT_END: %w", err)
	}
	if c.Scheduling.DayRange < 0 {
		return fmt.Errorf("SCHEDULE_DAY_RANGE must not be negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return fallback
}
