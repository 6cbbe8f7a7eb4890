package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the full configuration for a service instance.
type Config struct {
	Service  ServiceConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	JWT      JWTConfig
	Stats    StatsConfig
}

type ServiceConfig struct {
	Name string
	Port string
}

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	GroupID string
}

type JWTConfig struct {
	Secret string
}

// StatsConfig tunes the analytics subsystem.
type StatsConfig struct {
	// RecorderQueueSize bounds the fire-and-forget increment queue.
	RecorderQueueSize int
	// RecorderWorkers is the number of goroutines draining the queue.
	RecorderWorkers int
	// RecorderTimeout caps a single increment write.
	RecorderTimeout time.Duration
	// QueryTimeout caps read queries and reconciliation passes.
	QueryTimeout time.Duration
	// CacheTTL is how long read query results stay in Redis.
	CacheTTL time.Duration
	// SyncHourUTC is the hour of day the scheduler reconciles yesterday.
	SyncHourUTC int
	// ServiceKeyHash is a bcrypt hash gating internal callers of the sync endpoint.
	ServiceKeyHash string
}

// Load reads configuration from the environment for the given service name.
// The service name selects the SERVICE_PORT variable (e.g. STATS_PORT).
func Load(service string) (*Config, error) {
	port := getEnv(strings.ToUpper(service)+"_PORT", "")
	if port == "" {
		port = getEnv("SERVICE_PORT", "8084")
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	cfg := &Config{
		Service: ServiceConfig{
			Name: service,
			Port: port,
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "veloria"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			GroupID: getEnv("KAFKA_GROUP_ID", service+"-service"),
		},
		JWT: JWTConfig{
			Secret: jwtSecret,
		},
		Stats: StatsConfig{
			RecorderQueueSize: getEnvAsInt("STATS_RECORDER_QUEUE_SIZE", 1024),
			RecorderWorkers:   getEnvAsInt("STATS_RECORDER_WORKERS", 4),
			RecorderTimeout:   getEnvAsDuration("STATS_RECORDER_TIMEOUT", 5*time.Second),
			QueryTimeout:      getEnvAsDuration("STATS_QUERY_TIMEOUT", 15*time.Second),
			CacheTTL:          getEnvAsDuration("STATS_CACHE_TTL", 10*time.Minute),
			SyncHourUTC:       getEnvAsInt("STATS_SYNC_HOUR_UTC", 1),
			ServiceKeyHash:    getEnv("STATS_SERVICE_KEY_HASH", ""),
		},
	}

	if cfg.Stats.SyncHourUTC < 0 || cfg.Stats.SyncHourUTC > 23 {
		return nil, fmt.Errorf("STATS_SYNC_HOUR_UTC must be between 0 and 23")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr != "" {
		if duration, err := time.ParseDuration(valueStr); err == nil {
			return duration
		}
	}
	return defaultValue
}
