package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort    string
	GRPCPort    string
	MetricsPath string
	LogLevel    string

	// GRPCAuditMethods maps full gRPC method names to audit actions.
	GRPCAuditMethods map[string]string

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	// MaxBodyBytes caps how much of a request or response body is held in
	// memory for the diagnostic log.
	MaxBodyBytes      int
	AuditWriteTimeout time.Duration

	KafkaBrokers    []string
	KafkaAuditTopic string
	KafkaAlertTopic string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int

	AdminUsername string
	AdminPassword string
}

func LoadEnv() {
	wd, err := os.Getwd()
	if err != nil {
		log.Printf("Error getting working directory: %v", err)
		return
	}

	possiblePaths := []string{
		filepath.Join(wd, ".env"),
		filepath.Join(wd, "..", ".env"),
		filepath.Join(wd, "..", "..", ".env"),
	}

	for _, envPath := range possiblePaths {
		if err := godotenv.Load(envPath); err == nil {
			log.Printf("Loaded environment variables from %s", envPath)
			return
		}
	}

	for _, envPath := range possiblePaths {
		examplePath := filepath.Join(filepath.Dir(envPath), ".example.env")
		if err := godotenv.Load(examplePath); err == nil {
			log.Printf("Loaded environment variables from %s", examplePath)
			return
		}
	}

	log.Println("No .env or .example.env file found, using process environment")
}

// Load reads the configuration from the process environment. Call LoadEnv
// first to pull in a .env file.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:        getString("HTTP_PORT", "9000"),
		GRPCPort:        getString("GRPC_PORT", "9001"),
		MetricsPath:     getString("METRICS_PATH", "/metrics"),
		LogLevel:        getString("LOG_LEVEL", "debug"),
		DBHost:          getString("DB_HOST", "localhost"),
		DBUser:          os.Getenv("POSTGRES_USER"),
		DBPassword:      os.Getenv("POSTGRES_PASSWORD"),
		DBName:          os.Getenv("POSTGRES_DB"),
		KafkaBrokers:    splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaAuditTopic: getString("KAFKA_AUDIT_TOPIC", "audit_logs"),
		KafkaAlertTopic: getString("KAFKA_ALERT_TOPIC", "audit_alerts"),
		AdminUsername:   os.Getenv("ADMIN_USERNAME"),
		AdminPassword:   os.Getenv("ADMIN_PASSWORD"),
	}

	var err error
	if cfg.GRPCAuditMethods, err = parseMethodActions(os.Getenv("GRPC_AUDIT_METHODS")); err != nil {
		return nil, err
	}
	if cfg.DBPort, err = getInt("DB_PORT", 5432); err != nil {
		return nil, err
	}
	if cfg.MaxBodyBytes, err = getInt("MAX_BODY_BYTES", 1<<20); err != nil {
		return nil, err
	}
	if cfg.MaxBodyBytes <= 0 {
		return nil, fmt.Errorf("MAX_BODY_BYTES must be positive, got %d", cfg.MaxBodyBytes)
	}
	if cfg.AuditWriteTimeout, err = getDuration("AUDIT_WRITE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.OutboxPollInterval, err = getDuration("OUTBOX_POLL_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.OutboxBatchSize, err = getInt("OUTBOX_BATCH_SIZE", 50); err != nil {
		return nil, err
	}
	if cfg.OutboxMaxAttempts, err = getInt("OUTBOX_MAX_ATTEMPTS", 5); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseMethodActions reads "/pkg.Service/Method=ACTION" pairs separated by
// commas.
func parseMethodActions(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range splitList(s) {
		method, action, ok := strings.Cut(pair, "=")
		method, action = strings.TrimSpace(method), strings.TrimSpace(action)
		if !ok || !strings.HasPrefix(method, "/") || action == "" {
			return nil, fmt.Errorf("invalid GRPC_AUDIT_METHODS entry %q", pair)
		}
		out[method] = action
	}
	return out, nil
}
