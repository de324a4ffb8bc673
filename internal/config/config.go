package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	Server struct {
		HTTPPort string
		APIToken string
		DevMode  bool // enables the destructive reset endpoint
	}
	Store struct {
		Backend   string // "postgresql", "mongodb", "etcd" or "memory"
		URI       string // full connection URI; overrides host/port fields
		Host      string
		Port      string
		Username  string
		Password  string
		Database  string
		Namespace string // control table / collection / key prefix
	}
	Queue struct {
		Type               string   // "kafka" or "pulsar"
		KafkaBrokers       []string // Kafka broker addresses
		KafkaTopic         string   // Kafka topic name
		KafkaGroupID       string   // Kafka consumer group ID
		PulsarURL          string   // Pulsar service URL
		PulsarTopic        string   // Pulsar topic name
		PulsarSubscription string   // Pulsar subscription name
		Enabled            bool     // Whether to queue migrate commands (false = synchronous execution)
	}
	MigrationsPath string        // directory of file-based migrations; empty disables the loader
	LockLease      time.Duration // optional crashed-holder takeover lease; zero disables
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{}

	// Server configuration
	config.Server.HTTPPort = getEnvOrDefault("LOCKSTEP_HTTP_PORT", "7070")
	config.Server.APIToken = os.Getenv("LOCKSTEP_API_TOKEN")
	config.Server.DevMode = getEnvOrDefault("LOCKSTEP_DEV_MODE", "false") == "true"

	// Store configuration
	config.Store.Backend = getEnvOrDefault("LOCKSTEP_STORE_BACKEND", "postgresql")
	config.Store.URI = os.Getenv("LOCKSTEP_STORE_URI")
	config.Store.Host = getEnvOrDefault("LOCKSTEP_STORE_HOST", "localhost")
	config.Store.Port = getEnvOrDefault("LOCKSTEP_STORE_PORT", defaultPort(config.Store.Backend))
	config.Store.Username = getEnvOrDefault("LOCKSTEP_STORE_USERNAME", "")
	config.Store.Password = os.Getenv("LOCKSTEP_STORE_PASSWORD")
	config.Store.Database = getEnvOrDefault("LOCKSTEP_STORE_DATABASE", "lockstep")
	config.Store.Namespace = getEnvOrDefault("LOCKSTEP_STORE_NAMESPACE", "")

	// Queue configuration
	config.Queue.Enabled = getEnvOrDefault("LOCKSTEP_QUEUE_ENABLED", "false") == "true"
	config.Queue.Type = getEnvOrDefault("LOCKSTEP_QUEUE_TYPE", "kafka")

	// Kafka configuration
	if kafkaBrokers := os.Getenv("LOCKSTEP_QUEUE_KAFKA_BROKERS"); kafkaBrokers != "" {
		config.Queue.KafkaBrokers = strings.Split(kafkaBrokers, ",")
	} else {
		kafkaHost := getEnvOrDefault("LOCKSTEP_QUEUE_KAFKA_HOST", "localhost")
		kafkaPort := getEnvOrDefault("LOCKSTEP_QUEUE_KAFKA_PORT", "9092")
		config.Queue.KafkaBrokers = []string{fmt.Sprintf("%s:%s", kafkaHost, kafkaPort)}
	}
	config.Queue.KafkaTopic = getEnvOrDefault("LOCKSTEP_QUEUE_KAFKA_TOPIC", "lockstep-migrations")
	config.Queue.KafkaGroupID = getEnvOrDefault("LOCKSTEP_QUEUE_KAFKA_GROUP_ID", "lockstep-migration-workers")

	// Pulsar configuration
	config.Queue.PulsarURL = getEnvOrDefault("LOCKSTEP_QUEUE_PULSAR_URL", "pulsar://localhost:6650")
	config.Queue.PulsarTopic = getEnvOrDefault("LOCKSTEP_QUEUE_PULSAR_TOPIC", "lockstep-migrations")
	config.Queue.PulsarSubscription = getEnvOrDefault("LOCKSTEP_QUEUE_PULSAR_SUBSCRIPTION", "lockstep-migration-workers")

	config.MigrationsPath = os.Getenv("LOCKSTEP_MIGRATIONS_PATH")

	if leaseStr := os.Getenv("LOCKSTEP_LOCK_LEASE"); leaseStr != "" {
		lease, err := time.ParseDuration(leaseStr)
		if err != nil {
			return nil, fmt.Errorf("invalid LOCKSTEP_LOCK_LEASE: %w", err)
		}
		if lease < 0 {
			return nil, fmt.Errorf("LOCKSTEP_LOCK_LEASE must not be negative")
		}
		config.LockLease = lease
	}

	return config, nil
}

// defaultPort returns the conventional port for a store backend
func defaultPort(backend string) string {
	switch strings.ToLower(backend) {
	case "mongodb":
		return "27017"
	case "etcd":
		return "2379"
	default:
		return "5432"
	}
}

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
