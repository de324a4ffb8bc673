package config

import (
	"os"
	"testing"
	"time"
)

var configEnvVars = []string{
	"LOCKSTEP_HTTP_PORT",
	"LOCKSTEP_API_TOKEN",
	"LOCKSTEP_DEV_MODE",
	"LOCKSTEP_STORE_BACKEND",
	"LOCKSTEP_STORE_URI",
	"LOCKSTEP_STORE_HOST",
	"LOCKSTEP_STORE_PORT",
	"LOCKSTEP_STORE_USERNAME",
	"LOCKSTEP_STORE_PASSWORD",
	"LOCKSTEP_STORE_DATABASE",
	"LOCKSTEP_STORE_NAMESPACE",
	"LOCKSTEP_QUEUE_ENABLED",
	"LOCKSTEP_QUEUE_TYPE",
	"LOCKSTEP_QUEUE_KAFKA_BROKERS",
	"LOCKSTEP_QUEUE_KAFKA_HOST",
	"LOCKSTEP_QUEUE_KAFKA_PORT",
	"LOCKSTEP_QUEUE_KAFKA_TOPIC",
	"LOCKSTEP_QUEUE_KAFKA_GROUP_ID",
	"LOCKSTEP_QUEUE_PULSAR_URL",
	"LOCKSTEP_QUEUE_PULSAR_TOPIC",
	"LOCKSTEP_QUEUE_PULSAR_SUBSCRIPTION",
	"LOCKSTEP_MIGRATIONS_PATH",
	"LOCKSTEP_LOCK_LEASE",
}

// clearEnv unsets every config variable and restores them after the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvVars {
		if value, ok := os.LookupEnv(key); ok {
			t.Setenv(key, value)
			os.Unsetenv(key)
		}
	}
}

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue string
		want         string
	}{
		{
			name:         "env var set",
			envValue:     "env-value",
			defaultValue: "default-value",
			want:         "env-value",
		},
		{
			name:         "env var not set",
			envValue:     "",
			defaultValue: "default-value",
			want:         "default-value",
		},
		{
			name:         "empty default",
			envValue:     "",
			defaultValue: "",
			want:         "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "LOCKSTEP_TEST_ENV_VAR"
			if tt.envValue != "" {
				t.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}

			got := getEnvOrDefault(key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvOrDefault() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}

	if cfg.Server.HTTPPort != "7070" {
		t.Errorf("HTTPPort = %s, want 7070", cfg.Server.HTTPPort)
	}
	if cfg.Server.DevMode {
		t.Error("DevMode = true, want false")
	}
	if cfg.Store.Backend != "postgresql" {
		t.Errorf("Store.Backend = %s, want postgresql", cfg.Store.Backend)
	}
	if cfg.Store.Port != "5432" {
		t.Errorf("Store.Port = %s, want 5432", cfg.Store.Port)
	}
	if cfg.Store.Database != "lockstep" {
		t.Errorf("Store.Database = %s, want lockstep", cfg.Store.Database)
	}
	if cfg.Queue.Enabled {
		t.Error("Queue.Enabled = true, want false")
	}
	if cfg.Queue.Type != "kafka" {
		t.Errorf("Queue.Type = %s, want kafka", cfg.Queue.Type)
	}
	if len(cfg.Queue.KafkaBrokers) != 1 || cfg.Queue.KafkaBrokers[0] != "localhost:9092" {
		t.Errorf("KafkaBrokers = %v, want [localhost:9092]", cfg.Queue.KafkaBrokers)
	}
	if cfg.Queue.KafkaTopic != "lockstep-migrations" {
		t.Errorf("KafkaTopic = %s, want lockstep-migrations", cfg.Queue.KafkaTopic)
	}
	if cfg.LockLease != 0 {
		t.Errorf("LockLease = %v, want 0", cfg.LockLease)
	}
}

func TestLoadFromEnvBackendPorts(t *testing.T) {
	tests := []struct {
		backend string
		want    string
	}{
		{backend: "postgresql", want: "5432"},
		{backend: "mongodb", want: "27017"},
		{backend: "etcd", want: "2379"},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("LOCKSTEP_STORE_BACKEND", tt.backend)

			cfg, err := LoadFromEnv()
			if err != nil {
				t.Fatalf("LoadFromEnv failed: %v", err)
			}
			if cfg.Store.Port != tt.want {
				t.Errorf("Store.Port = %s, want %s", cfg.Store.Port, tt.want)
			}
		})
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOCKSTEP_HTTP_PORT", "8080")
	t.Setenv("LOCKSTEP_API_TOKEN", "secret")
	t.Setenv("LOCKSTEP_DEV_MODE", "true")
	t.Setenv("LOCKSTEP_STORE_BACKEND", "mongodb")
	t.Setenv("LOCKSTEP_STORE_URI", "mongodb://db.example.com:27017")
	t.Setenv("LOCKSTEP_QUEUE_ENABLED", "true")
	t.Setenv("LOCKSTEP_QUEUE_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("LOCKSTEP_MIGRATIONS_PATH", "/etc/lockstep/migrations")
	t.Setenv("LOCKSTEP_LOCK_LEASE", "15m")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}

	if cfg.Server.HTTPPort != "8080" {
		t.Errorf("HTTPPort = %s, want 8080", cfg.Server.HTTPPort)
	}
	if cfg.Server.APIToken != "secret" {
		t.Errorf("APIToken = %s, want secret", cfg.Server.APIToken)
	}
	if !cfg.Server.DevMode {
		t.Error("DevMode = false, want true")
	}
	if cfg.Store.URI != "mongodb://db.example.com:27017" {
		t.Errorf("Store.URI = %s", cfg.Store.URI)
	}
	if !cfg.Queue.Enabled {
		t.Error("Queue.Enabled = false, want true")
	}
	if len(cfg.Queue.KafkaBrokers) != 2 {
		t.Errorf("KafkaBrokers = %v, want two brokers", cfg.Queue.KafkaBrokers)
	}
	if cfg.MigrationsPath != "/etc/lockstep/migrations" {
		t.Errorf("MigrationsPath = %s", cfg.MigrationsPath)
	}
	if cfg.LockLease != 15*time.Minute {
		t.Errorf("LockLease = %v, want 15m", cfg.LockLease)
	}
}

func TestLoadFromEnvInvalidLease(t *testing.T) {
	tests := []struct {
		name  string
		lease string
	}{
		{name: "not a duration", lease: "soon"},
		{name: "negative", lease: "-5m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("LOCKSTEP_LOCK_LEASE", tt.lease)

			if _, err := LoadFromEnv(); err == nil {
				t.Error("LoadFromEnv expected error, got nil")
			}
		})
	}
}
