package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/rtmetrics/internal/publisher"
	"github.com/dennisdiepolder/monti/rtmetrics/internal/storage"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
		check   func(*testing.T, *Config)
	}{
		{
			name: "default values",
			env:  map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "8090" {
					t.Errorf("expected port 8090, got %s", cfg.Port)
				}
				if cfg.LogLevel != "info" {
					t.Errorf("expected log level info, got %s", cfg.LogLevel)
				}
				if cfg.ESL.Address != "127.0.0.1:8021" {
					t.Errorf("expected ESL address 127.0.0.1:8021, got %s", cfg.ESL.Address)
				}
				if cfg.ESL.Password != "ClueCon" {
					t.Errorf("expected default password, got %s", cfg.ESL.Password)
				}
				if cfg.ESL.ReadTimeout != 30*time.Second || cfg.ESL.DialTimeout != 10*time.Second {
					t.Errorf("unexpected ESL timeouts %v / %v", cfg.ESL.ReadTimeout, cfg.ESL.DialTimeout)
				}
				if cfg.PollInterval != 20*time.Second {
					t.Errorf("expected poll interval 20s, got %v", cfg.PollInterval)
				}
				if cfg.Store.Mode != storage.ModeRedis {
					t.Errorf("expected redis store, got %s", cfg.Store.Mode)
				}
				if cfg.Store.Redis.Addr() != "127.0.0.1:6379" {
					t.Errorf("expected redis 127.0.0.1:6379, got %s", cfg.Store.Redis.Addr())
				}
				if cfg.Keys != publisher.DefaultKeys() {
					t.Errorf("expected default keys, got %+v", cfg.Keys)
				}
				if cfg.KafkaEnabled() {
					t.Error("expected Kafka disabled by default")
				}
				if cfg.AuthEnabled {
					t.Error("expected auth disabled by default")
				}
			},
		},
		{
			name: "custom values",
			env: map[string]string{
				"PORT":              "9000",
				"LOG_LEVEL":         "debug",
				"ESL_HOST":          "10.16.7.11",
				"ESL_PORT":          "8022",
				"ESL_PASSWORD":      "secret",
				"POLL_INTERVAL":     "5",
				"STORE_MODE":        "dynamodb",
				"DYNAMO_ENDPOINT":   "http://localhost:8000",
				"QUEUE_METRICS_KEY": "queues",
				"AGENT_METRICS_KEY": "agents",
				"KAFKA_BROKERS":     "k1:9092,k2:9092",
				"AUTH_ENABLED":      "true",
				"OIDC_ISSUER":       "https://auth.example.com/realms/monti",
				"ALLOWED_ORIGINS":   "http://example.com, http://test.com",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "9000" {
					t.Errorf("expected port 9000, got %s", cfg.Port)
				}
				if cfg.ESL.Address != "10.16.7.11:8022" {
					t.Errorf("unexpected ESL address %s", cfg.ESL.Address)
				}
				if cfg.PollInterval != 5*time.Second {
					t.Errorf("expected poll interval 5s, got %v", cfg.PollInterval)
				}
				if cfg.Store.Mode != storage.ModeDynamoDB || !cfg.Store.Dynamo.Local() {
					t.Errorf("expected local dynamodb, got %+v", cfg.Store)
				}
				if cfg.Keys.Queues != "queues" || cfg.Keys.Agents != "agents" {
					t.Errorf("unexpected keys %+v", cfg.Keys)
				}
				if len(cfg.Kafka.Brokers) != 2 {
					t.Errorf("expected 2 brokers, got %v", cfg.Kafka.Brokers)
				}
				if !cfg.AuthEnabled {
					t.Error("expected auth enabled")
				}
				if cfg.AllowedOrigins[1] != "http://test.com" {
					t.Errorf("expected trimmed origin, got %q", cfg.AllowedOrigins[1])
				}
			},
		},
		{
			name:    "invalid ESL_PORT",
			env:     map[string]string{"ESL_PORT": "eight"},
			wantErr: "ESL_PORT",
		},
		{
			name:    "invalid POLL_INTERVAL",
			env:     map[string]string{"POLL_INTERVAL": "soon"},
			wantErr: "POLL_INTERVAL",
		},
		{
			name:    "zero POLL_INTERVAL",
			env:     map[string]string{"POLL_INTERVAL": "0"},
			wantErr: "POLL_INTERVAL",
		},
		{
			name:    "negative ESL_READ_TIMEOUT",
			env:     map[string]string{"ESL_READ_TIMEOUT": "-1"},
			wantErr: "ESL_READ_TIMEOUT",
		},
		{
			name:    "unknown STORE_MODE",
			env:     map[string]string{"STORE_MODE": "postgres"},
			wantErr: "STORE_MODE",
		},
		{
			name:    "invalid REDIS_DB",
			env:     map[string]string{"REDIS_DB": "x"},
			wantErr: "REDIS_DB",
		},
		{
			name:    "invalid AUTH_ENABLED",
			env:     map[string]string{"AUTH_ENABLED": "maybe"},
			wantErr: "AUTH_ENABLED",
		},
		{
			name:    "auth without issuer",
			env:     map[string]string{"AUTH_ENABLED": "true"},
			wantErr: "OIDC_ISSUER",
		},
		{
			name:    "invalid PORT",
			env:     map[string]string{"PORT": "70000"},
			wantErr: "PORT",
		},
		{
			name:    "same store keys",
			env:     map[string]string{"QUEUE_METRICS_KEY": "k", "AGENT_METRICS_KEY": "k"},
			wantErr: "AGENT_METRICS_KEY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			cfg, err := Load()

			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("expected error naming %s, got %v", tt.wantErr, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestWebSocketConstants(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.PongWait != cfg.WSReadTimeout {
		t.Errorf("PongWait (%v) should equal WSReadTimeout (%v)", cfg.PongWait, cfg.WSReadTimeout)
	}
	if cfg.PingPeriod >= cfg.PongWait {
		t.Errorf("PingPeriod (%v) should be less than PongWait (%v)", cfg.PingPeriod, cfg.PongWait)
	}
	if cfg.WriteWait != cfg.WSWriteTimeout {
		t.Errorf("WriteWait (%v) should equal WSWriteTimeout (%v)", cfg.WriteWait, cfg.WSWriteTimeout)
	}
	if cfg.MaxMessageSize <= 0 {
		t.Errorf("MaxMessageSize should be positive, got %d", cfg.MaxMessageSize)
	}
}
