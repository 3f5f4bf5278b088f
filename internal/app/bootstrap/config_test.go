package bootstrap

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testKey = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := writeConfig(t, `
service:
  id: identity-test
  http_port: 8181
storage:
  driver: postgres
  refresh_store: redis
dependencies:
  postgres_url: postgres://file/identity
  redis_url: redis://file:6379/0
  kafka_brokers: [kafka-1:9092]
tokens:
  issuer: file-issuer
  refresh_session_ttl: 720h
auth:
  unify_credential_failures: true
events:
  topics:
    identity.account.registered: identity.accounts
outbox:
  poll_interval: 500ms
`)
	t.Setenv("JWT_SIGNING_KEY", testKey)
	t.Setenv("DB_URL", "postgres://env/identity")
	t.Setenv("HTTP_PORT", "9999")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ServiceID != "identity-test" || cfg.HTTPPort != 9999 || cfg.GRPCPort != 9090 {
		t.Fatalf("unexpected service section: %+v", cfg)
	}
	if cfg.DatabaseURL != "postgres://env/identity" {
		t.Fatalf("env should override file database url, got %q", cfg.DatabaseURL)
	}
	if cfg.RefreshStore != RefreshStoreRedis || cfg.RedisURL != "redis://file:6379/0" {
		t.Fatalf("unexpected refresh store: %q %q", cfg.RefreshStore, cfg.RedisURL)
	}
	if cfg.JWTIssuer != "file-issuer" || cfg.JWTAudience != "identity-clients" {
		t.Fatalf("unexpected jwt issuer/audience: %q %q", cfg.JWTIssuer, cfg.JWTAudience)
	}
	if cfg.RefreshSessionTTL != 720*time.Hour {
		t.Fatalf("unexpected refresh session ttl: %s", cfg.RefreshSessionTTL)
	}
	if !cfg.UnifyCredentialFailures {
		t.Fatal("expected unify credential failures from file")
	}
	if cfg.KafkaTopics["identity.account.registered"] != "identity.accounts" || len(cfg.KafkaBrokers) != 1 {
		t.Fatalf("unexpected kafka config: %v %v", cfg.KafkaBrokers, cfg.KafkaTopics)
	}
	if cfg.OutboxPollInterval != 500*time.Millisecond {
		t.Fatalf("unexpected outbox poll interval: %s", cfg.OutboxPollInterval)
	}
	if strings.Contains(cfg.String(), testKey) {
		t.Fatal("config string must not contain the signing key")
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", testKey)
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.StorageDriver != StorageDriverMemory || cfg.PasswordHasher != "bcrypt" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.RefreshSessionTTL != 0 {
		t.Fatalf("refresh expiry should be off by default, got %s", cfg.RefreshSessionTTL)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing signing key",
			env:     map[string]string{"STORAGE_DRIVER": "memory"},
			wantErr: "JWT_SIGNING_KEY",
		},
		{
			name:    "short signing key",
			env:     map[string]string{"STORAGE_DRIVER": "memory", "JWT_SIGNING_KEY": "short"},
			wantErr: "JWT_SIGNING_KEY",
		},
		{
			name:    "postgres without url",
			env:     map[string]string{"JWT_SIGNING_KEY": testKey},
			wantErr: "DB_URL",
		},
		{
			name:    "redis store without url",
			env:     map[string]string{"JWT_SIGNING_KEY": testKey, "STORAGE_DRIVER": "memory", "REFRESH_STORE": "redis"},
			wantErr: "REDIS_URL",
		},
		{
			name:    "unknown hasher",
			env:     map[string]string{"JWT_SIGNING_KEY": testKey, "STORAGE_DRIVER": "memory", "PASSWORD_HASHER": "md5"},
			wantErr: "unsupported password hasher",
		},
		{
			name:    "invalid trusted proxy",
			env:     map[string]string{"JWT_SIGNING_KEY": testKey, "STORAGE_DRIVER": "memory", "TRUSTED_PROXIES": "10.0.0.0/8,lb.internal"},
			wantErr: "trusted proxy",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, name := range []string{"JWT_SIGNING_KEY", "STORAGE_DRIVER", "DB_URL", "POSTGRES_URL", "REFRESH_STORE", "REDIS_URL", "PASSWORD_HASHER", "TRUSTED_PROXIES"} {
				t.Setenv(name, "")
			}
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLoadConfigRejectsMalformedFile(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", testKey)
	path := writeConfig(t, "tokens:\n  refresh_session_ttl: forever\n")
	if _, err := LoadConfig(path); err == nil || !strings.Contains(err.Error(), "tokens.refresh_session_ttl") {
		t.Fatalf("expected ttl parse error, got %v", err)
	}
}

func TestLoadConfigTrustedProxies(t *testing.T) {
	path := writeConfig(t, "rate_limit:\n  trusted_proxies: [10.0.0.0/8]\n")
	t.Setenv("JWT_SIGNING_KEY", testKey)
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.TrustedProxies) != 1 || cfg.TrustedProxies[0] != "10.0.0.0/8" {
		t.Fatalf("unexpected trusted proxies from file: %v", cfg.TrustedProxies)
	}

	t.Setenv("TRUSTED_PROXIES", "192.0.2.10, 172.16.0.0/12")
	cfg, err = LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.TrustedProxies) != 2 || cfg.TrustedProxies[1] != "172.16.0.0/12" {
		t.Fatalf("env should override file trusted proxies: %v", cfg.TrustedProxies)
	}
}
