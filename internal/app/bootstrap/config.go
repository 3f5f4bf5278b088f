package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	httpadapter "github.com/viralforge/identity-service/internal/adapters/http"
	"github.com/viralforge/identity-service/internal/adapters/security"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	RefreshStorePostgres = "postgres"
	RefreshStoreRedis    = "redis"

	minSigningKeyBytes = 32
)

// Config is the resolved runtime configuration of the identity service.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	StorageDriver string
	DatabaseURL   string
	RedisURL      string
	RefreshStore  string
	MaxDBConns    int32

	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	PasswordHasher string
	BcryptCost     int
	Argon2         security.Argon2Params

	UnifyCredentialFailures bool
	RefreshSessionTTL       time.Duration

	RateLimitPerSecond float64
	RateLimitBurst     int
	TrustedProxies     []string

	KafkaBrokers []string
	KafkaTopics  map[string]string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxClaimTTL     time.Duration
	OutboxMaxRetries   int
}

// configFile mirrors the YAML schema used by configs/default.yaml.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Storage struct {
		Driver       string `yaml:"driver"`
		RefreshStore string `yaml:"refresh_store"`
		MaxDBConns   int32  `yaml:"max_db_conns"`
	} `yaml:"storage"`
	Dependencies struct {
		PostgresURL  string   `yaml:"postgres_url"`
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
	} `yaml:"dependencies"`
	Tokens struct {
		Issuer            string `yaml:"issuer"`
		Audience          string `yaml:"audience"`
		RefreshSessionTTL string `yaml:"refresh_session_ttl"`
	} `yaml:"tokens"`
	Passwords struct {
		Hasher     string `yaml:"hasher"`
		BcryptCost int    `yaml:"bcrypt_cost"`
		Argon2     struct {
			MemoryKiB   uint32 `yaml:"memory_kib"`
			Iterations  uint32 `yaml:"iterations"`
			Parallelism uint8  `yaml:"parallelism"`
		} `yaml:"argon2"`
	} `yaml:"passwords"`
	Auth struct {
		UnifyCredentialFailures *bool `yaml:"unify_credential_failures"`
	} `yaml:"auth"`
	RateLimit struct {
		PerSecond      float64  `yaml:"per_second"`
		Burst          int      `yaml:"burst"`
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"rate_limit"`
	Events struct {
		Topics map[string]string `yaml:"topics"`
	} `yaml:"events"`
	Outbox struct {
		PollInterval string `yaml:"poll_interval"`
		BatchSize    int    `yaml:"batch_size"`
		ClaimTTL     string `yaml:"claim_ttl"`
		MaxRetries   int    `yaml:"max_retries"`
	} `yaml:"outbox"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// A missing file is not an error; a malformed one is.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:          "Identity-Service",
		HTTPPort:           8080,
		GRPCPort:           9090,
		StorageDriver:      StorageDriverPostgres,
		RefreshStore:       RefreshStorePostgres,
		MaxDBConns:         20,
		JWTIssuer:          "identity-service",
		JWTAudience:        "identity-clients",
		PasswordHasher:     security.AlgorithmBcrypt,
		BcryptCost:         12,
		Argon2:             security.DefaultArgon2Params(),
		RateLimitPerSecond: 5,
		RateLimitBurst:     20,
		KafkaTopics:        map[string]string{},
		OutboxPollInterval: 2 * time.Second,
		OutboxBatchSize:    100,
		OutboxClaimTTL:     30 * time.Second,
		OutboxMaxRetries:   5,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		if err := applyFile(&cfg, raw); err != nil {
			return Config{}, err
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg.ServiceID = envOrDefault("SERVICE_ID", cfg.ServiceID)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(envOrDefault("STORAGE_DRIVER", cfg.StorageDriver)))
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.RefreshStore = strings.ToLower(strings.TrimSpace(envOrDefault("REFRESH_STORE", cfg.RefreshStore)))
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.JWTSigningKey = envOrDefault("JWT_SIGNING_KEY", cfg.JWTSigningKey)
	cfg.JWTIssuer = envOrDefault("JWT_ISSUER", cfg.JWTIssuer)
	cfg.JWTAudience = envOrDefault("JWT_AUDIENCE", cfg.JWTAudience)
	cfg.PasswordHasher = strings.ToLower(strings.TrimSpace(envOrDefault("PASSWORD_HASHER", cfg.PasswordHasher)))
	cfg.BcryptCost = envInt("BCRYPT_ROUNDS", cfg.BcryptCost)
	cfg.UnifyCredentialFailures = envBool("UNIFY_CREDENTIAL_FAILURES", cfg.UnifyCredentialFailures)
	cfg.RefreshSessionTTL = envDuration("REFRESH_SESSION_TTL", cfg.RefreshSessionTTL)
	cfg.RateLimitPerSecond = envFloat("RATE_LIMIT_PER_SECOND", cfg.RateLimitPerSecond)
	cfg.RateLimitBurst = envInt("RATE_LIMIT_BURST", cfg.RateLimitBurst)
	cfg.TrustedProxies = envCSV("TRUSTED_PROXIES", cfg.TrustedProxies)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.OutboxPollInterval = envDuration("OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxClaimTTL = envDuration("OUTBOX_CLAIM_TTL", cfg.OutboxClaimTTL)
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if f.Service.ID != "" {
		cfg.ServiceID = f.Service.ID
	}
	if f.Service.HTTPPort > 0 {
		cfg.HTTPPort = f.Service.HTTPPort
	}
	if f.Service.GRPCPort > 0 {
		cfg.GRPCPort = f.Service.GRPCPort
	}
	if f.Storage.Driver != "" {
		cfg.StorageDriver = f.Storage.Driver
	}
	if f.Storage.RefreshStore != "" {
		cfg.RefreshStore = f.Storage.RefreshStore
	}
	if f.Storage.MaxDBConns > 0 {
		cfg.MaxDBConns = f.Storage.MaxDBConns
	}
	if f.Dependencies.PostgresURL != "" {
		cfg.DatabaseURL = f.Dependencies.PostgresURL
	}
	if f.Dependencies.RedisURL != "" {
		cfg.RedisURL = f.Dependencies.RedisURL
	}
	if len(f.Dependencies.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
	}
	if f.Tokens.Issuer != "" {
		cfg.JWTIssuer = f.Tokens.Issuer
	}
	if f.Tokens.Audience != "" {
		cfg.JWTAudience = f.Tokens.Audience
	}
	if err := parseDurationField("tokens.refresh_session_ttl", f.Tokens.RefreshSessionTTL, &cfg.RefreshSessionTTL); err != nil {
		return err
	}
	if f.Passwords.Hasher != "" {
		cfg.PasswordHasher = f.Passwords.Hasher
	}
	if f.Passwords.BcryptCost > 0 {
		cfg.BcryptCost = f.Passwords.BcryptCost
	}
	if f.Passwords.Argon2.MemoryKiB > 0 {
		cfg.Argon2.Memory = f.Passwords.Argon2.MemoryKiB
	}
	if f.Passwords.Argon2.Iterations > 0 {
		cfg.Argon2.Time = f.Passwords.Argon2.Iterations
	}
	if f.Passwords.Argon2.Parallelism > 0 {
		cfg.Argon2.Parallelism = f.Passwords.Argon2.Parallelism
	}
	if f.Auth.UnifyCredentialFailures != nil {
		cfg.UnifyCredentialFailures = *f.Auth.UnifyCredentialFailures
	}
	if f.RateLimit.PerSecond > 0 {
		cfg.RateLimitPerSecond = f.RateLimit.PerSecond
	}
	if f.RateLimit.Burst > 0 {
		cfg.RateLimitBurst = f.RateLimit.Burst
	}
	if len(f.RateLimit.TrustedProxies) > 0 {
		cfg.TrustedProxies = f.RateLimit.TrustedProxies
	}
	for eventType, topic := range f.Events.Topics {
		cfg.KafkaTopics[eventType] = topic
	}
	if err := parseDurationField("outbox.poll_interval", f.Outbox.PollInterval, &cfg.OutboxPollInterval); err != nil {
		return err
	}
	if err := parseDurationField("outbox.claim_ttl", f.Outbox.ClaimTTL, &cfg.OutboxClaimTTL); err != nil {
		return err
	}
	if f.Outbox.BatchSize > 0 {
		cfg.OutboxBatchSize = f.Outbox.BatchSize
	}
	if f.Outbox.MaxRetries > 0 {
		cfg.OutboxMaxRetries = f.Outbox.MaxRetries
	}
	return nil
}

func (c Config) validate() error {
	if len(c.JWTSigningKey) < minSigningKeyBytes {
		return fmt.Errorf("JWT_SIGNING_KEY must be at least %d bytes", minSigningKeyBytes)
	}
	if c.JWTIssuer == "" || c.JWTAudience == "" {
		return fmt.Errorf("missing JWT issuer or audience")
	}
	switch c.StorageDriver {
	case StorageDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("missing DB_URL/POSTGRES_URL")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}
	switch c.RefreshStore {
	case RefreshStorePostgres:
	case RefreshStoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("missing REDIS_URL for redis refresh store")
		}
	default:
		return fmt.Errorf("unsupported refresh store %q", c.RefreshStore)
	}
	switch c.PasswordHasher {
	case security.AlgorithmBcrypt, security.AlgorithmArgon2id:
	default:
		return fmt.Errorf("unsupported password hasher %q", c.PasswordHasher)
	}
	if _, err := httpadapter.ParseTrustedProxies(c.TrustedProxies); err != nil {
		return err
	}
	return nil
}

// String hides the signing key so the config can be logged.
func (c Config) String() string {
	return fmt.Sprintf("service=%s http=%d grpc=%d storage=%s refresh_store=%s hasher=%s issuer=%s audience=%s",
		c.ServiceID, c.HTTPPort, c.GRPCPort, c.StorageDriver, c.RefreshStore, c.PasswordHasher, c.JWTIssuer, c.JWTAudience)
}

func parseDurationField(name, raw string, dst *time.Duration) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	*dst = d
	return nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envFloat(name string, fallback float64) float64 {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

// envDuration accepts Go duration strings such as "24h" or "90s".
func envDuration(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envBool parses common boolean env forms while keeping a deterministic fallback.
func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
