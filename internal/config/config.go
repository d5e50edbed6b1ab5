package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// RateLimitConfig indicates how many requests are allowed within a given interval.
type RateLimitConfig struct {
	Requests int
	Interval time.Duration
}

// UnmarshalText accepts the "<requests>/<interval>" form, e.g. "120/min".
func (r *RateLimitConfig) UnmarshalText(text []byte) error {
	parsed, err := parseRateLimit(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// APIClient is one machine client allowed to exchange its secret for a token.
type APIClient struct {
	ID         string
	Role       string
	SecretHash string
}

// APIClients parses "id:role:bcrypt-hash" entries separated by commas.
type APIClients []APIClient

// UnmarshalText implements encoding.TextUnmarshaler for caarlos0/env.
func (a *APIClients) UnmarshalText(text []byte) error {
	var out APIClients
	for _, raw := range strings.Split(string(text), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parts := strings.SplitN(raw, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return fmt.Errorf("expected <id>:<role>:<bcrypt-hash>, got %q", raw)
		}
		out = append(out, APIClient{ID: parts[0], Role: parts[1], SecretHash: parts[2]})
	}
	*a = out
	return nil
}

// Find returns the client registered under id.
func (a APIClients) Find(id string) (APIClient, bool) {
	for _, c := range a {
		if c.ID == id {
			return c, true
		}
	}
	return APIClient{}, false
}

// LogConfig selects the logrus level and formatter.
type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"text"`
}

// CascadeConfig tunes provider selection.
type CascadeConfig struct {
	TierSize               int           `env:"TIER_SIZE" envDefault:"3"`
	FanOut                 int           `env:"FAN_OUT" envDefault:"3"`
	MaxProvidersPerContact int           `env:"MAX_PROVIDERS" envDefault:"7"`
	MinSample              int           `env:"MIN_SAMPLE" envDefault:"5"`
	CostOptimizedAt        float64       `env:"COST_OPTIMIZED_AT" envDefault:"85"`
	BalancedAt             float64       `env:"BALANCED_AT" envDefault:"70"`
	FullCascadeAt          float64       `env:"FULL_CASCADE_AT" envDefault:"50"`
	HighConfidence         float64       `env:"HIGH_CONFIDENCE" envDefault:"75"`
	ExcellentConfidence    float64       `env:"EXCELLENT_CONFIDENCE" envDefault:"90"`
	Cooldown               time.Duration `env:"COOLDOWN" envDefault:"5m"`
	FailureThreshold       int           `env:"FAILURE_THRESHOLD" envDefault:"5"`
	Retries                int           `env:"RETRIES" envDefault:"2"`
	RetryBackoff           time.Duration `env:"RETRY_BACKOFF" envDefault:"250ms"`
}

// CreditConfig holds per-resolution prices in credits.
type CreditConfig struct {
	EmailPrice int `env:"EMAIL_PRICE" envDefault:"1"`
	PhonePrice int `env:"PHONE_PRICE" envDefault:"10"`
}

// VerificationConfig toggles and tunes the email and phone verifiers.
type VerificationConfig struct {
	Email              bool          `env:"EMAIL" envDefault:"true"`
	Phone              bool          `env:"PHONE" envDefault:"true"`
	DefaultRegion      string        `env:"DEFAULT_REGION" envDefault:"US"`
	HighValueCountries []string      `env:"HIGH_VALUE_COUNTRIES" envDefault:"US,CA,GB,IE,DE,FR,NL,BE,CH,AT,SE,NO,DK,FI,AU,NZ" envSeparator:","`
	CatchAllDomains    []string      `env:"CATCH_ALL_DOMAINS" envSeparator:","`
	DNSTimeout         time.Duration `env:"DNS_TIMEOUT" envDefault:"3s"`
}

// KafkaConfig configures the optional job consumer.
type KafkaConfig struct {
	Enabled          bool   `env:"ENABLED" envDefault:"false"`
	BootstrapServers string `env:"BOOTSTRAP_SERVERS"`
	GroupID          string `env:"GROUP_ID" envDefault:"contact_enricher_group"`
	Topic            string `env:"TOPIC" envDefault:"enrichment_jobs"`
	Workers          int    `env:"WORKERS" envDefault:"4"`
}

// OTelConfig configures trace export.
type OTelConfig struct {
	Enabled     bool    `env:"ENABLED" envDefault:"false"`
	Endpoint    string  `env:"EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	Insecure    bool    `env:"EXPORTER_OTLP_INSECURE" envDefault:"true"`
	ServiceName string  `env:"SERVICE_NAME" envDefault:"contact-enricher"`
	SampleRatio float64 `env:"SAMPLE_RATIO" envDefault:"1"`
}

// Config aggregates application-wide configuration values.
type Config struct {
	DatabaseURL     string          `env:"DATABASE_URL"`
	StoreDriver     string          `env:"STORE_DRIVER" envDefault:"postgres"`
	SQLitePath      string          `env:"SQLITE_PATH" envDefault:"enricher.db"`
	MigrationsPath  string          `env:"MIGRATIONS_PATH" envDefault:"file://db/migrations"`
	AutoMigrate     bool            `env:"AUTO_MIGRATE" envDefault:"true"`
	Port            string          `env:"PORT" envDefault:"8080"`
	JWTSecret       string          `env:"JWT_SECRET" envDefault:"dev-secret"`
	TokenTTL        time.Duration   `env:"JWT_TTL" envDefault:"24h"`
	RateLimitEnrich RateLimitConfig `env:"RATE_LIMIT_ENRICH" envDefault:"120/min"`
	ProvidersFile   string          `env:"PROVIDERS_FILE"`
	APIClients      APIClients      `env:"API_CLIENTS"`
	BatchLimit      int             `env:"BATCH_LIMIT" envDefault:"100"`
	BatchWorkers    int             `env:"BATCH_WORKERS" envDefault:"8"`

	Log          LogConfig          `envPrefix:"LOG_"`
	Cascade      CascadeConfig      `envPrefix:"CASCADE_"`
	Credits      CreditConfig       `envPrefix:"CREDIT_"`
	Verification VerificationConfig `envPrefix:"VERIFY_"`
	Kafka        KafkaConfig        `envPrefix:"KAFKA_"`
	OTel         OTelConfig         `envPrefix:"OTEL_"`

	Providers []ProviderConfig `env:"-"`
}

// Load reads configuration from environment variables and applies sane defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	switch cfg.StoreDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	case "sqlite":
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.Kafka.Enabled && cfg.Kafka.BootstrapServers == "" {
		return nil, fmt.Errorf("KAFKA_BOOTSTRAP_SERVERS is required when KAFKA_ENABLED=true")
	}

	providers := DefaultProviders()
	if cfg.ProvidersFile != "" {
		loaded, err := LoadProviders(cfg.ProvidersFile)
		if err != nil {
			return nil, err
		}
		providers = loaded
	}
	for i := range providers {
		providers[i].APIKey = getEnv(providers[i].KeyEnv(), providers[i].APIKey)
	}
	cfg.Providers = providers

	return cfg, nil
}

func parseRateLimit(value string) (RateLimitConfig, error) {
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return RateLimitConfig{}, fmt.Errorf("expected format <requests>/<interval>, got %q", value)
	}

	requests, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || requests <= 0 {
		return RateLimitConfig{}, fmt.Errorf("invalid request count: %v", parts[0])
	}

	unit := strings.ToLower(strings.TrimSpace(parts[1]))
	var interval time.Duration
	switch unit {
	case "s", "sec", "second", "seconds":
		interval = time.Second
	case "m", "min", "minute", "minutes":
		interval = time.Minute
	case "h", "hr", "hour", "hours":
		interval = time.Hour
	default:
		return RateLimitConfig{}, fmt.Errorf("unsupported interval unit: %s", unit)
	}

	return RateLimitConfig{Requests: requests, Interval: interval}, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

// ProviderConfig describes one external data provider.
type ProviderConfig struct {
	ID           string          `yaml:"id"`
	BaseURL      string          `yaml:"base_url"`
	APIKey       string          `yaml:"-"`
	Cost         float64         `yaml:"cost"`
	RateLimit    int             `yaml:"rate_limit"`
	Capability   string          `yaml:"capability"`
	PollSchedule []time.Duration `yaml:"poll_schedule,omitempty"`
	PollTimeout  time.Duration   `yaml:"poll_timeout,omitempty"`
	Timeout      time.Duration   `yaml:"timeout,omitempty"`
	Disabled     bool            `yaml:"disabled,omitempty"`
}

// KeyEnv is the environment variable holding the provider's API key.
func (p ProviderConfig) KeyEnv() string {
	id := strings.NewReplacer("-", "_", ".", "_").Replace(p.ID)
	return strings.ToUpper(id) + "_API_KEY"
}

type providersFile struct {
	Providers []ProviderConfig `yaml:"providers"`
}

// LoadProviders reads the provider list from a YAML file.
func LoadProviders(path string) ([]ProviderConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}
	var file providersFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode providers file: %w", err)
	}
	seen := make(map[string]struct{}, len(file.Providers))
	for _, p := range file.Providers {
		if p.ID == "" {
			return nil, fmt.Errorf("providers file: entry without id")
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("providers file: duplicate id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
		if p.Cost < 0 || p.RateLimit < 0 {
			return nil, fmt.Errorf("providers file: %s has negative cost or rate limit", p.ID)
		}
	}
	return file.Providers, nil
}

// DefaultProviders is the built-in provider list used when no file is configured.
func DefaultProviders() []ProviderConfig {
	asyncSchedule := []time.Duration{2 * time.Second, 3 * time.Second, 5 * time.Second}
	return []ProviderConfig{
		{ID: "icypeas", BaseURL: "https://app.icypeas.com/api", Cost: 0.009, RateLimit: 60, Capability: "email", PollSchedule: asyncSchedule, PollTimeout: 20 * time.Second},
		{ID: "findymail", BaseURL: "https://app.findymail.com/api", Cost: 0.018, RateLimit: 60, Capability: "email"},
		{ID: "hunter", BaseURL: "https://api.hunter.io/v2", Cost: 0.03, RateLimit: 30, Capability: "email"},
		{ID: "dropcontact", BaseURL: "https://api.dropcontact.com", Cost: 0.04, RateLimit: 30, Capability: "both", PollSchedule: []time.Duration{3 * time.Second, 5 * time.Second, 8 * time.Second}, PollTimeout: 30 * time.Second},
		{ID: "datagma", BaseURL: "https://gateway.datagma.net/api/ingress", Cost: 0.05, RateLimit: 30, Capability: "email"},
		{ID: "apollo", BaseURL: "https://api.apollo.io/api/v1", Cost: 0.06, RateLimit: 50, Capability: "both"},
		{ID: "kaspr", BaseURL: "https://api.developers.kaspr.io", Cost: 0.15, RateLimit: 20, Capability: "phone"},
	}
}
