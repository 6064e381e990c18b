package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv         = "NEWSATLAS_CONFIG"
	databaseDSNEnv        = "DATABASE_DSN"
	natsURLEnv            = "NATS_URL"
	classifierProviderEnv = "CLASSIFIER_PROVIDER"
	classifierAPIKeyEnv   = "CLASSIFIER_API_KEY"
	sonarAPIKeyEnv        = "SONAR_API_KEY"
	classifierModelEnv    = "CLASSIFIER_MODEL"
	classifierEndpointEnv = "CLASSIFIER_ENDPOINT"
	logLevelEnv           = "LOG_LEVEL"
	dashboardAddrEnv      = "DASHBOARD_ADDR"
	retryMaxAttemptsEnv   = "RETRY_MAX_ATTEMPTS"

	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	// DefaultClassifierEndpoint is Perplexity's OpenAI-compatible API.
	DefaultClassifierEndpoint = "https://api.perplexity.ai"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Database   DatabaseConfig   `yaml:"database"`
	NATS       NATSConfig       `yaml:"nats"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Retry      RetryConfig      `yaml:"retry"`
	Feeder     FeederConfig     `yaml:"feeder"`
	Feeds      []FeedConfig     `yaml:"feeds"`
	Dashboard  DashboardConfig  `yaml:"dashboard"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// LoggingConfig selects slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig describes where enriched records live.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// NATSConfig wires the JetStream news queue and its dead-letter companion.
type NATSConfig struct {
	URL               string        `yaml:"url"`
	Stream            string        `yaml:"stream"`
	Subject           string        `yaml:"subject"`
	Consumer          string        `yaml:"consumer"`
	DeadLetterStream  string        `yaml:"deadLetterStream"`
	DeadLetterSubject string        `yaml:"deadLetterSubject"`
	DuplicateWindow   time.Duration `yaml:"duplicateWindow"`
}

// ClassifierConfig defines how to contact the text-analysis service.
type ClassifierConfig struct {
	Provider     string        `yaml:"provider"`
	Endpoint     string        `yaml:"endpoint"`
	Model        string        `yaml:"model"`
	APIKey       string        `yaml:"apiKey"`
	SystemPrompt string        `yaml:"systemPrompt"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxTokens    int64         `yaml:"maxTokens"`
}

// RetryConfig bounds classifier retries.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"maxAttempts"`
	InitialInterval time.Duration `yaml:"initialInterval"`
	MaxInterval     time.Duration `yaml:"maxInterval"`
}

// FeederConfig defines when feeds are polled.
type FeederConfig struct {
	Schedule    string `yaml:"schedule"`
	MetricsAddr string `yaml:"metricsAddr"`
}

// FeedConfig describes a single feed with its geo-tag strategy.
type FeedConfig struct {
	Name    string            `yaml:"name"`
	URL     string            `yaml:"url"`
	Tagger  string            `yaml:"tagger"`
	Options map[string]string `yaml:"options"`
}

// DashboardConfig configures the read-only HTTP API.
type DashboardConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"corsOrigins"`
	Jitter      float64  `yaml:"jitter"`
}

// MetricsConfig sets the Prometheus listener of the enricher.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
// An explicit path wins over NEWSATLAS_CONFIG.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg = mergeConfig(cfg, fileCfg)
	}

	cfg.applyEnvOverrides()

	if len(cfg.Feeds) == 0 {
		cfg.Feeds = defaultConfig().Feeds
	}

	return cfg, nil
}

// ValidateEnricher checks what the consumer needs before it may start.
func (c Config) ValidateEnricher() error {
	var errs []error
	errs = append(errs, c.validateDatabase(), c.validateNATS())
	if c.Classifier.APIKey == "" {
		errs = append(errs, fmt.Errorf("classifier api key is required (set %s or %s)", classifierAPIKeyEnv, sonarAPIKeyEnv))
	}
	switch c.Classifier.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		errs = append(errs, fmt.Errorf("unknown classifier provider %q", c.Classifier.Provider))
	}
	if c.Classifier.Model == "" {
		errs = append(errs, errors.New("classifier model is required"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry.maxAttempts must be at least 1"))
	}
	return errors.Join(errs...)
}

// ValidateFeeder checks what the feed poller needs before it may start.
func (c Config) ValidateFeeder() error {
	var errs []error
	errs = append(errs, c.validateNATS())
	if strings.TrimSpace(c.Feeder.Schedule) == "" {
		errs = append(errs, errors.New("feeder schedule is required"))
	}
	for i, feed := range c.Feeds {
		if feed.URL == "" {
			errs = append(errs, fmt.Errorf("feeds[%d] %s: url is required", i, feed.Name))
		}
	}
	return errors.Join(errs...)
}

// ValidateDashboard checks what the read API needs before it may start.
func (c Config) ValidateDashboard() error {
	var errs []error
	errs = append(errs, c.validateDatabase())
	if c.Dashboard.Addr == "" {
		errs = append(errs, errors.New("dashboard addr is required"))
	}
	return errors.Join(errs...)
}

func (c Config) validateDatabase() error {
	switch c.Database.Driver {
	case DriverMemory:
		return nil
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database dsn is required (set %s)", databaseDSNEnv)
		}
		return nil
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
}

func (c Config) validateNATS() error {
	if c.NATS.URL == "" {
		return fmt.Errorf("nats url is required (set %s)", natsURLEnv)
	}
	if c.NATS.Subject == "" || c.NATS.Stream == "" {
		return errors.New("nats stream and subject are required")
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(natsURLEnv); v != "" {
		c.NATS.URL = v
	}

	if v := os.Getenv(classifierProviderEnv); v != "" {
		c.Classifier.Provider = strings.ToLower(v)
	}

	if v := os.Getenv(classifierAPIKeyEnv); v != "" {
		c.Classifier.APIKey = v
	} else if v := os.Getenv(sonarAPIKeyEnv); v != "" && c.Classifier.APIKey == "" {
		c.Classifier.APIKey = v
	}

	if v := os.Getenv(classifierModelEnv); v != "" {
		c.Classifier.Model = v
	}

	if v := os.Getenv(classifierEndpointEnv); v != "" {
		c.Classifier.Endpoint = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(dashboardAddrEnv); v != "" {
		c.Dashboard.Addr = v
	}

	if v := os.Getenv(retryMaxAttemptsEnv); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("config: ignoring %s=%q: %v", retryMaxAttemptsEnv, v, err)
		} else {
			c.Retry.MaxAttempts = n
		}
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.NATS.URL != "" {
		base.NATS.URL = override.NATS.URL
	}
	if override.NATS.Stream != "" {
		base.NATS.Stream = override.NATS.Stream
	}
	if override.NATS.Subject != "" {
		base.NATS.Subject = override.NATS.Subject
	}
	if override.NATS.Consumer != "" {
		base.NATS.Consumer = override.NATS.Consumer
	}
	if override.NATS.DeadLetterStream != "" {
		base.NATS.DeadLetterStream = override.NATS.DeadLetterStream
	}
	if override.NATS.DeadLetterSubject != "" {
		base.NATS.DeadLetterSubject = override.NATS.DeadLetterSubject
	}
	if override.NATS.DuplicateWindow > 0 {
		base.NATS.DuplicateWindow = override.NATS.DuplicateWindow
	}

	if override.Classifier.Provider != "" {
		base.Classifier.Provider = strings.ToLower(override.Classifier.Provider)
	}
	if override.Classifier.Endpoint != "" {
		base.Classifier.Endpoint = override.Classifier.Endpoint
	}
	if override.Classifier.Model != "" {
		base.Classifier.Model = override.Classifier.Model
	}
	if override.Classifier.APIKey != "" {
		base.Classifier.APIKey = override.Classifier.APIKey
	}
	if override.Classifier.SystemPrompt != "" {
		base.Classifier.SystemPrompt = override.Classifier.SystemPrompt
	}
	if override.Classifier.Timeout > 0 {
		base.Classifier.Timeout = override.Classifier.Timeout
	}
	if override.Classifier.MaxTokens > 0 {
		base.Classifier.MaxTokens = override.Classifier.MaxTokens
	}

	if override.Retry.MaxAttempts > 0 {
		base.Retry.MaxAttempts = override.Retry.MaxAttempts
	}
	if override.Retry.InitialInterval > 0 {
		base.Retry.InitialInterval = override.Retry.InitialInterval
	}
	if override.Retry.MaxInterval > 0 {
		base.Retry.MaxInterval = override.Retry.MaxInterval
	}

	if override.Feeder.Schedule != "" {
		base.Feeder.Schedule = override.Feeder.Schedule
	}
	if override.Feeder.MetricsAddr != "" {
		base.Feeder.MetricsAddr = override.Feeder.MetricsAddr
	}

	if len(override.Feeds) > 0 {
		base.Feeds = override.Feeds
	}

	if override.Dashboard.Addr != "" {
		base.Dashboard.Addr = override.Dashboard.Addr
	}
	if len(override.Dashboard.CORSOrigins) > 0 {
		base.Dashboard.CORSOrigins = override.Dashboard.CORSOrigins
	}
	if override.Dashboard.Jitter > 0 {
		base.Dashboard.Jitter = override.Dashboard.Jitter
	}

	if override.Metrics.Addr != "" {
		base.Metrics.Addr = override.Metrics.Addr
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{Driver: DriverPostgres, DSN: ""},
		NATS: NATSConfig{
			URL:               "nats://localhost:4222",
			Stream:            "NEWS",
			Subject:           "news",
			Consumer:          "enricher",
			DeadLetterStream:  "NEWS_DEAD",
			DeadLetterSubject: "news.dead",
			DuplicateWindow:   24 * time.Hour,
		},
		Classifier: ClassifierConfig{
			Provider:     ProviderOpenAI,
			Endpoint:     DefaultClassifierEndpoint,
			Model:        "sonar",
			APIKey:       "",
			SystemPrompt: DefaultSystemPrompt,
			Timeout:      30 * time.Second,
			MaxTokens:    512,
		},
		Retry: RetryConfig{
			MaxAttempts:     3,
			InitialInterval: time.Second,
			MaxInterval:     10 * time.Second,
		},
		Feeder: FeederConfig{Schedule: "@every 30s", MetricsAddr: ":9091"},
		Feeds: []FeedConfig{
			{
				Name:    "nyt-business",
				URL:     "https://rss.nytimes.com/services/xml/rss/nyt/Business.xml",
				Tagger:  "domain",
				Options: map[string]string{"match": "nyt_geo"},
			},
		},
		Dashboard: DashboardConfig{
			Addr:        ":8080",
			CORSOrigins: []string{"http://localhost:3000"},
			Jitter:      0.5,
		},
		Metrics: MetricsConfig{Addr: ":9090"},
	}
}

// DefaultSystemPrompt asks for the two labelled lines the normalizer understands.
const DefaultSystemPrompt = `You classify financial news articles.
Answer with exactly two lines and nothing else:
Sentiment: <Positive, Negative or Neutral>
Themes: <comma-separated list of short themes>`
