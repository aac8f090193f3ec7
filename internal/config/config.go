package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Scorer     ScorerConfig     `yaml:"scorer" mapstructure:"scorer"`
	Views      ViewsConfig      `yaml:"views" mapstructure:"views"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Narrative  NarrativeConfig  `yaml:"narrative" mapstructure:"narrative"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig selects where the entity snapshot is loaded from.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // csv, xlsx, sqlite, postgres
	Path        string `yaml:"path" mapstructure:"path"`
	Sheet       string `yaml:"sheet" mapstructure:"sheet"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Table       string `yaml:"table" mapstructure:"table"`
	Label       string `yaml:"label" mapstructure:"label"`
}

// ScorerConfig holds the composite score weights and penalties.
type ScorerConfig struct {
	RiskWeight       float64 `yaml:"risk_weight" toml:"risk_weight" mapstructure:"risk_weight"`
	EfficiencyWeight float64 `yaml:"efficiency_weight" toml:"efficiency_weight" mapstructure:"efficiency_weight"`
	OutcomeWeight    float64 `yaml:"outcome_weight" toml:"outcome_weight" mapstructure:"outcome_weight"`

	BudgetPressurePenalty    float64 `yaml:"budget_pressure_penalty" toml:"budget_pressure_penalty" mapstructure:"budget_pressure_penalty"`
	ForeignDependencyPenalty float64 `yaml:"foreign_dependency_penalty" toml:"foreign_dependency_penalty" mapstructure:"foreign_dependency_penalty"`
	CapexPressurePenalty     float64 `yaml:"capex_pressure_penalty" toml:"capex_pressure_penalty" mapstructure:"capex_pressure_penalty"`

	// ProfilePath optionally points at a YAML or TOML weight profile.
	ProfilePath string `yaml:"profile_path" toml:"profile_path" mapstructure:"profile_path"`
}

// ViewsConfig configures list sizes for the analytical views.
type ViewsConfig struct {
	TopN int `yaml:"top_n" mapstructure:"top_n"`
}

// AnthropicConfig holds Anthropic API settings for narrative generation.
type AnthropicConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// NarrativeConfig configures memo fan-out and review sessions.
type NarrativeConfig struct {
	Concurrency       int     `yaml:"concurrency" mapstructure:"concurrency"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	MemoryTurns       int     `yaml:"memory_turns" mapstructure:"memory_turns"`
	MaxAttempts       int     `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures snapshot alerting.
type MonitoringConfig struct {
	WebhookURL             string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs      int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	CriticalThreshold      int     `yaml:"critical_threshold" mapstructure:"critical_threshold"`
	HighRiskShareThreshold float64 `yaml:"high_risk_share_threshold" mapstructure:"high_risk_share_threshold"`
}

// CacheConfig configures the memo cache. An empty RedisURL keeps memos in
// process memory.
type CacheConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FISCAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "csv")
	v.SetDefault("store.path", "data/master_ministry_fiscal_intelligence.csv")
	v.SetDefault("store.table", "entities")
	v.SetDefault("store.sheet", "")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.label", "")
	v.SetDefault("scorer.risk_weight", 0.40)
	v.SetDefault("scorer.efficiency_weight", 0.25)
	v.SetDefault("scorer.outcome_weight", 0.15)
	v.SetDefault("scorer.budget_pressure_penalty", 0.10)
	v.SetDefault("scorer.foreign_dependency_penalty", 0.05)
	v.SetDefault("scorer.capex_pressure_penalty", 0.05)
	v.SetDefault("views.top_n", 10)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.temperature", 0.15)
	v.SetDefault("narrative.concurrency", 4)
	v.SetDefault("narrative.requests_per_second", 2.0)
	v.SetDefault("narrative.memory_turns", 8)
	v.SetDefault("narrative.max_attempts", 3)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.critical_threshold", 5)
	v.SetDefault("monitoring.high_risk_share_threshold", 0.25)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl_hours", 24)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings required by the given mode:
// "score", "narrative", "serve" or "import".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "score":
		errs = append(errs, c.validateStore()...)
	case "narrative":
		errs = append(errs, c.validateStore()...)
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
		if c.Anthropic.MaxTokens <= 0 {
			errs = append(errs, "anthropic.max_tokens must be > 0")
		}
		if c.Narrative.Concurrency < 1 || c.Narrative.Concurrency > 16 {
			errs = append(errs, "narrative.concurrency must be between 1 and 16")
		}
		if c.Narrative.RequestsPerSecond <= 0 {
			errs = append(errs, "narrative.requests_per_second must be > 0")
		}
	case "serve":
		errs = append(errs, c.validateStore()...)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "import":
		switch c.Store.Driver {
		case "sqlite", "postgres":
			errs = append(errs, c.validateStore()...)
		default:
			errs = append(errs, "store.driver must be sqlite or postgres for import")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Views.TopN < 0 {
		errs = append(errs, "views.top_n must be >= 0")
	}
	if c.Cache.Enabled && c.Cache.TTLHours <= 0 {
		errs = append(errs, "cache.ttl_hours must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed for %s: %s", mode, strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "csv", "xlsx", "sqlite":
		if c.Store.Path == "" {
			errs = append(errs, fmt.Sprintf("store.path is required for driver %s", c.Store.Driver))
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for driver postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
