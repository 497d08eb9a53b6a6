package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	HubSpot   HubSpotConfig   `yaml:"hubspot" mapstructure:"hubspot"`
	Analytics AnalyticsConfig `yaml:"analytics" mapstructure:"analytics"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Report    ReportConfig    `yaml:"report" mapstructure:"report"`
	Proofread ProofreadConfig `yaml:"proofread" mapstructure:"proofread"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// HubSpotConfig holds CRM API credentials. AccessToken is used directly when
// set (private app token); otherwise the OAuth refresh flow uses the client
// credentials together with the stored connection's refresh token.
type HubSpotConfig struct {
	AccessToken  string  `yaml:"access_token" mapstructure:"access_token"`
	ClientID     string  `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string  `yaml:"client_secret" mapstructure:"client_secret"`
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit    float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxRecords   int     `yaml:"max_records" mapstructure:"max_records"`
}

// AnalyticsConfig holds Google Analytics Data API settings.
type AnalyticsConfig struct {
	PropertyID   string `yaml:"property_id" mapstructure:"property_id"`
	AccessToken  string `yaml:"access_token" mapstructure:"access_token"`
	ClientID     string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key          string `yaml:"key" mapstructure:"key"`
	Model        string `yaml:"model" mapstructure:"model"`
	HaikuModel   string `yaml:"haiku_model" mapstructure:"haiku_model"`
	MaxBatchSize int    `yaml:"max_batch_size" mapstructure:"max_batch_size"`
}

// ReportConfig configures report generation.
type ReportConfig struct {
	Pipelines        []string `yaml:"pipelines" mapstructure:"pipelines"`
	SearchDelayMS    int      `yaml:"search_delay_ms" mapstructure:"search_delay_ms"`
	MaxSourceWorkers int      `yaml:"max_source_workers" mapstructure:"max_source_workers"`
	TimeoutSecs      int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ProofreadConfig configures the marketing email review batches.
type ProofreadConfig struct {
	EmailLimit      int `yaml:"email_limit" mapstructure:"email_limit"`
	PollTimeoutMins int `yaml:"poll_timeout_mins" mapstructure:"poll_timeout_mins"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("KPI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "kpi.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("hubspot.base_url", "https://api.hubapi.com")
	v.SetDefault("hubspot.rate_limit", 8)
	v.SetDefault("hubspot.max_records", 100000)
	v.SetDefault("analytics.base_url", "https://analyticsdata.googleapis.com/v1beta")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_batch_size", 100)
	v.SetDefault("report.search_delay_ms", 250)
	v.SetDefault("report.max_source_workers", 4)
	v.SetDefault("report.timeout_secs", 300)
	v.SetDefault("proofread.email_limit", 20)
	v.SetDefault("proofread.poll_timeout_mins", 30)

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

// Validate checks that the fields required by the given run mode are set.
func (c *Config) Validate(mode string) error {
	var problems []string

	checkStore := func() {
		if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
			problems = append(problems, "store.driver must be sqlite or postgres")
		}
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	}
	checkReport := func() {
		if c.HubSpot.AccessToken == "" && c.HubSpot.ClientID == "" {
			problems = append(problems, "hubspot.access_token or hubspot.client_id is required")
		}
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		if c.Report.MaxSourceWorkers < 1 || c.Report.MaxSourceWorkers > 16 {
			problems = append(problems, "report.max_source_workers must be between 1 and 16")
		}
	}

	switch mode {
	case "serve":
		checkStore()
		checkReport()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "report":
		checkStore()
		checkReport()
	case "proofread":
		checkStore()
		if c.HubSpot.AccessToken == "" && c.HubSpot.ClientID == "" {
			problems = append(problems, "hubspot.access_token or hubspot.client_id is required")
		}
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
	case "crm":
		checkStore()
		if c.HubSpot.AccessToken == "" && c.HubSpot.ClientID == "" {
			problems = append(problems, "hubspot.access_token or hubspot.client_id is required")
		}
	case "migrate", "store":
		checkStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
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
