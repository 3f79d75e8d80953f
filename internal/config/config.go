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
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Knowledge KnowledgeConfig `yaml:"knowledge" mapstructure:"knowledge"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port             int      `yaml:"port" mapstructure:"port"`
	ReadTimeoutSecs  int      `yaml:"read_timeout_secs" mapstructure:"read_timeout_secs"`
	WriteTimeoutSecs int      `yaml:"write_timeout_secs" mapstructure:"write_timeout_secs"`
	CORSOrigins      []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	AdminToken       string   `yaml:"admin_token" mapstructure:"admin_token"`
}

// SourceConfig is the remote table for one category.
type SourceConfig struct {
	URL    string `yaml:"url" mapstructure:"url"`
	Format string `yaml:"format" mapstructure:"format"`
}

// FTPConfig holds credentials for ftp:// sources without userinfo.
type FTPConfig struct {
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
}

// KnowledgeConfig configures knowledge base ingestion.
type KnowledgeConfig struct {
	// Sources is keyed by lower-case category name (food, transport, energy, water).
	Sources          map[string]SourceConfig `yaml:"sources" mapstructure:"sources"`
	TablesPath       string                  `yaml:"tables_path" mapstructure:"tables_path"`
	FetchTimeoutSecs int                     `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs"`
	FetchAttempts    int                     `yaml:"fetch_attempts" mapstructure:"fetch_attempts"`
	MaxBytes         int64                   `yaml:"max_bytes" mapstructure:"max_bytes"`
	RateLimit        float64                 `yaml:"rate_limit" mapstructure:"rate_limit"`
	UserAgent        string                  `yaml:"user_agent" mapstructure:"user_agent"`
	FTP              FTPConfig               `yaml:"ftp" mapstructure:"ftp"`
}

// AnthropicConfig holds Anthropic API settings. An empty key disables AI estimation.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	MaxTokens   int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
}

// StoreConfig configures the payload cache backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	CacheDir    string `yaml:"cache_dir" mapstructure:"cache_dir"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

var sourceCategories = []string{"food", "transport", "energy", "water"}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("EMISSIONS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("anthropic.key", "EMISSIONS_ANTHROPIC_KEY", "ANTHROPIC_API_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind env")
	}

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout_secs", 10)
	v.SetDefault("server.write_timeout_secs", 30)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.admin_token", "")
	for _, c := range sourceCategories {
		v.SetDefault("knowledge.sources."+c+".url", "")
		v.SetDefault("knowledge.sources."+c+".format", "csv")
	}
	v.SetDefault("knowledge.tables_path", "")
	v.SetDefault("knowledge.fetch_timeout_secs", 10)
	v.SetDefault("knowledge.fetch_attempts", 2)
	v.SetDefault("knowledge.max_bytes", 32<<20)
	v.SetDefault("knowledge.rate_limit", 5.0)
	v.SetDefault("knowledge.user_agent", "emissions-service/1.0")
	v.SetDefault("knowledge.ftp.username", "")
	v.SetDefault("knowledge.ftp.password", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 128)
	v.SetDefault("anthropic.timeout_secs", 15)
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("store.driver", "file")
	v.SetDefault("store.cache_dir", "./cache")
	v.SetDefault("store.database_url", "")

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

// Validate checks the settings required by mode ("serve", "refresh", "resolve").
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	case "refresh", "resolve":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	for name, src := range c.Knowledge.Sources {
		if !isSourceCategory(name) {
			errs = append(errs, fmt.Sprintf("knowledge.sources.%s is not a known category", name))
		}
		switch strings.ToLower(strings.TrimSpace(src.Format)) {
		case "", "csv", "xlsx":
		default:
			errs = append(errs, fmt.Sprintf("knowledge.sources.%s.format must be csv or xlsx", name))
		}
	}
	if c.Knowledge.FetchTimeoutSecs <= 0 {
		errs = append(errs, "knowledge.fetch_timeout_secs must be > 0")
	}
	if c.Knowledge.FetchAttempts < 1 || c.Knowledge.FetchAttempts > 5 {
		errs = append(errs, "knowledge.fetch_attempts must be between 1 and 5")
	}

	switch c.Store.Driver {
	case "", "file", "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}

	if c.Anthropic.TimeoutSecs < 0 {
		errs = append(errs, "anthropic.timeout_secs must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func isSourceCategory(name string) bool {
	for _, c := range sourceCategories {
		if strings.EqualFold(name, c) {
			return true
		}
	}
	return false
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
