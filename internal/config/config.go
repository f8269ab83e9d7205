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
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Pheno     PhenoConfig     `yaml:"pheno" mapstructure:"pheno"`
	Vapi      VapiConfig      `yaml:"vapi" mapstructure:"vapi"`
	Refdata   RefdataConfig   `yaml:"refdata" mapstructure:"refdata"`
	Analyze   AnalyzeConfig   `yaml:"analyze" mapstructure:"analyze"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig holds inference API settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	MaxTokens   int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// PhenoConfig holds medical-coding API credentials and settings.
type PhenoConfig struct {
	Username     string  `yaml:"username" mapstructure:"username"`
	Password     string  `yaml:"password" mapstructure:"password"`
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimitRPS float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	MaxAttempts  int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// VapiConfig holds voice-calling API settings for the negotiate command.
type VapiConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	AssistantID   string `yaml:"assistant_id" mapstructure:"assistant_id"`
	PhoneNumberID string `yaml:"phone_number_id" mapstructure:"phone_number_id"`
}

// RefdataConfig points at the reference cost table and fallback corpus.
type RefdataConfig struct {
	MappingsPath string `yaml:"mappings_path" mapstructure:"mappings_path"`
	FallbackPath string `yaml:"fallback_path" mapstructure:"fallback_path"`
}

// AnalyzeConfig configures analysis runs.
type AnalyzeConfig struct {
	MaxConcurrentBills int `yaml:"max_concurrent_bills" mapstructure:"max_concurrent_bills"`
}

// ServerConfig configures the HTTP server.
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
	v.SetEnvPrefix("BILLSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4000)
	v.SetDefault("anthropic.timeout_secs", 60)
	v.SetDefault("pheno.base_url", "https://phenoml-hackathon.app.pheno.ml")
	v.SetDefault("pheno.rate_limit_rps", 2)
	v.SetDefault("pheno.max_attempts", 3)
	v.SetDefault("pheno.timeout_secs", 60)
	v.SetDefault("refdata.mappings_path", "files/mappings.txt")
	v.SetDefault("refdata.fallback_path", "fallback-data.json")
	v.SetDefault("analyze.max_concurrent_bills", 3)

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
