package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/quantoshi/hedgefolio/internal/core"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Backtest    BacktestConfig    `mapstructure:"backtest"`
	PriceSource PriceSourceConfig `mapstructure:"price_source"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	JobTTLHours int    `mapstructure:"job_ttl_hours"`
	MaxJobs     int    `mapstructure:"max_jobs"`
}

type StorageConfig struct {
	Archive ArchiveConfig `mapstructure:"archive"`
}

type ArchiveConfig struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// BacktestConfig carries the default simulation parameters; any of them can
// be overridden per request or per CLI invocation.
type BacktestConfig struct {
	InitialCapital    float64 `mapstructure:"initial_capital"`
	TargetRatio       float64 `mapstructure:"target_ratio"`
	MAPeriod          int     `mapstructure:"ma_period"`
	MarginPerContract float64 `mapstructure:"margin_per_contract"`
	SafetyMultiplier  float64 `mapstructure:"safety_multiplier"`
	EnableRebalance   bool    `mapstructure:"enable_rebalance"`
}

type PriceSourceConfig struct {
	Provider         string `mapstructure:"provider"` // "yahoo" or "csv"
	IndexSymbol      string `mapstructure:"index_symbol"`
	InstrumentSymbol string `mapstructure:"instrument_symbol"`
	CSVPath          string `mapstructure:"csv_path"`
}

type LLMConfig struct {
	Provider string       `mapstructure:"provider"`
	Claude   ClaudeConfig `mapstructure:"claude"`
	OpenAI   OpenAIConfig `mapstructure:"openai"`
}

type ClaudeConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			JobTTLHours: 1,
			MaxJobs:     100,
		},
		Storage: StorageConfig{
			Archive: ArchiveConfig{
				Type: "localfs",
				Path: "data/archive",
			},
		},
		Backtest: BacktestConfig{
			InitialCapital:    1_000_000,
			TargetRatio:       0.8,
			MAPeriod:          20,
			MarginPerContract: 46_000,
			SafetyMultiplier:  1.5,
			EnableRebalance:   true,
		},
		PriceSource: PriceSourceConfig{
			Provider:         "yahoo",
			IndexSymbol:      "^TWII",
			InstrumentSymbol: "00631L.TW",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	if c.Backtest.TargetRatio <= 0 || c.Backtest.TargetRatio >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("target_ratio must be in (0,1), got %f", c.Backtest.TargetRatio))
	}
	if c.Backtest.MAPeriod < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("ma_period must be positive, got %d", c.Backtest.MAPeriod))
	}
	if c.Backtest.SafetyMultiplier < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("safety_multiplier must be >= 1, got %f", c.Backtest.SafetyMultiplier))
	}

	switch c.PriceSource.Provider {
	case "", "yahoo":
	case "csv":
		if c.PriceSource.CSVPath == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("csv_path required when price source is csv"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown price source provider %q", c.PriceSource.Provider))
	}

	// LLM validation - if provider set, check config exists
	if c.LLM.Provider != "" {
		switch c.LLM.Provider {
		case "claude":
			if c.LLM.Claude.APIKey == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("claude api_key required when provider is claude"))
			}
		case "openai":
			if c.LLM.OpenAI.APIKey == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("openai api_key required when provider is openai"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("unknown llm provider %q", c.LLM.Provider))
		}
	}

	return nil
}
