// Package config loads commitwatch configuration from YAML files,
// environment variables, and the OS keychain.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings.
type Config struct {
	// Storage configuration
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// GitHub history source configuration
	GitHub GitHubConfig `yaml:"github" mapstructure:"github"`

	// LLM collaborator configuration
	LLM LLMConfig `yaml:"llm" mapstructure:"llm"`

	// Analysis tuning
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`

	// Local cache
	Cache CacheConfig `yaml:"cache" mapstructure:"cache"`
}

type StorageConfig struct {
	Type        string `yaml:"type" mapstructure:"type"` // "postgres", "sqlite"
	PostgresDSN string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
	LocalPath   string `yaml:"local_path" mapstructure:"local_path"`
}

type GitHubConfig struct {
	Token     string `yaml:"token" mapstructure:"token"`
	RateLimit int    `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second
}

type LLMConfig struct {
	Provider       string `yaml:"provider" mapstructure:"provider"` // "ollama", "openai", "none"
	OllamaModel    string `yaml:"ollama_model" mapstructure:"ollama_model"`
	OllamaBinary   string `yaml:"ollama_binary" mapstructure:"ollama_binary"`
	OpenAIKey      string `yaml:"openai_key" mapstructure:"openai_key"`
	OpenAIModel    string `yaml:"openai_model" mapstructure:"openai_model"`
	UseKeychain    bool   `yaml:"use_keychain" mapstructure:"use_keychain"`
	TimeoutSeconds int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	MaxOutputBytes int    `yaml:"max_output_bytes" mapstructure:"max_output_bytes"`
}

type AnalysisConfig struct {
	// TrivialFloor is the minimum lines changed for anomaly consideration.
	TrivialFloor int `yaml:"trivial_floor" mapstructure:"trivial_floor"`
	// DeviationMultiplier is the stddev multiplier for the in-range check.
	DeviationMultiplier float64 `yaml:"deviation_multiplier" mapstructure:"deviation_multiplier"`
	// HourTolerance widens the contributor's typical active-hour range.
	HourTolerance int `yaml:"hour_tolerance" mapstructure:"hour_tolerance"`
	// ActivityWindowDays is the trailing window for activity scoring.
	ActivityWindowDays int `yaml:"activity_window_days" mapstructure:"activity_window_days"`
	// BotPatternFile optionally overrides the built-in bot pattern set.
	BotPatternFile string `yaml:"bot_pattern_file" mapstructure:"bot_pattern_file"`
	// Workers bounds concurrent anomaly analysis in the pipeline.
	Workers int `yaml:"workers" mapstructure:"workers"`
}

type CacheConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// Default returns default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Storage: StorageConfig{
			Type:      "sqlite",
			LocalPath: filepath.Join(homeDir, ".commitwatch", "local.db"),
		},
		GitHub: GitHubConfig{
			RateLimit: 10,
		},
		LLM: LLMConfig{
			Provider:       "ollama",
			OllamaModel:    "llama3.1",
			OllamaBinary:   "ollama",
			OpenAIModel:    "gpt-4o-mini",
			TimeoutSeconds: 30,
			MaxOutputBytes: 64 * 1024,
		},
		Analysis: AnalysisConfig{
			TrivialFloor:        5,
			DeviationMultiplier: 2.0,
			HourTolerance:       2,
			ActivityWindowDays:  90,
			Workers:             4,
		},
		Cache: CacheConfig{
			Path: filepath.Join(homeDir, ".commitwatch", "anomaly.db"),
		},
	}
}

// Load loads configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("storage", cfg.Storage)
	v.SetDefault("github", cfg.GitHub)
	v.SetDefault("llm", cfg.LLM)
	v.SetDefault("analysis", cfg.Analysis)
	v.SetDefault("cache", cfg.Cache)

	v.SetEnvPrefix("COMMITWATCH")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".commitwatch")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".commitwatch"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Missing config file is fine, defaults apply.
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence.
func loadEnvFiles() {
	envFiles := []string{
		".env.local",
		".env",
	}
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".commitwatch", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.GitHub.Token = token
	}
	if rateLimit := os.Getenv("GITHUB_RATE_LIMIT"); rateLimit != "" {
		if n, err := strconv.Atoi(rateLimit); err == nil {
			cfg.GitHub.RateLimit = n
		}
	}
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		cfg.LLM.Provider = provider
	}
	if model := os.Getenv("OLLAMA_MODEL"); model != "" {
		cfg.LLM.OllamaModel = model
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.LLM.OpenAIKey = key
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Storage.Type = "postgres"
		cfg.Storage.PostgresDSN = dsn
	}
}
