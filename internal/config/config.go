package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/engine"
	"github.com/Veraticus/tally/internal/llm"
	"github.com/spf13/viper"
)

// Model store kinds.
const (
	ModelStoreDB   = "db"
	ModelStoreFile = "file"
)

// SetDefaults registers the default value of every key.
func SetDefaults() {
	defaults := engine.DefaultConfig()

	viper.SetDefault("database.path", filepath.Join(DataDir(), "tally.db"))
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	viper.SetDefault("engine.rule_threshold", defaults.RuleThreshold)
	viper.SetDefault("engine.auto_apply_threshold", defaults.AutoApplyThreshold)
	viper.SetDefault("engine.min_training_samples", defaults.MinTrainingSamples)
	viper.SetDefault("engine.text_timeout", defaults.TextTimeout)

	viper.SetDefault("llm.temperature", 0.3)
	viper.SetDefault("llm.max_tokens", 300)
	viper.SetDefault("llm.max_retries", 3)
	viper.SetDefault("llm.retry_delay", time.Second)
	viper.SetDefault("llm.rate_limit", 50)
	viper.SetDefault("llm.cache_ttl", 24*time.Hour)
	viper.SetDefault("llm.min_confidence", llm.DefaultMinConfidence)
	viper.SetDefault("llm.timeout", llm.DefaultTimeout)

	viper.SetDefault("model.store", ModelStoreDB)
	viper.SetDefault("model.path", filepath.Join(DataDir(), "models"))

	viper.SetDefault("serve.addr", ":8080")
	viper.SetDefault("serve.rate", "100-M")
	viper.SetDefault("serve.retrain_schedule", "")
	viper.SetDefault("serve.timezone", "Local")
	viper.SetDefault("serve.tls", false)
	viper.SetDefault("serve.cert_dir", filepath.Join(ConfigDir(), "certs"))
}

// DatabasePath returns the expanded database path.
func DatabasePath() string {
	return ExpandPath(viper.GetString("database.path"))
}

// LoadEngineConfig reads the engine.* keys.
func LoadEngineConfig() (engine.Config, error) {
	cfg := engine.Config{
		RuleThreshold:      viper.GetFloat64("engine.rule_threshold"),
		AutoApplyThreshold: viper.GetFloat64("engine.auto_apply_threshold"),
		MinTrainingSamples: viper.GetInt("engine.min_training_samples"),
		TextTimeout:        viper.GetDuration("engine.text_timeout"),
	}

	if err := checkUnit("engine.rule_threshold", cfg.RuleThreshold); err != nil {
		return engine.Config{}, err
	}
	if err := checkUnit("engine.auto_apply_threshold", cfg.AutoApplyThreshold); err != nil {
		return engine.Config{}, err
	}
	if cfg.MinTrainingSamples < 0 {
		return engine.Config{}, fmt.Errorf("%w: engine.min_training_samples must not be negative", common.ErrInvalidConfig)
	}
	return cfg, nil
}

// LoadLLMConfig reads the llm.* keys. The API key comes from llm.api_key,
// falling back to the provider's conventional environment variable.
func LoadLLMConfig() (llm.Config, error) {
	cfg := llm.Config{
		Provider:      strings.ToLower(viper.GetString("llm.provider")),
		APIKey:        viper.GetString("llm.api_key"),
		Model:         viper.GetString("llm.model"),
		BaseURL:       viper.GetString("llm.base_url"),
		MaxRetries:    viper.GetInt("llm.max_retries"),
		RetryDelay:    viper.GetDuration("llm.retry_delay"),
		CacheTTL:      viper.GetDuration("llm.cache_ttl"),
		Timeout:       viper.GetDuration("llm.timeout"),
		RateLimit:     viper.GetInt("llm.rate_limit"),
		Temperature:   viper.GetFloat64("llm.temperature"),
		MaxTokens:     viper.GetInt("llm.max_tokens"),
		MinConfidence: viper.GetFloat64("llm.min_confidence"),
	}

	if cfg.APIKey == "" {
		switch cfg.Provider {
		case llm.ProviderAnthropic:
			cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case llm.ProviderOpenAI:
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		case llm.ProviderGemini:
			cfg.APIKey = os.Getenv("GEMINI_API_KEY")
		case "":
		default:
			return llm.Config{}, fmt.Errorf("%w: unsupported llm.provider %q", common.ErrInvalidConfig, cfg.Provider)
		}
	}

	if err := checkUnit("llm.min_confidence", cfg.MinConfidence); err != nil {
		return llm.Config{}, err
	}
	return cfg, nil
}

// ModelConfig selects where the trained model blob is persisted.
type ModelConfig struct {
	Store string
	Path  string
}

// LoadModelConfig reads the model.* keys.
func LoadModelConfig() (ModelConfig, error) {
	cfg := ModelConfig{
		Store: strings.ToLower(viper.GetString("model.store")),
		Path:  ExpandPath(viper.GetString("model.path")),
	}

	switch cfg.Store {
	case ModelStoreDB:
	case ModelStoreFile:
		if cfg.Path == "" {
			return ModelConfig{}, fmt.Errorf("%w: model.path is required for the file store", common.ErrMissingConfig)
		}
	default:
		return ModelConfig{}, fmt.Errorf("%w: model.store must be %q or %q, got %q",
			common.ErrInvalidConfig, ModelStoreDB, ModelStoreFile, cfg.Store)
	}
	return cfg, nil
}

// ServeConfig configures the HTTP server.
type ServeConfig struct {
	Addr string
	// Rate is a ulule limiter formatted rate such as "100-M".
	Rate string
	// RetrainSchedule is a cron spec; empty disables scheduled retraining.
	RetrainSchedule string
	// TimeZone is the IANA zone the schedule is evaluated in.
	TimeZone string
	// CertDir holds the self-signed certificate used when TLS is set.
	CertDir  string
	TLSHosts []string
	TLS      bool
}

// LoadServeConfig reads the serve.* keys.
func LoadServeConfig() (ServeConfig, error) {
	cfg := ServeConfig{
		Addr:            viper.GetString("serve.addr"),
		Rate:            viper.GetString("serve.rate"),
		RetrainSchedule: viper.GetString("serve.retrain_schedule"),
		TimeZone:        viper.GetString("serve.timezone"),
		CertDir:         ExpandPath(viper.GetString("serve.cert_dir")),
		TLSHosts:        viper.GetStringSlice("serve.tls_hosts"),
		TLS:             viper.GetBool("serve.tls"),
	}
	if cfg.Addr == "" {
		return ServeConfig{}, fmt.Errorf("%w: serve.addr", common.ErrMissingConfig)
	}
	if _, err := time.LoadLocation(cfg.TimeZone); err != nil {
		return ServeConfig{}, fmt.Errorf("%w: serve.timezone %q: %v", common.ErrInvalidConfig, cfg.TimeZone, err)
	}
	return cfg, nil
}

func checkUnit(key string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%w: %s must be between 0 and 1, got %v", common.ErrInvalidConfig, key, v)
	}
	return nil
}
