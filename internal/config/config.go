// Package config loads pipeline configuration from file, environment,
// and defaults via viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// Config is the full pipeline configuration.
type Config struct {
	// Bucket is the Cloud Storage bucket documents upload to.
	Bucket string `mapstructure:"bucket" yaml:"bucket"`

	Provider ProviderCfg `mapstructure:"provider" yaml:"provider"`
	Workers  WorkersCfg  `mapstructure:"workers" yaml:"workers"`
	Limits   LimitsCfg   `mapstructure:"limits" yaml:"limits"`
	Verify   VerifyCfg   `mapstructure:"verify" yaml:"verify"`
	Repair   RepairCfg   `mapstructure:"repair" yaml:"repair"`
}

// ProviderCfg selects and configures the AI providers.
type ProviderCfg struct {
	// Correction names the corrector used by the format stage:
	// "gemini" or "openai".
	Correction string `mapstructure:"correction" yaml:"correction"`

	Gemini GeminiCfg `mapstructure:"gemini" yaml:"gemini"`
	OpenAI OpenAICfg `mapstructure:"openai" yaml:"openai"`
}

// GeminiCfg configures the Vertex AI clients.
type GeminiCfg struct {
	ProjectID   string  `mapstructure:"project_id" yaml:"project_id"`
	Region      string  `mapstructure:"region" yaml:"region"`
	Model       string  `mapstructure:"model" yaml:"model"`
	VisionModel string  `mapstructure:"vision_model" yaml:"vision_model"`
	RateLimit   float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	MaxRetries  int     `mapstructure:"max_retries" yaml:"max_retries"`
}

// OpenAICfg configures the OpenAI corrector.
type OpenAICfg struct {
	APIKey    string  `mapstructure:"api_key" yaml:"api_key"`
	Model     string  `mapstructure:"model" yaml:"model"`
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	Enabled   bool    `mapstructure:"enabled" yaml:"enabled"`
}

// WorkersCfg sizes the stage worker pools.
type WorkersCfg struct {
	// IO is the pool size for network and subprocess bound stages.
	IO int `mapstructure:"io" yaml:"io"`

	// CPU is the pool size for compute bound stages. Zero means one
	// worker per core.
	CPU int `mapstructure:"cpu" yaml:"cpu"`
}

// LimitsCfg holds size and batching limits.
type LimitsCfg struct {
	// ChunkPages is the page span per correction chunk.
	ChunkPages int `mapstructure:"chunk_pages" yaml:"chunk_pages"`

	// LargeFileMB is the size above which files process sequentially.
	LargeFileMB int `mapstructure:"large_file_mb" yaml:"large_file_mb"`

	// VisionBatchPages is the page span per vision extraction call.
	VisionBatchPages int `mapstructure:"vision_batch_pages" yaml:"vision_batch_pages"`

	// VisionMaxMB is the PDF size above which vision extraction falls
	// back to local text extraction.
	VisionMaxMB int `mapstructure:"vision_max_mb" yaml:"vision_max_mb"`

	// MinOCRTextChars is the page-one character count the clean stage
	// requires before trusting an OCR pass.
	MinOCRTextChars int `mapstructure:"min_ocr_text_chars" yaml:"min_ocr_text_chars"`

	// CompressionMinReduction is the fractional size reduction required
	// to keep a compressed PDF.
	CompressionMinReduction float64 `mapstructure:"compression_min_reduction" yaml:"compression_min_reduction"`
}

// VerifyCfg holds verification thresholds.
type VerifyCfg struct {
	// PageTolerance is the allowed page count drift between a PDF and
	// its formatted text.
	PageTolerance int `mapstructure:"page_tolerance" yaml:"page_tolerance"`

	// MatchThreshold is the minimum per-page accuracy treated as a
	// match, and the minimum document mean treated as a pass.
	MatchThreshold float64 `mapstructure:"match_threshold" yaml:"match_threshold"`

	// MinTextChars flags formatted documents with suspiciously little
	// content.
	MinTextChars int `mapstructure:"min_text_chars" yaml:"min_text_chars"`
}

// RepairCfg holds the accuracy bands that select a repair strategy.
// Values are percentages of mean document accuracy.
type RepairCfg struct {
	// EnhancedOCRBelow routes documents under this bound to a full
	// re-OCR from the original scan.
	EnhancedOCRBelow float64 `mapstructure:"enhanced_ocr_below" yaml:"enhanced_ocr_below"`

	// ReExtractBelow routes documents in [EnhancedOCRBelow, this) to
	// re-extraction and re-formatting.
	ReExtractBelow float64 `mapstructure:"re_extract_below" yaml:"re_extract_below"`

	// ReformatBelow routes documents in [ReExtractBelow, this) to
	// re-formatting only.
	ReformatBelow float64 `mapstructure:"reformat_below" yaml:"reformat_below"`
}

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	defaults := DefaultConfig()
	viper.SetDefault("bucket", defaults.Bucket)
	viper.SetDefault("provider", defaults.Provider)
	viper.SetDefault("workers", defaults.Workers)
	viper.SetDefault("limits", defaults.Limits)
	viper.SetDefault("verify", defaults.Verify)
	viper.SetDefault("repair", defaults.Repair)

	// Environment variables with DOCKET_ prefix
	viper.SetEnvPrefix("DOCKET")
	viper.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.docket")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	viper.WatchConfig()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Docket configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Vertex AI authenticates via application default credentials

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
