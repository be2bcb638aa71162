// Package config handles configuration loading for sipboard.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Paths      PathsConfig      `mapstructure:"paths"      yaml:"paths"`
	Sources    SourcesConfig    `mapstructure:"sources"    yaml:"sources"`
	Consensus  ConsensusConfig  `mapstructure:"consensus"  yaml:"consensus"`
	Trend      TrendConfig      `mapstructure:"trend"      yaml:"trend"`
	Summarizer SummarizerConfig `mapstructure:"summarizer" yaml:"summarizer"`
	Publish    PublishConfig    `mapstructure:"publish"    yaml:"publish"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
}

// PathsConfig holds filesystem locations.
type PathsConfig struct {
	Inbox    string `mapstructure:"inbox"    yaml:"inbox"`    // per-source advice documents, <inbox>/<date>/<source>.md
	Exports  string `mapstructure:"exports"  yaml:"exports"`  // rendered markdown output
	Taxonomy string `mapstructure:"taxonomy" yaml:"taxonomy"` // reference taxonomy JSON
	Store    string `mapstructure:"store"    yaml:"store"`    // badger artifact database
}

// SourcesConfig describes the expected advice sources and their alias
// spellings.
type SourcesConfig struct {
	Expected     []string          `mapstructure:"expected"      yaml:"expected"`      // canonical source names
	Aliases      map[string]string `mapstructure:"aliases"       yaml:"aliases"`       // raw spelling -> canonical
	AllowPartial bool              `mapstructure:"allow_partial" yaml:"allow_partial"` // proceed when some sources are absent
}

// ConsensusConfig holds the daily consensus thresholds. The tau and
// quorum values are deliberate configuration, not constants: product
// has not pinned them.
type ConsensusConfig struct {
	TauCategory       float64 `mapstructure:"tau_category"       yaml:"tau_category"`       // max-min spread for category agreement
	TauItem           float64 `mapstructure:"tau_item"           yaml:"tau_item"`           // target band around supporter median
	Quorum            float64 `mapstructure:"quorum"             yaml:"quorum"`             // fraction of usable sources, 0..1
	LookbackDays      int     `mapstructure:"lookback_days"      yaml:"lookback_days"`      // new-direction history window
	MaxFacts          int     `mapstructure:"max_facts"          yaml:"max_facts"`          // cap on top-shift / top-divergence lists
	Similarity        float64 `mapstructure:"similarity"         yaml:"similarity"`         // name-join threshold
	SimilarityRelaxed float64 `mapstructure:"similarity_relaxed" yaml:"similarity_relaxed"` // threshold when one name prefixes the other
}

// TrendConfig holds the weekly analyzer settings.
type TrendConfig struct {
	Tolerance float64 `mapstructure:"tolerance" yaml:"tolerance"` // band for stable-vs-moved
	Days      int     `mapstructure:"days"      yaml:"days"`      // default trailing window length
}

// SummarizerConfig selects and configures the narration backend.
type SummarizerConfig struct {
	Mode       string `mapstructure:"mode"        yaml:"mode"` // "facts", "openai", "none"
	Endpoint   string `mapstructure:"endpoint"    yaml:"endpoint"`
	Model      string `mapstructure:"model"       yaml:"model"`
	APIKey     string `mapstructure:"api_key"     yaml:"api_key"`
	MaxTokens  int    `mapstructure:"max_tokens"  yaml:"max_tokens"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// PublishConfig holds the git publishing settings.
type PublishConfig struct {
	Remote string `mapstructure:"remote" yaml:"remote"`
	Branch string `mapstructure:"branch" yaml:"branch"` // empty = current branch
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/sipboard.yaml (project root)
//  2. ~/.sipboard/sipboard.yaml (home directory)
//  3. /etc/sipboard/sipboard.yaml (system)
//
// Environment variables override config file values.
// Format: SIPBOARD_<SECTION>_<KEY>, e.g., SIPBOARD_CONSENSUS_QUORUM
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("sipboard")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".sipboard"))
	v.AddConfigPath("/etc/sipboard")

	v.SetEnvPrefix("SIPBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found — that's fine, use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("SIPBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Paths defaults
	v.SetDefault("paths.inbox", "./advice")
	v.SetDefault("paths.exports", "./reports")
	v.SetDefault("paths.taxonomy", "./config/taxonomy.json")
	v.SetDefault("paths.store", "./data/sipboard.db")

	// Sources defaults
	v.SetDefault("sources.allow_partial", true)

	// Consensus defaults. Tau and quorum are placeholders pending
	// product confirmation; expose, never hardcode.
	v.SetDefault("consensus.tau_category", 0.05)
	v.SetDefault("consensus.tau_item", 0.05)
	v.SetDefault("consensus.quorum", 0.60)
	v.SetDefault("consensus.lookback_days", 30)
	v.SetDefault("consensus.max_facts", 5)
	v.SetDefault("consensus.similarity", 0.60)
	v.SetDefault("consensus.similarity_relaxed", 0.55)

	// Trend defaults
	v.SetDefault("trend.tolerance", 0.05)
	v.SetDefault("trend.days", 7)

	// Summarizer defaults
	v.SetDefault("summarizer.mode", "facts")
	v.SetDefault("summarizer.endpoint", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("summarizer.model", "gpt-4o-mini")
	v.SetDefault("summarizer.max_tokens", 512)
	v.SetDefault("summarizer.timeout_sec", 60)

	// Publish defaults
	v.SetDefault("publish.remote", "origin")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("SIPBOARD_SUMMARIZER_API_KEY"); key != "" {
		cfg.Summarizer.APIKey = key
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
