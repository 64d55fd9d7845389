package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/changelens/impact-engine/pkg/risk"
	"github.com/changelens/impact-engine/pkg/score"
)

// Config holds all configuration for the engine.
type Config struct {
	Serve     bool   `koanf:"serve"`
	Port      int    `koanf:"port"`
	Watch     bool   `koanf:"watch"`
	FactsDir  string `koanf:"facts_dir"`
	Facts     string `koanf:"facts"`
	RepoID    string `koanf:"repo"`
	Branch    string `koanf:"branch"`
	Verbosity string `koanf:"verbosity"`

	MaxDepth  int `koanf:"max_depth"`
	MaxPaths  int `koanf:"max_paths"`
	MaxLength int `koanf:"max_length"`

	MetricsExactThreshold int           `koanf:"metrics_exact_threshold"`
	MetricsSampleSources  int           `koanf:"metrics_sample_sources"`
	MetricsDeadline       time.Duration `koanf:"metrics_deadline"`
	QueryDeadline         time.Duration `koanf:"query_deadline"`

	HistorySize int           `koanf:"history_size"`
	CacheSize   int           `koanf:"cache_size"`
	CacheTTL    time.Duration `koanf:"cache_ttl"`

	Weights    score.Weights   `koanf:"weights"`
	Thresholds risk.Thresholds `koanf:"thresholds"`
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	w := score.DefaultWeights()
	t := risk.DefaultThresholds()
	defaults := map[string]interface{}{
		"serve":     false,
		"port":      8084,
		"watch":     false,
		"facts_dir": "",
		"facts":     "",
		"repo":      "local",
		"branch":    "main",
		"verbosity": "",

		"max_depth":  20,
		"max_paths":  10,
		"max_length": 12,

		"metrics_exact_threshold": 5000,
		"metrics_sample_sources":  256,
		"metrics_deadline":        "30s",
		"query_deadline":          "10s",

		"history_size": 5,
		"cache_size":   128,
		"cache_ttl":    "60s",

		// Nested maps, not dotted keys: the raw map provider merges keys
		// verbatim, so dotted keys would stay flat and never reach the
		// nested Weights/Thresholds fields on unmarshal.
		"weights": map[string]interface{}{
			"dependency_count":  w.DependencyCount,
			"change_frequency":  w.ChangeFrequency,
			"test_coverage_gap": w.TestCoverageGap,
			"business_impact":   w.BusinessImpact,
		},
		"thresholds": map[string]interface{}{
			"critical": t.Critical,
			"high":     t.High,
			"medium":   t.Medium,
		},
	}
	if err := k.Load(makeMapProvider(defaults), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config File (optional) - impact-engine.toml
	// We ignore errors here as the file might not exist
	_ = k.Load(file.Provider("impact-engine.toml"), toml.Parser())

	// 3. Environment Variables
	// Prefix: IMPACT_ENGINE_ (e.g., IMPACT_ENGINE_PORT=9090). Keys contain
	// underscores, so a double underscore marks nesting:
	// IMPACT_ENGINE_THRESHOLDS__HIGH=0.75 -> thresholds.high
	if err := k.Load(env.Provider("IMPACT_ENGINE_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, "IMPACT_ENGINE_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
