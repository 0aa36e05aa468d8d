package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/wilbur182/forgewatch/internal/watch"
)

// DefaultDebounce is the quiet period applied to rules without their own.
const DefaultDebounce = 100 * time.Millisecond

// ErrNoRules is returned by Validate when no watch rule is configured.
var ErrNoRules = errors.New("config: no watch rules configured")

// Config is the root configuration structure.
type Config struct {
	Watch   WatchConfig   `json:"watch"`
	Build   BuildConfig   `json:"build"`
	Tests   TestsConfig   `json:"tests"`
	Project ProjectConfig `json:"project"`
}

// WatchConfig configures event matching and debouncing.
type WatchConfig struct {
	RootDir         string        `json:"rootDir"`
	Rules           []RuleConfig  `json:"rules"`
	Ignored         []string      `json:"ignored"` // path substrings to drop
	DefaultDebounce time.Duration // defaultDebounceMs on disk
}

// RuleConfig is one watch rule. A negative Debounce means "use the default".
type RuleConfig struct {
	Glob     string        `json:"glob"`
	Mode     watch.Mode    `json:"mode"`
	Debounce time.Duration // debounceMs on disk
}

// BuildConfig configures the incremental build engine.
type BuildConfig struct {
	// MaxArtifacts bounds the artifact cache; 0 uses the engine default and a
	// negative value disables eviction.
	MaxArtifacts int `json:"maxArtifacts"`
	// RetryFailed keeps files that failed to compile in the dirty set.
	RetryFailed bool `json:"retryFailed"`
}

// TestsConfig configures test impact resolution.
type TestsConfig struct {
	Markers []string `json:"markers"` // stem suffixes identifying test files
}

// ProjectConfig is the project manifest registered before watching starts.
type ProjectConfig struct {
	Files    map[string][]string `json:"files"`    // file -> imports
	Tests    []string            `json:"tests"`    // known test files
	Mappings map[string][]string `json:"mappings"` // source -> covering tests
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Watch: WatchConfig{
			RootDir: ".",
			Ignored: []string{
				".git/",
				"node_modules/",
				"vendor/",
				"dist/",
				"__pycache__/",
				".idea/",
				".vscode/",
			},
			DefaultDebounce: DefaultDebounce,
		},
		Tests: TestsConfig{
			Markers: []string{".test", ".spec", "_test"},
		},
		Project: ProjectConfig{
			Files:    make(map[string][]string),
			Mappings: make(map[string][]string),
		},
	}
}

// Validate checks the configuration for errors, clamping recoverable values.
func (c *Config) Validate() error {
	if c.Watch.DefaultDebounce < 0 {
		c.Watch.DefaultDebounce = DefaultDebounce
	}
	if c.Watch.RootDir == "" {
		c.Watch.RootDir = "."
	}
	if len(c.Watch.Rules) == 0 {
		return ErrNoRules
	}
	for i, r := range c.Watch.Rules {
		if r.Glob == "" {
			return fmt.Errorf("config: rule %d: empty glob", i)
		}
	}
	return nil
}

// WatchManagerConfig converts the watch section for watch.NewManager.
func (c *Config) WatchManagerConfig() watch.Config {
	rules := make([]watch.Rule, len(c.Watch.Rules))
	for i, r := range c.Watch.Rules {
		rules[i] = watch.Rule{Glob: r.Glob, Mode: r.Mode, Debounce: r.Debounce}
	}
	return watch.Config{
		Rules:           rules,
		RootDir:         c.Watch.RootDir,
		Ignored:         append([]string(nil), c.Watch.Ignored...),
		DefaultDebounce: c.Watch.DefaultDebounce,
	}
}
