package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/wilbur182/forgewatch/internal/watch"
)

// fileConfig is the on-disk JSON shape. Durations are integer milliseconds
// and optional fields are pointers so absent values keep their defaults.
type fileConfig struct {
	Watch   fileWatchConfig `json:"watch"`
	Build   fileBuildConfig `json:"build,omitempty"`
	Tests   TestsConfig     `json:"tests,omitempty"`
	Project ProjectConfig   `json:"project,omitempty"`
}

type fileWatchConfig struct {
	RootDir           string           `json:"rootDir,omitempty"`
	Rules             []fileRuleConfig `json:"rules"`
	Ignored           []string         `json:"ignored,omitempty"`
	DefaultDebounceMs *int64           `json:"defaultDebounceMs,omitempty"`
}

type fileRuleConfig struct {
	Glob       string     `json:"glob"`
	Mode       watch.Mode `json:"mode"`
	DebounceMs *int64     `json:"debounceMs,omitempty"`
}

type fileBuildConfig struct {
	MaxArtifacts *int  `json:"maxArtifacts,omitempty"`
	RetryFailed  *bool `json:"retryFailed,omitempty"`
}

// toFileConfig converts Config to the JSON-serializable format.
func toFileConfig(cfg *Config) fileConfig {
	rules := make([]fileRuleConfig, len(cfg.Watch.Rules))
	for i, r := range cfg.Watch.Rules {
		rules[i] = fileRuleConfig{Glob: r.Glob, Mode: r.Mode}
		if r.Debounce >= 0 {
			rules[i].DebounceMs = millis(r.Debounce)
		}
	}
	return fileConfig{
		Watch: fileWatchConfig{
			RootDir:           cfg.Watch.RootDir,
			Rules:             rules,
			Ignored:           cfg.Watch.Ignored,
			DefaultDebounceMs: millis(cfg.Watch.DefaultDebounce),
		},
		Build: fileBuildConfig{
			MaxArtifacts: &cfg.Build.MaxArtifacts,
			RetryFailed:  &cfg.Build.RetryFailed,
		},
		Tests:   cfg.Tests,
		Project: cfg.Project,
	}
}

// mergeFileConfig applies the values present in fc onto cfg.
func mergeFileConfig(cfg *Config, fc fileConfig) {
	if fc.Watch.RootDir != "" {
		cfg.Watch.RootDir = fc.Watch.RootDir
	}
	if fc.Watch.Ignored != nil {
		cfg.Watch.Ignored = fc.Watch.Ignored
	}
	if fc.Watch.DefaultDebounceMs != nil {
		cfg.Watch.DefaultDebounce = time.Duration(*fc.Watch.DefaultDebounceMs) * time.Millisecond
	}
	if fc.Watch.Rules != nil {
		cfg.Watch.Rules = make([]RuleConfig, len(fc.Watch.Rules))
		for i, r := range fc.Watch.Rules {
			rc := RuleConfig{Glob: r.Glob, Mode: r.Mode, Debounce: -1}
			if r.DebounceMs != nil {
				rc.Debounce = time.Duration(*r.DebounceMs) * time.Millisecond
			}
			cfg.Watch.Rules[i] = rc
		}
	}

	if fc.Build.MaxArtifacts != nil {
		cfg.Build.MaxArtifacts = *fc.Build.MaxArtifacts
	}
	if fc.Build.RetryFailed != nil {
		cfg.Build.RetryFailed = *fc.Build.RetryFailed
	}

	if fc.Tests.Markers != nil {
		cfg.Tests.Markers = fc.Tests.Markers
	}

	if cfg.Project.Files == nil {
		cfg.Project.Files = make(map[string][]string)
	}
	if cfg.Project.Mappings == nil {
		cfg.Project.Mappings = make(map[string][]string)
	}
	for file, imports := range fc.Project.Files {
		cfg.Project.Files[file] = imports
	}
	cfg.Project.Tests = append(cfg.Project.Tests, fc.Project.Tests...)
	for src, tests := range fc.Project.Mappings {
		cfg.Project.Mappings[src] = append(cfg.Project.Mappings[src], tests...)
	}
}

// Save writes cfg to path as indented JSON.
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(toFileConfig(cfg), "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func millis(d time.Duration) *int64 {
	ms := d.Milliseconds()
	return &ms
}
