package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables that override file values.
const (
	EnvRoot       = "FORGEWATCH_ROOT"
	EnvDebounceMs = "FORGEWATCH_DEBOUNCE_MS"
	EnvIgnore     = "FORGEWATCH_IGNORE" // comma-separated, appended
)

// Load reads the configuration at path on top of Default, applies a .env
// file from the working directory if present, then environment overrides,
// and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := decode(cfg, data); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(cfg *Config, data []byte) error {
	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return err
	}
	mergeFileConfig(cfg, fc)
	return nil
}

// ApplyEnv applies FORGEWATCH_* overrides from the process environment.
func ApplyEnv(cfg *Config) error {
	if root := strings.TrimSpace(os.Getenv(EnvRoot)); root != "" {
		cfg.Watch.RootDir = root
	}
	if raw := strings.TrimSpace(os.Getenv(EnvDebounceMs)); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvDebounceMs, err)
		}
		cfg.Watch.DefaultDebounce = time.Duration(ms) * time.Millisecond
	}
	if raw := os.Getenv(EnvIgnore); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.Watch.Ignored = append(cfg.Watch.Ignored, s)
			}
		}
	}
	return nil
}
