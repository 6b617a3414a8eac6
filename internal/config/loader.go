package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// KnownVoices lists the prebuilt agent voices. Used by [Validate] to warn
// about unrecognised voice names.
var KnownVoices = []string{"Puck", "Charon", "Kore", "Fenrir", "Aoede"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Agent
	if cfg.Agent.APIKey == "" {
		errs = append(errs, errors.New("agent.api_key is required"))
	}
	if cfg.Agent.Voice != "" && !slices.Contains(KnownVoices, cfg.Agent.Voice) {
		slog.Warn("unknown agent voice — may be a typo or a newly released voice",
			"voice", cfg.Agent.Voice,
			"known", KnownVoices,
		)
	}

	// Audio
	if cfg.Audio.FrameSize < 0 {
		errs = append(errs, fmt.Errorf("audio.frame_size %d must not be negative", cfg.Audio.FrameSize))
	}
	if cfg.Audio.FrameSize > 0 && cfg.Audio.FrameSize < 160 {
		slog.Warn("audio.frame_size is very small; expect high per-frame overhead on the agent connection",
			"frame_size", cfg.Audio.FrameSize,
		)
	}

	// Apps: duplicate detection is case-insensitive because app resolution is.
	appsSeen := make(map[string]int, len(cfg.Apps))
	for i, app := range cfg.Apps {
		if strings.TrimSpace(app) == "" {
			errs = append(errs, fmt.Errorf("apps[%d] is empty", i))
			continue
		}
		key := strings.ToLower(app)
		if prev, ok := appsSeen[key]; ok {
			errs = append(errs, fmt.Errorf("apps[%d] %q is a duplicate of apps[%d]", i, app, prev))
		}
		appsSeen[key] = i
	}
	if len(cfg.Apps) == 0 {
		slog.Warn("no apps configured; openApp requests will always fail")
	}

	return errors.Join(errs...)
}
