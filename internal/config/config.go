// Package config provides the configuration schema and loader for the
// Voxdesk voice assistant.
package config

import "log/slog"

// LogLevel controls log verbosity for the Voxdesk process.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog maps l to the corresponding [slog.Level]. Unknown or empty levels map
// to [slog.LevelInfo].
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure for Voxdesk.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server ServerConfig `yaml:"server"`
	Agent  AgentConfig  `yaml:"agent"`
	Audio  AudioConfig  `yaml:"audio"`

	// Apps lists the application names the assistant may open on this host.
	Apps []string `yaml:"apps"`
}

// ServerConfig holds logging and telemetry settings for the Voxdesk process.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the TCP address the Prometheus /metrics endpoint listens
	// on (e.g., ":9090"). Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
}

// AgentConfig configures the remote conversational agent connection.
type AgentConfig struct {
	// APIKey is the authentication key for the agent API.
	APIKey string `yaml:"api_key"`

	// Model selects a specific live model (e.g., "gemini-2.0-flash-live-001").
	// Leave empty to use the built-in default.
	Model string `yaml:"model"`

	// Voice is the prebuilt voice used for agent speech (e.g., "Puck").
	Voice string `yaml:"voice"`

	// BaseURL overrides the agent's default API endpoint.
	// Leave empty to use the built-in default.
	BaseURL string `yaml:"base_url"`

	// Instructions is a free-text persona description injected into the
	// agent's system prompt.
	Instructions string `yaml:"instructions"`
}

// AudioConfig holds microphone capture settings.
type AudioConfig struct {
	// FrameSize is the number of samples per capture frame sent upstream.
	// Zero selects the capture package default.
	FrameSize int `yaml:"frame_size"`
}
