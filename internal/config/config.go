// Package config handles Dossier configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/dossier/config.yaml, /etc/dossier/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "dossier", "config.yaml"))
	}

	paths = append(paths, "/etc/dossier/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Dossier configuration.
type Config struct {
	Listen   ListenConfig `yaml:"listen"`
	LLM      LLMConfig    `yaml:"llm"`
	Tavily   TavilyConfig `yaml:"tavily"`
	Agent    AgentConfig  `yaml:"agent"`
	DataDir  string       `yaml:"data_dir"`
	LogLevel string       `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// LLMConfig defines the OpenAI-compatible chat completion endpoint.
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

// TavilyConfig defines the web search and extraction provider settings.
type TavilyConfig struct {
	APIKey     string `yaml:"api_key"`
	MaxResults int    `yaml:"max_results"` // Search result cap (default 5)
	Topic      string `yaml:"topic"`       // Topic filter (default "general")
}

// Configured reports whether a Tavily API key is set.
func (c TavilyConfig) Configured() bool {
	return c.APIKey != ""
}

// AgentConfig bounds the agent loop.
type AgentConfig struct {
	// ThrottleSeconds is the fixed pause before every model invocation
	// past the first turn of a thread. Blunt rate-limit control, not
	// adaptive backoff.
	ThrottleSeconds int `yaml:"throttle_seconds"`
	// MaxTurns caps model invocations per request. Zero means the
	// default of 10.
	MaxTurns int `yaml:"max_turns"`
}

// Throttle returns the configured throttle as a duration.
func (c AgentConfig) Throttle() time.Duration {
	return time.Duration(c.ThrottleSeconds) * time.Second
}

// Load reads configuration from a YAML file. Environment variable
// references (${VAR}) in the file are expanded before parsing so API
// keys can live outside the config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: 8080},
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0,
		},
		Tavily: TavilyConfig{
			MaxResults: 5,
			Topic:      "general",
		},
		Agent: AgentConfig{
			ThrottleSeconds: 3,
			MaxTurns:        10,
		},
	}
}
