// Package config loads process-level settings from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds every process-level setting the server needs to boot.
// Per-agent and per-template settings live in agent_config/memory_data
// (see pkg/jsontree) and are never modeled as Go struct fields, since their
// shape is agent-defined.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"postgres://localhost:5432/agentserver"`
	JWTSecret  string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`

	AnthropicAPIKey     string `env:"ANTHROPIC_API_KEY"`
	AnthropicOAuthToken string `env:"ANTHROPIC_OAUTH_TOKEN"`
	OpenAIAPIKey        string `env:"OPENAI_API_KEY"`

	WorkspaceDir string `env:"WORKSPACE_DIR" envDefault:"./workspace"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`

	SessionAnalysisQueueSize int `env:"SESSION_ANALYSIS_QUEUE_SIZE" envDefault:"256"`

	// AllowedWSOrigins gates the WebSocket bridge's CheckOrigin. "*" allows
	// any origin (development only); empty defaults to localhost-only.
	AllowedWSOrigins []string `env:"ALLOWED_WS_ORIGINS" envSeparator:","`
}

// Load parses the process environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment config: %w", err)
	}
	return cfg, nil
}
