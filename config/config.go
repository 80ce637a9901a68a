// Package config loads agent profiles from YAML and API keys from dotenv
// files.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/martinemde/basin/agentloop"
)

// ModelConfig selects the model-client provider and model.
type ModelConfig struct {
	Provider string `yaml:"provider"`
	Name     string `yaml:"name"`
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv          string  `yaml:"api_key_env"`
	MinIntervalSeconds float64 `yaml:"min_interval_seconds"`
}

// Profile is the full agent profile.
type Profile struct {
	AgentName string                    `yaml:"agent_name"`
	Strategy  agentloop.StrategyProfile `yaml:"strategy"`
	Model     ModelConfig               `yaml:"model"`
	MemoryDir string                    `yaml:"memory_dir"`
}

// Default returns the stock profile used when no file is given.
func Default() Profile {
	return Profile{
		AgentName: "basin",
		Strategy:  agentloop.DefaultStrategyProfile(),
		Model: ModelConfig{
			Provider:           "gemini",
			Name:               "gemini-2.0-flash",
			APIKeyEnv:          "GEMINI_API_KEY",
			MinIntervalSeconds: 5,
		},
		MemoryDir: "memory",
	}
}

// Load reads a profile file, filling unset fields from Default.
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	profile := Default()
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if profile.Strategy.MaxSteps <= 0 {
		profile.Strategy.MaxSteps = agentloop.DefaultStrategyProfile().MaxSteps
	}
	if profile.Strategy.MaxLifelinesPerStep < 0 {
		profile.Strategy.MaxLifelinesPerStep = agentloop.DefaultStrategyProfile().MaxLifelinesPerStep
	}
	return profile, nil
}

// LoadDotenv loads .env files into the process environment. Missing files
// are not an error; existing variables are never overwritten.
func LoadDotenv(paths ...string) {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
		}
	}
}

// APIKey resolves the configured API key from the environment.
func (m ModelConfig) APIKey() string {
	if m.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(m.APIKeyEnv)
}
