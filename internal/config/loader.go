package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Initialize loads, validates, and returns ready-to-use configuration. This
// is the entry point cmd/yourmoment-core calls before wiring anything else.
//
// Steps: load YAML (optional) → expand env references → merge onto
// environment-driven pipeline/connection settings → validate.
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("loading configuration")

	yamlCfg, err := loadYAML(configDir)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		configDir:    configDir,
		Pipeline:     loadPipelineConfig(),
		Builtin:      GetBuiltinConfig(),
		Slack:        resolveSlackConfig(yamlCfg),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		BrokerURL:    getEnv("BROKER_URL", "redis://localhost:6379/0"),
		MasterKeyHex: getEnv("YOURMOMENT_MASTER_KEY", ""),
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
		GinMode:      getEnv("GIN_MODE", "release"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}

	if err := NewValidator(cfg).ValidateAll(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("configuration loaded",
		"trigger_interval", cfg.Pipeline.TriggerInterval,
		"timeout_interval", cfg.Pipeline.TimeoutInterval,
		"slack_enabled", cfg.Slack.Enabled)

	return cfg, nil
}

// loadYAML reads deploy/config/yourmoment.yaml if present. A missing file is
// not an error — every field it could set has an environment-driven default.
func loadYAML(configDir string) (*YAMLConfig, error) {
	path := filepath.Join(configDir, "yourmoment.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &YAMLConfig{}, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigNotFound, path, err)
	}

	data = ExpandEnv(data)

	var cfg YAMLConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidYAML, path, err)
	}
	return &cfg, nil
}

func resolveSlackConfig(yamlCfg *YAMLConfig) *SlackConfig {
	cfg := &SlackConfig{
		Enabled:  false,
		TokenEnv: "SLACK_BOT_TOKEN",
	}

	if yamlCfg == nil || yamlCfg.Slack == nil {
		return cfg
	}

	s := yamlCfg.Slack
	if s.Enabled != nil {
		cfg.Enabled = *s.Enabled
	}
	if s.TokenEnv != "" {
		cfg.TokenEnv = s.TokenEnv
	}
	if s.Channel != "" {
		cfg.Channel = s.Channel
	}
	return cfg
}
