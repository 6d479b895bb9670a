package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads a YAML config file, preloads the matching .env file, and
// expands ${VAR} environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// The environment field decides which .env file to preload, and the
	// preload has to happen before ${VAR} expansion, so it is sniffed
	// from the raw yaml first.
	env := sniffEnvironment(data)
	loadEnvFile(filepath.Dir(path), env)

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	if cfg.Environment == "" {
		cfg.Environment = env
	}
	return &cfg, nil
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func sniffEnvironment(data []byte) string {
	var probe struct {
		Environment string `yaml:"environment"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil || probe.Environment == "" {
		return EnvDevelopment
	}
	return probe.Environment
}

// loadEnvFile preloads .env-{env} from dir when it exists. godotenv.Load
// never overrides variables already present in the process environment.
func loadEnvFile(dir, env string) {
	path := filepath.Join(dir, ".env-"+env)
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}
