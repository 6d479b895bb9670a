package config

import (
	"time"
)

// Recognized environment names. The environment picks which .env file is
// preloaded and tags log output.
const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

// Config is the root configuration for collector and pipeline processes.
type Config struct {
	Environment string         `yaml:"environment"`
	API         APIConfig      `yaml:"api"`
	Stream      StreamConfig   `yaml:"stream"`
	Database    DatabaseConfig `yaml:"database"`
	Redis       RedisConfig    `yaml:"redis"`
	Pipeline    PipelineConfig `yaml:"pipeline"`
	Registry    RegistryConfig `yaml:"registry"`
	Health      HealthConfig   `yaml:"health"`
}

// APIConfig holds the REST endpoints.
type APIConfig struct {
	ClobURL  string        `yaml:"clob_url"`
	GammaURL string        `yaml:"gamma_url"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
}

// StreamConfig holds push-feed settings.
type StreamConfig struct {
	WSURL             string        `yaml:"ws_url"`
	PingInterval      time.Duration `yaml:"ping_interval"`
	ReconnectBaseWait time.Duration `yaml:"reconnect_base_wait"`
	ReconnectMaxWait  time.Duration `yaml:"reconnect_max_wait"`
	EventBuffer       int           `yaml:"event_buffer"`
	StopTimeout       time.Duration `yaml:"stop_timeout"`
}

// DatabaseConfig holds the PostgreSQL connection and batch writer
// settings. Persistence is optional; when Enabled is false the collector
// runs without a database.
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`

	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// RedisConfig holds the live book publisher settings. Optional.
type RedisConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Addr          string `yaml:"addr"`
	Password      string `yaml:"password"`
	DB            int    `yaml:"db"`
	KeyPrefix     string `yaml:"key_prefix"`
	UpdateChannel string `yaml:"update_channel"`
}

// PipelineConfig holds batch pipeline settings.
type PipelineConfig struct {
	DataDir         string `yaml:"data_dir"`
	GammaPageLimit  int    `yaml:"gamma_page_limit"`
	SnapshotWorkers int    `yaml:"snapshot_workers"`
}

// RegistryConfig holds market registry settings.
type RegistryConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// HealthConfig holds the health/status HTTP listener settings. An empty
// addr disables the listener.
type HealthConfig struct {
	Addr string `yaml:"addr"`
}
