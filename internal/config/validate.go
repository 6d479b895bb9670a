package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
// Call after applyDefaults; zero values for defaulted fields fail here.
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvDevelopment, EnvTest, EnvProduction:
	default:
		return fmt.Errorf("environment must be one of %s, %s, %s; got %q",
			EnvDevelopment, EnvTest, EnvProduction, c.Environment)
	}

	if c.API.ClobURL == "" {
		return errors.New("api.clob_url is required")
	}
	if c.API.GammaURL == "" {
		return errors.New("api.gamma_url is required")
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}

	if c.Stream.WSURL == "" {
		return errors.New("stream.ws_url is required")
	}
	if c.Stream.PingInterval <= 0 {
		return errors.New("stream.ping_interval must be positive")
	}
	if c.Stream.ReconnectBaseWait <= 0 {
		return errors.New("stream.reconnect_base_wait must be positive")
	}
	if c.Stream.ReconnectMaxWait < c.Stream.ReconnectBaseWait {
		return fmt.Errorf("stream.reconnect_max_wait (%s) cannot be below reconnect_base_wait (%s)",
			c.Stream.ReconnectMaxWait, c.Stream.ReconnectBaseWait)
	}
	if c.Stream.EventBuffer < 1 {
		return errors.New("stream.event_buffer must be >= 1")
	}
	if c.Stream.StopTimeout <= 0 {
		return errors.New("stream.stop_timeout must be positive")
	}

	if c.Database.Enabled {
		if err := c.Database.validate(); err != nil {
			return err
		}
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis.addr is required when redis is enabled")
	}

	if c.Pipeline.DataDir == "" {
		return errors.New("pipeline.data_dir is required")
	}
	if c.Pipeline.GammaPageLimit < 1 {
		return errors.New("pipeline.gamma_page_limit must be >= 1")
	}
	if c.Pipeline.SnapshotWorkers < 1 {
		return errors.New("pipeline.snapshot_workers must be >= 1")
	}

	if c.Registry.RefreshInterval <= 0 {
		return errors.New("registry.refresh_interval must be positive")
	}

	return nil
}

func (db *DatabaseConfig) validate() error {
	if db.Host == "" {
		return errors.New("database.host is required")
	}
	if db.Name == "" {
		return errors.New("database.name is required")
	}
	if db.User == "" {
		return errors.New("database.user is required")
	}
	if db.Password == "" {
		return errors.New("database.password is required")
	}
	if db.Port < 1 || db.Port > 65535 {
		return fmt.Errorf("database.port must be between 1 and 65535, got %d", db.Port)
	}
	if db.MaxConns < 1 {
		return errors.New("database.max_conns must be >= 1")
	}
	if db.MinConns < 0 {
		return errors.New("database.min_conns must be >= 0")
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("database.min_conns (%d) cannot exceed max_conns (%d)", db.MinConns, db.MaxConns)
	}
	if db.BatchSize < 1 {
		return errors.New("database.batch_size must be >= 1")
	}
	if db.BufferSize < 1 {
		return errors.New("database.buffer_size must be >= 1")
	}
	return nil
}
