package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultClobURL    = "https://clob.polymarket.com"
	DefaultGammaURL   = "https://gamma-api.polymarket.com"
	DefaultAPITimeout = 30 * time.Second

	DefaultWSURL             = "wss://ws-subscriptions-clob.polymarket.com/ws/market"
	DefaultPingInterval      = 10 * time.Second
	DefaultReconnectBaseWait = 1 * time.Second
	DefaultReconnectMaxWait  = 60 * time.Second
	DefaultEventBuffer       = 256
	DefaultStopTimeout       = 2 * time.Second

	DefaultDBPort        = 5432
	DefaultDBSSLMode     = "prefer"
	DefaultMaxConns      = 10
	DefaultMinConns      = 2
	DefaultBatchSize     = 500
	DefaultFlushInterval = 1 * time.Second
	DefaultBufferSize    = 5000

	DefaultRedisAddr     = "localhost:6379"
	DefaultKeyPrefix     = "orderbook:"
	DefaultUpdateChannel = "orderbook:updates"

	DefaultDataDir         = "data"
	DefaultGammaPageLimit  = 100
	DefaultSnapshotWorkers = 8

	DefaultRefreshInterval = 6 * time.Hour
)

func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = EnvDevelopment
	}

	// API defaults
	if c.API.ClobURL == "" {
		c.API.ClobURL = DefaultClobURL
	}
	if c.API.GammaURL == "" {
		c.API.GammaURL = DefaultGammaURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}

	// Stream defaults
	if c.Stream.WSURL == "" {
		c.Stream.WSURL = DefaultWSURL
	}
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = DefaultPingInterval
	}
	if c.Stream.ReconnectBaseWait == 0 {
		c.Stream.ReconnectBaseWait = DefaultReconnectBaseWait
	}
	if c.Stream.ReconnectMaxWait == 0 {
		c.Stream.ReconnectMaxWait = DefaultReconnectMaxWait
	}
	if c.Stream.EventBuffer == 0 {
		c.Stream.EventBuffer = DefaultEventBuffer
	}
	if c.Stream.StopTimeout == 0 {
		c.Stream.StopTimeout = DefaultStopTimeout
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}
	if c.Database.BatchSize == 0 {
		c.Database.BatchSize = DefaultBatchSize
	}
	if c.Database.FlushInterval == 0 {
		c.Database.FlushInterval = DefaultFlushInterval
	}
	if c.Database.BufferSize == 0 {
		c.Database.BufferSize = DefaultBufferSize
	}

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = DefaultRedisAddr
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = DefaultKeyPrefix
	}
	if c.Redis.UpdateChannel == "" {
		c.Redis.UpdateChannel = DefaultUpdateChannel
	}

	// Pipeline defaults
	if c.Pipeline.DataDir == "" {
		c.Pipeline.DataDir = DefaultDataDir
	}
	if c.Pipeline.GammaPageLimit == 0 {
		c.Pipeline.GammaPageLimit = DefaultGammaPageLimit
	}
	if c.Pipeline.SnapshotWorkers == 0 {
		c.Pipeline.SnapshotWorkers = DefaultSnapshotWorkers
	}

	// Registry defaults
	if c.Registry.RefreshInterval == 0 {
		c.Registry.RefreshInterval = DefaultRefreshInterval
	}
}
