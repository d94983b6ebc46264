// Package config binds the enumerated configuration surface of the
// ingestion core to environment variables using envconfig, the same
// approach the wider blockwatch stack uses for its process configuration.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// NodeEndpoint describes one upstream Tron-family RPC endpoint in the
// Node Client's priority-ordered pool.
type NodeEndpoint struct {
	URL        string        `envconfig:"URL" required:"true"`
	Priority   int           `envconfig:"PRIORITY" default:"0"`
	Timeout    time.Duration `envconfig:"TIMEOUT" default:"30s"`
	Credential string        `envconfig:"CREDENTIAL"`
}

// Scan holds the Scanner's tuning knobs (spec §6, scan.*).
type Scan struct {
	StartHeight      int64         `envconfig:"START_HEIGHT" default:"0"`
	Confirmations    int64         `envconfig:"CONFIRMATIONS" default:"19"`
	BatchSize        int           `envconfig:"BATCH_SIZE" default:"100"`
	MaxBatchSize     int           `envconfig:"MAX_BATCH_SIZE" default:"1000"`
	MaxRewind        int64         `envconfig:"MAX_REWIND" default:"64"`
	PollInterval     time.Duration `envconfig:"POLL_INTERVAL" default:"3s"`
	FetchConcurrency int           `envconfig:"FETCH_CONCURRENCY" default:"16"`
	BackoffBase      time.Duration `envconfig:"BACKOFF_BASE" default:"1s"`
	BackoffCap       time.Duration `envconfig:"BACKOFF_CAP" default:"60s"`
}

// Callback holds the HTTP Callback Dispatcher's tuning knobs (spec §6, callback.*).
type Callback struct {
	WorkersGlobal       int           `envconfig:"WORKERS_GLOBAL" default:"32"`
	WorkersPerSub       int           `envconfig:"WORKERS_PER_SUBSCRIPTION" default:"4"`
	Timeout             time.Duration `envconfig:"TIMEOUT" default:"30s"`
	MaxAttempts         int           `envconfig:"MAX_ATTEMPTS" default:"8"`
	BaseDelay           time.Duration `envconfig:"BASE_DELAY" default:"2s"`
	CapDelay            time.Duration `envconfig:"CAP_DELAY" default:"5m"`
	AutoDisableOn404410 bool          `envconfig:"AUTO_DISABLE_ON_404_410" default:"true"`
	ShutdownGrace       time.Duration `envconfig:"SHUTDOWN_GRACE" default:"30s"`
	RefreshInterval     time.Duration `envconfig:"REFRESH_INTERVAL" default:"30s"`
}

// Stream holds the Stream Session Manager's tuning knobs (spec §6, stream.*).
type Stream struct {
	HeartbeatInterval time.Duration `envconfig:"HEARTBEAT_INTERVAL" default:"30s"`
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"90s"`
	AuthGrace         time.Duration `envconfig:"AUTH_GRACE" default:"5s"`
	MaxSubsPerSession int           `envconfig:"MAX_SUBS_PER_SESSION" default:"32"`
	OutboundBuffer    int           `envconfig:"OUTBOUND_BUFFER" default:"256"`
}

// Cache holds the read-side accelerator's tuning knobs (spec §6, cache.*).
type Cache struct {
	Enabled          bool          `envconfig:"ENABLED" default:"true"`
	MultiTTL         time.Duration `envconfig:"MULTI_TTL" default:"60s"`
	TxTTL            time.Duration `envconfig:"TX_TTL" default:"5m"`
	AddressStatsTTL  time.Duration `envconfig:"ADDRESS_STATS_TTL" default:"60s"`
	RedisAddr        string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisUsername    string        `envconfig:"REDIS_USERNAME"`
	RedisPassword    string        `envconfig:"REDIS_PASSWORD"`
	RedisDB          int           `envconfig:"REDIS_DB" default:"0"`
}

// EventBus holds the in-process fan-out queue sizes (spec §4.5).
type EventBus struct {
	CallbackQueueSize int `envconfig:"CALLBACK_QUEUE_SIZE" default:"10000"`
	StreamQueueSize   int `envconfig:"STREAM_QUEUE_SIZE" default:"10000"`
}

// Store holds the durable relational store's connection settings.
type Store struct {
	DSN         string `envconfig:"DSN" required:"true"`
	MaxOpenConn int    `envconfig:"MAX_OPEN_CONN" default:"16"`
	MaxIdleConn int    `envconfig:"MAX_IDLE_CONN" default:"4"`
}

// API holds the exposed HTTP/websocket surface's listen address.
type API struct {
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8080"`
}

// Metrics holds the Prometheus metrics endpoint's listen address.
type Metrics struct {
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":9090"`
}

// Config is the root of the enumerated configuration surface from spec.md §6.
// It is populated once at startup via Load and never mutated afterward.
type Config struct {
	Nodes       []NodeEndpoint
	Scan        Scan     `envconfig:"SCAN"`
	Callback    Callback `envconfig:"CALLBACK"`
	Stream      Stream   `envconfig:"STREAM"`
	Cache       Cache    `envconfig:"CACHE"`
	EventBus    EventBus `envconfig:"EVENTBUS"`
	Store       Store    `envconfig:"STORE"`
	API         API      `envconfig:"API"`
	Metrics     Metrics  `envconfig:"METRICS"`
	LogLevel    string   `envconfig:"LOG_LEVEL" default:"info"`
	ServiceName string   `envconfig:"SERVICE_NAME" default:"blockwatch-core"`
	Network     string   `envconfig:"NETWORK" default:"tron-mainnet"`
}

// Load reads the process environment (prefixed with "BLOCKWATCH_") into a
// Config, applying defaults for every field that has one. Nodes (an
// unprefixed slice) must be supplied programmatically as the nodes argument since
// envconfig cannot bind a slice-of-struct directly from flat env vars.
func Load(nodes []NodeEndpoint) (Config, error) {
	var cfg Config
	if err := envconfig.Process("blockwatch", &cfg); err != nil {
		return Config{}, fmt.Errorf("loading configuration: %w", err)
	}

	cfg.Nodes = nodes
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// validate enforces the invariants the rest of the core assumes about
// configuration values (spec §6 defaults/caps).
func (c Config) validate() error {
	if len(c.Nodes) == 0 {
		return fmt.Errorf("at least one node endpoint must be configured")
	}
	if c.Scan.BatchSize <= 0 || c.Scan.BatchSize > c.Scan.MaxBatchSize {
		return fmt.Errorf("scan.batch_size must be in (0, %d]", c.Scan.MaxBatchSize)
	}
	if c.Scan.Confirmations < 0 {
		return fmt.Errorf("scan.confirmations must be >= 0")
	}
	return nil
}
