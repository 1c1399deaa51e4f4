// Package config provides configuration types and loading for gowxbot.
package config

import "time"

// Config is the root configuration struct.
// Top-level groups: Paths, Actor, Gateway, Webhook, Drain, Archive, Tasks.
type Config struct {
	Paths   PathsConfig   `json:"paths"`
	Actor   ActorConfig   `json:"actor"`
	Gateway GatewayConfig `json:"gateway"`
	Webhook WebhookConfig `json:"webhook"`
	Drain   DrainConfig   `json:"drain"`
	Archive ArchiveConfig `json:"archive"`
	Tasks   TasksConfig   `json:"tasks"`
}

// ---------------------------------------------------------------------------
// Paths – filesystem locations
// ---------------------------------------------------------------------------

// PathsConfig groups all filesystem path settings.
type PathsConfig struct {
	DataDir string `json:"dataDir" envconfig:"DATA_DIR"`
	QueueDB string `json:"queueDb" envconfig:"QUEUE_DB"`
	StoreDB string `json:"storeDb" envconfig:"STORE_DB"`
}

// ---------------------------------------------------------------------------
// Actor – the bot's platform identity
// ---------------------------------------------------------------------------

// ActorConfig identifies the bot on the platform.
type ActorConfig struct {
	WxID string `json:"wxid" envconfig:"BOT_WXID"`
}

// ---------------------------------------------------------------------------
// Gateway – upstream platform HTTP gateway
// ---------------------------------------------------------------------------

// GatewayConfig configures the upstream message gateway.
type GatewayConfig struct {
	BaseURL string `json:"baseUrl" envconfig:"GATEWAY_BASE_URL"`
	Token   string `json:"token" envconfig:"GATEWAY_TOKEN"`
}

// ---------------------------------------------------------------------------
// Webhook – inbound HTTP server
// ---------------------------------------------------------------------------

// WebhookConfig configures the inbound event endpoint.
type WebhookConfig struct {
	Host string `json:"host" envconfig:"WEBHOOK_HOST"`
	Port int    `json:"port" envconfig:"WEBHOOK_PORT"`
}

// ---------------------------------------------------------------------------
// Drain – outbound queue delivery loop
// ---------------------------------------------------------------------------

// DrainConfig tunes the delivery loop. Intervals are seconds; the
// loop sleeps a random duration between min and max per tick.
type DrainConfig struct {
	MinIntervalSeconds int `json:"minIntervalSeconds" envconfig:"DRAIN_MIN_INTERVAL"`
	MaxIntervalSeconds int `json:"maxIntervalSeconds" envconfig:"DRAIN_MAX_INTERVAL"`
	TimeoutSeconds     int `json:"timeoutSeconds" envconfig:"DRAIN_TIMEOUT"`
}

// MinInterval returns the configured lower bound as a duration.
func (d DrainConfig) MinInterval() time.Duration {
	return time.Duration(d.MinIntervalSeconds) * time.Second
}

// MaxInterval returns the configured upper bound as a duration.
func (d DrainConfig) MaxInterval() time.Duration {
	return time.Duration(d.MaxIntervalSeconds) * time.Second
}

// Timeout returns the per-delivery HTTP timeout.
func (d DrainConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// ---------------------------------------------------------------------------
// Archive – optional Kafka inbound archive
// ---------------------------------------------------------------------------

// ArchiveConfig configures the inbound-message archive. Empty brokers
// disable archiving.
type ArchiveConfig struct {
	Brokers string `json:"brokers" envconfig:"ARCHIVE_BROKERS"`
	Topic   string `json:"topic" envconfig:"ARCHIVE_TOPIC"`
}

// ---------------------------------------------------------------------------
// Tasks – scheduled task firing
// ---------------------------------------------------------------------------

// TasksConfig configures the cron scheduler.
type TasksConfig struct {
	Enabled     bool `json:"enabled" envconfig:"TASKS_ENABLED"`
	TickSeconds int  `json:"tickSeconds" envconfig:"TASKS_TICK"`
}

// Tick returns the scheduler polling interval.
func (t TasksConfig) Tick() time.Duration {
	return time.Duration(t.TickSeconds) * time.Second
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir: "~/.gowxbot",
			QueueDB: "~/.gowxbot/queue.db",
			StoreDB: "~/.gowxbot/bot.db",
		},
		Gateway: GatewayConfig{
			BaseURL: "http://localhost:8000/",
		},
		Webhook: WebhookConfig{
			Host: "0.0.0.0",
			Port: 14600,
		},
		Drain: DrainConfig{
			MinIntervalSeconds: 5,
			MaxIntervalSeconds: 15,
			TimeoutSeconds:     30,
		},
		Archive: ArchiveConfig{
			Topic: "wxbot.inbound",
		},
		Tasks: TasksConfig{
			Enabled:     true,
			TickSeconds: 60,
		},
	}
}
