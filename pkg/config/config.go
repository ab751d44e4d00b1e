// Package config loads and validates the engine's runtime configuration,
// layering koanf providers: struct defaults first, then environment
// overrides.
package config

import "time"

// ServerConfig configures the HTTP surface (§6).
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	CORSEnabled bool          `koanf:"cors_enabled"`
	Timeout     time.Duration `koanf:"timeout"`
}

// DatabaseConfig configures the Postgres connection for engine/infra/postgres.
type DatabaseConfig struct {
	Host     string `koanf:"host"`
	Port     string `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	DBName   string `koanf:"dbname"`
	SSLMode  string `koanf:"sslmode"`
}

// RedisConfig configures the event dedup cache backend.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// QueueConfig configures the event queue consumer (C3/C6 dispatcher).
type QueueConfig struct {
	PollInterval time.Duration `koanf:"poll_interval"`
}

// ExecutorConfig configures the action executor (C2).
type ExecutorConfig struct {
	ActionTimeout time.Duration `koanf:"action_timeout"`
}

// ToolRegistryConfig points the executor and poller's Registry client at
// the out-of-scope tool-registry service (§6) and bounds how hard a
// single automation can hammer it.
type ToolRegistryConfig struct {
	BaseURL    string        `koanf:"base_url"`
	RateLimit  int           `koanf:"rate_limit"`
	RatePeriod time.Duration `koanf:"rate_period"`
}

// WebhookConfig supplies per-service signature-verification secrets
// (§4.4 step 2). Each service's strategy and header name are fixed by
// how that provider actually signs its deliveries, so only the secret
// material varies by deployment.
type WebhookConfig struct {
	SlackSigningSecret string `koanf:"slack_signing_secret"`
	NotionSecret       string `koanf:"notion_secret"`
	FitbitSecret       string `koanf:"fitbit_secret"`
	// FitbitVerifyCode answers Fitbit's `GET ?verify=` subscriber
	// handshake; distinct from FitbitSecret, which signs deliveries.
	FitbitVerifyCode   string `koanf:"fitbit_verify_code"`
	TodoistSecret      string `koanf:"todoist_secret"`
	GooglePublicKeyPEM string `koanf:"google_public_key_pem"`
}

// PollingConfig configures the poller (C5).
type PollingConfig struct {
	BatchConcurrency       int           `koanf:"batch_concurrency"`
	InterBatchDelay        time.Duration `koanf:"inter_batch_delay"`
	DefaultIntervalMinutes int           `koanf:"default_interval_minutes"`
	// ServiceIntervalMinutes holds §6's "Default polling intervals" table.
	// Nothing reads it; the poller keeps its own copy of these intervals.
	ServiceIntervalMinutes map[string]int `koanf:"-"`
}

// SchedulerConfig configures the scheduler (C6).
type SchedulerConfig struct {
	BatchSize          int           `koanf:"batch_size"`
	InterBatchDelay    time.Duration `koanf:"inter_batch_delay"`
	DuenessSafetyBuffer time.Duration `koanf:"dueness_safety_buffer"`
	TimeOfDayWindow    time.Duration `koanf:"time_of_day_window"`
}

// RuntimeConfig configures ambient process behavior.
type RuntimeConfig struct {
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`
}

// Config is the engine's complete runtime configuration.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Database     DatabaseConfig     `koanf:"database"`
	Redis        RedisConfig        `koanf:"redis"`
	Queue        QueueConfig        `koanf:"queue"`
	Executor     ExecutorConfig     `koanf:"executor"`
	ToolRegistry ToolRegistryConfig `koanf:"tool_registry"`
	Webhook      WebhookConfig      `koanf:"webhook"`
	Polling      PollingConfig      `koanf:"polling"`
	Scheduler    SchedulerConfig    `koanf:"scheduler"`
	Runtime      RuntimeConfig      `koanf:"runtime"`
}

// DefaultServiceIntervalMinutes is §6's "Default polling intervals" table.
func DefaultServiceIntervalMinutes() map[string]int {
	return map[string]int{
		"oura":             60,
		"fitbit":           15,
		"todoist":          5,
		"google_calendar":  10,
		"outlook_calendar": 10,
		"excel":            10,
		"word":             15,
		"notion":           10,
	}
}

// DefaultPollIntervalMinutes is the fallback for services absent from
// DefaultServiceIntervalMinutes ("all others 15").
const DefaultPollIntervalMinutes = 15

// Default returns the zero-config defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			CORSEnabled: true,
			Timeout:     30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    "5432",
			User:    "postgres",
			DBName:  "automations",
			SSLMode: "disable",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Queue: QueueConfig{
			PollInterval: 5 * time.Minute,
		},
		Executor: ExecutorConfig{
			ActionTimeout: 30 * time.Second,
		},
		ToolRegistry: ToolRegistryConfig{
			BaseURL:    "http://localhost:9090",
			RateLimit:  30,
			RatePeriod: time.Minute,
		},
		Webhook: WebhookConfig{
			SlackSigningSecret: "env://WEBHOOK_SLACK_SIGNING_SECRET",
			NotionSecret:       "env://WEBHOOK_NOTION_SECRET",
			FitbitSecret:       "env://WEBHOOK_FITBIT_SECRET",
			FitbitVerifyCode:   "env://WEBHOOK_FITBIT_VERIFY_CODE",
			TodoistSecret:      "env://WEBHOOK_TODOIST_SECRET",
			GooglePublicKeyPEM: "env://WEBHOOK_GOOGLE_PUBLIC_KEY_PEM",
		},
		Polling: PollingConfig{
			BatchConcurrency:       5,
			InterBatchDelay:        time.Second,
			DefaultIntervalMinutes: DefaultPollIntervalMinutes,
			ServiceIntervalMinutes: DefaultServiceIntervalMinutes(),
		},
		Scheduler: SchedulerConfig{
			BatchSize:           5,
			InterBatchDelay:     time.Second,
			DuenessSafetyBuffer: 10 * time.Minute,
			TimeOfDayWindow:     5 * time.Minute,
		},
		Runtime: RuntimeConfig{
			Environment: "development",
			LogLevel:    "info",
		},
	}
}
