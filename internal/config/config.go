package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the worker process configuration. Precedence: environment
// variables override the optional YAML overlay (ETL_CONFIG_FILE), which
// overrides the code defaults. Seconds-valued knobs are floats to allow
// sub-second backoffs.
type Config struct {
	APIURL string `env:"API_URL" yaml:"api_url"`

	DBHost     string `env:"ANALYTICS_DB_HOST" yaml:"db_host"`
	DBPort     int    `env:"ANALYTICS_DB_PORT" yaml:"db_port"`
	DBName     string `env:"ANALYTICS_DB_NAME" yaml:"db_name"`
	DBUser     string `env:"ANALYTICS_DB_USER" yaml:"db_user"`
	DBPassword string `env:"ANALYTICS_DB_PASSWORD" yaml:"db_password"`

	MaxPageSize          int     `env:"MAX_PAGE_SIZE" yaml:"max_page_size"`
	HTTPConcurrency      int     `env:"ETL_MAX_HTTP_CONCURRENCY" yaml:"max_http_concurrency"`
	MaxChatMessageChats  int     `env:"ETL_MAX_CHAT_MESSAGE_CHATS" yaml:"max_chat_message_chats"`
	RequestTimeoutSecs   float64 `env:"ETL_REQUEST_TIMEOUT" yaml:"request_timeout"`
	HTTPRetryTotal       int     `env:"ETL_HTTP_RETRY_TOTAL" yaml:"http_retry_total"`
	HTTPRetryBackoffSecs float64 `env:"ETL_HTTP_RETRY_BACKOFF" yaml:"http_retry_backoff"`
	RequestsPerSecond    float64 `env:"ETL_REQUESTS_PER_SECOND" yaml:"requests_per_second"`
	HeartbeatEveryPages  int     `env:"ETL_HEARTBEAT_EVERY_PAGES" yaml:"heartbeat_every_pages"`
	HeartbeatEveryRows   int64   `env:"ETL_HEARTBEAT_EVERY_ROWS" yaml:"heartbeat_every_rows"`
	ActivityWorkers      int     `env:"ETL_ACTIVITY_WORKERS" yaml:"activity_workers"`

	TemporalAddress string `env:"TEMPORAL_ADDRESS" yaml:"temporal_address"`
	TaskQueue       string `env:"ETL_TASK_QUEUE" yaml:"task_queue"`
	SpillDir        string `env:"ETL_SPILL_DIR" yaml:"spill_dir"`
	MetricsAddr     string `env:"ETL_METRICS_ADDR" yaml:"metrics_addr"`

	LogLevel  string `env:"LOG_LEVEL" yaml:"log_level"`
	LogFormat string `env:"LOG_FORMAT" yaml:"log_format"`
}

func defaultConfig() Config {
	return Config{
		APIURL:               "http://localhost:8000",
		DBHost:               "localhost",
		DBPort:               5432,
		DBName:               "analytics",
		DBUser:               "analytics",
		DBPassword:           "analytics",
		MaxPageSize:          250,
		HTTPConcurrency:      8,
		MaxChatMessageChats:  500,
		RequestTimeoutSecs:   30,
		HTTPRetryTotal:       5,
		HTTPRetryBackoffSecs: 0.5,
		HeartbeatEveryPages:  5,
		HeartbeatEveryRows:   1000,
		ActivityWorkers:      8,
		TemporalAddress:      "localhost:7233",
		TaskQueue:            "etl-task-queue",
		SpillDir:             os.TempDir(),
		MetricsAddr:          ":9090",
		LogLevel:             "info",
		LogFormat:            "json",
	}
}

// Load builds the process config: defaults, then the YAML overlay named by
// ETL_CONFIG_FILE if set, then environment variables. A .env file in the
// working directory is read first for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path := os.Getenv("ETL_CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("API_URL must be set")
	}
	if c.MaxPageSize < 1 || c.MaxPageSize > 250 {
		return fmt.Errorf("MAX_PAGE_SIZE must be in 1..250, got %d", c.MaxPageSize)
	}
	if c.HTTPConcurrency < 1 {
		return fmt.Errorf("ETL_MAX_HTTP_CONCURRENCY must be positive, got %d", c.HTTPConcurrency)
	}
	if c.HeartbeatEveryPages < 1 || c.HeartbeatEveryRows < 1 {
		return fmt.Errorf("heartbeat intervals must be positive")
	}
	return nil
}

// DatabaseURL renders the analytics DSN for pgx.
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + strconv.Itoa(c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs * float64(time.Second))
}

func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.HTTPRetryBackoffSecs * float64(time.Second))
}
