package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"QuotePulse/pkg/util"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Providers struct {
		PrimaryURL         string        `yaml:"primary_url"`
		SecondaryURL       string        `yaml:"secondary_url"`
		WrapperProxies     []string      `yaml:"wrapper_proxies"`
		PassthroughProxies []string      `yaml:"passthrough_proxies"`
		RequestTimeout     time.Duration `yaml:"request_timeout"`
		MaxAttempts        int           `yaml:"max_attempts"`
		BackoffBase        time.Duration `yaml:"backoff_base"`
		BackoffMax         time.Duration `yaml:"backoff_max"`
		BackoffWindow      time.Duration `yaml:"backoff_window"`
	} `yaml:"providers"`
	Limiter struct {
		MaxConcurrent int `yaml:"max_concurrent"`
	} `yaml:"limiter"`
	Cache struct {
		QuoteRegular    time.Duration `yaml:"quote_regular"`
		QuoteExtended   time.Duration `yaml:"quote_extended"`
		QuoteClosed     time.Duration `yaml:"quote_closed"`
		LastKnownGood   time.Duration `yaml:"last_known_good"`
		HistoryDaily    time.Duration `yaml:"history_daily"`
		HistoryIntraday time.Duration `yaml:"history_intraday"`
	} `yaml:"cache"`
	Refresher struct {
		Enabled  bool          `yaml:"enabled"`
		Interval time.Duration `yaml:"interval"`
		Symbols  []string      `yaml:"symbols"`
	} `yaml:"refresher"`
	Risk struct {
		AccountEquity   float64 `yaml:"account_equity"`
		Mode            string  `yaml:"mode"`
		RiskPctPerTrade float64 `yaml:"risk_pct_per_trade"`
		RiskTolerance   string  `yaml:"risk_tolerance"`
		MaxPositionPct  float64 `yaml:"max_position_pct"`
	} `yaml:"risk"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			Linger       time.Duration `yaml:"linger"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SERVER_PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
	if v := os.Getenv("WATCHLIST"); v != "" {
		c.Refresher.Symbols = util.SplitSymbols(v)
	}
	if v := os.Getenv("PRIMARY_URL"); v != "" {
		c.Providers.PrimaryURL = v
	}
	if v := os.Getenv("SECONDARY_URL"); v != "" {
		c.Providers.SecondaryURL = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Providers.RequestTimeout == 0 {
		c.Providers.RequestTimeout = 6 * time.Second
	}
	if c.Providers.MaxAttempts == 0 {
		c.Providers.MaxAttempts = 3
	}
	if c.Limiter.MaxConcurrent == 0 {
		c.Limiter.MaxConcurrent = 8
	}
	if c.Refresher.Interval == 0 {
		c.Refresher.Interval = time.Minute
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "quote-updates"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Providers.PrimaryURL == "" {
		return fmt.Errorf("providers.primary_url is required")
	}
	if c.Limiter.MaxConcurrent < 1 {
		return fmt.Errorf("limiter.max_concurrent must be positive")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	if c.Refresher.Enabled && len(c.Refresher.Symbols) == 0 {
		return fmt.Errorf("refresher.symbols cannot be empty when refresher is enabled")
	}
	return nil
}
