package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config top-level struct
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Retry     RetryConfig     `yaml:"retry"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Sweeper   SweeperConfig   `yaml:"sweeper"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type RateLimitConfig struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

// RetryConfig shapes the exponential backoff applied to failed events.
type RetryConfig struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelaySecs  int     `yaml:"initial_delay_seconds"`
	MaxDelaySecs      int     `yaml:"max_delay_seconds"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
}

func (r RetryConfig) InitialDelay() time.Duration {
	return time.Duration(r.InitialDelaySecs) * time.Second
}

func (r RetryConfig) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelaySecs) * time.Second
}

type SchedulerConfig struct {
	IntervalSecs int `yaml:"interval_seconds"`
	BatchSize    int `yaml:"batch_size"`
}

func (s SchedulerConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSecs) * time.Second
}

type SweeperConfig struct {
	IntervalHours int `yaml:"interval_hours"`
	DaysToKeep    int `yaml:"days_to_keep"`
}

func (s SweeperConfig) Interval() time.Duration {
	return time.Duration(s.IntervalHours) * time.Hour
}

// Load reads yaml file and fills unset sections with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	// override DSN password from env if present
	if pw := os.Getenv("POSTGRES_PASSWORD"); pw != "" {
		cfg.Postgres.DSN = cfg.Postgres.DSN + " password=" + pw
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero-valued tuning knobs with the documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 5
	}
	if c.Retry.InitialDelaySecs == 0 {
		c.Retry.InitialDelaySecs = 60
	}
	if c.Retry.MaxDelaySecs == 0 {
		c.Retry.MaxDelaySecs = 3600
	}
	if c.Retry.BackoffMultiplier == 0 {
		c.Retry.BackoffMultiplier = 2
	}
	if c.Scheduler.IntervalSecs == 0 {
		c.Scheduler.IntervalSecs = 60
	}
	if c.Scheduler.BatchSize == 0 {
		c.Scheduler.BatchSize = 10
	}
	if c.Sweeper.IntervalHours == 0 {
		c.Sweeper.IntervalHours = 24
	}
	if c.Sweeper.DaysToKeep == 0 {
		c.Sweeper.DaysToKeep = 30
	}
}
