package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Printers PrintersConfig `yaml:"printers"`
	Queue    QueueConfig    `yaml:"queue"`
	Compile  CompileConfig  `yaml:"compile"`
	Output   OutputConfig   `yaml:"output"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	PublicURL    string        `yaml:"public_url"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// RateLimitPerMinute caps authenticated API requests per vendor.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type PrintersConfig struct {
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
	ConnectionTimeout   time.Duration `yaml:"connection_timeout"`
}

type QueueConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval"`
	ErrorBackoff  time.Duration `yaml:"error_backoff"`
	RetentionDays int           `yaml:"retention_days"`
}

type CompileConfig struct {
	MaxLabelsPerBatch int           `yaml:"max_labels_per_batch"`
	MaxBatchSizeBytes int           `yaml:"max_batch_size_bytes"`
	MaxPrintTime      time.Duration `yaml:"max_print_time"`
	JobMaxAgeHours    int           `yaml:"job_max_age_hours"`
}

type OutputConfig struct {
	Dir         string        `yaml:"dir"`
	DownloadTTL time.Duration `yaml:"download_ttl"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               8080,
			PublicURL:          "http://localhost:8080",
			ReadTimeout:        30 * time.Second,
			WriteTimeout:       30 * time.Second,
			RateLimitPerMinute: 60,
		},
		Database: DatabaseConfig{
			Path: "./data/labelpress.db",
		},
		Printers: PrintersConfig{
			HealthCheckInterval: 30 * time.Second,
			ConnectionTimeout:   10 * time.Second,
		},
		Queue: QueueConfig{
			PollInterval:  1 * time.Second,
			ErrorBackoff:  5 * time.Second,
			RetentionDays: 30,
		},
		Compile: CompileConfig{
			MaxLabelsPerBatch: 100,
			MaxBatchSizeBytes: 1 << 20,
			MaxPrintTime:      10 * time.Minute,
			JobMaxAgeHours:    24,
		},
		Output: OutputConfig{
			Dir:         "./data/output",
			DownloadTTL: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML config at configPath, falling back to defaults when
// the file does not exist, then applies environment overrides.
func Load(configPath string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LABELPRESS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("LABELPRESS_PUBLIC_URL"); v != "" {
		c.Server.PublicURL = v
	}
	if v := os.Getenv("LABELPRESS_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("LABELPRESS_OUTPUT_DIR"); v != "" {
		c.Output.Dir = v
	}
	if v := os.Getenv("LABELPRESS_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.RateLimitPerMinute = n
		}
	}
	if v := os.Getenv("LABELPRESS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Output.Dir == "" {
		return fmt.Errorf("output dir is required")
	}

	if c.Printers.ConnectionTimeout < 0 {
		return fmt.Errorf("connection timeout must be non-negative")
	}

	if c.Queue.PollInterval <= 0 {
		return fmt.Errorf("queue poll interval must be positive")
	}

	if c.Queue.ErrorBackoff < c.Queue.PollInterval {
		return fmt.Errorf("queue error backoff must be at least the poll interval")
	}

	if c.Server.RateLimitPerMinute < 1 {
		return fmt.Errorf("rate limit must be at least 1 request per minute")
	}

	if c.Compile.MaxLabelsPerBatch < 1 {
		return fmt.Errorf("max labels per batch must be at least 1")
	}

	if c.Compile.MaxBatchSizeBytes < 1024 {
		return fmt.Errorf("max batch size must be at least 1024 bytes")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}
