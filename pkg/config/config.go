package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var GlobalConfig *Config

// Storage drivers
const (
	StorageMySQL  = "mysql"
	StorageMemory = "memory"
)

// Step deadline backends
const (
	DeadlineBackendAsynq = "asynq"
	DeadlineBackendLocal = "local"
)

// Defaults applied when a value is missing or invalid
const (
	DefaultPort                = 3001
	DefaultMode                = "release"
	DefaultAgentPingInterval   = 30 * time.Second
	DefaultPresenceTTL         = 90 * time.Second
	DefaultMetricsDays         = 30
	DefaultResolvedAlertDays   = 90
	DefaultRunDays             = 90
	DefaultRetentionInterval   = time.Hour
	DefaultStepGrace           = 30 * time.Second
	DefaultDeadlineConcurrency = 5
	DefaultNotifySeverity      = "critical"
)

// Config global configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	Logger    LoggerConfig    `yaml:"logger"`
	Retention RetentionConfig `yaml:"retention"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`

	Notification NotificationConfig `yaml:"notification"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Port              int           `yaml:"port"`
	Mode              string        `yaml:"mode"`                // debug, release
	JWTSecret         string        `yaml:"jwt_secret"`          // HS256 secret of dashboard identity tokens
	AgentPingInterval time.Duration `yaml:"agent_ping_interval"` // application-level ping to every agent
	CORSOrigins       []string      `yaml:"cors_origins"`        // empty allows any origin
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Driver string `yaml:"driver"` // mysql, memory
}

// RedisConfig Redis configuration; empty Addr disables presence, locks and asynq deadlines
type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	PresenceTTL time.Duration `yaml:"presence_ttl"`
}

// Enabled reports whether a Redis server is configured
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// MySQLConfig MySQL configuration
type MySQLConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	Database    string `yaml:"database"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// DSN builds the go-sql-driver DSN; times are stored and read as UTC
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// LoggerConfig logger configuration
type LoggerConfig struct {
	Level  string           `yaml:"level"`  // debug, info, warn, error
	Output string           `yaml:"output"` // console, file, both
	File   LoggerFileConfig `yaml:"file"`
}

// LoggerFileConfig logger file configuration
type LoggerFileConfig struct {
	Path string `yaml:"path"`
}

// RetentionConfig how long history is kept
type RetentionConfig struct {
	MetricsDays       int           `yaml:"metrics_days"`
	ResolvedAlertDays int           `yaml:"resolved_alert_days"`
	RunDays           int           `yaml:"run_days"`
	Interval          time.Duration `yaml:"interval"` // how often the cleanup jobs run
}

// DispatchConfig command dispatch configuration
type DispatchConfig struct {
	StepGrace       time.Duration `yaml:"step_grace"`       // added to each step timeout before it is declared lost
	DeadlineBackend string        `yaml:"deadline_backend"` // asynq, local
	Concurrency     int           `yaml:"concurrency"`      // asynq deadline worker concurrency
}

// NotificationConfig outbound alert notifications
type NotificationConfig struct {
	FeishuWebhookURL string `yaml:"feishu_webhook_url"` // empty disables notifications
	MinSeverity      string `yaml:"min_severity"`       // info, warning, critical
}

// Init initializes configuration from CONFIG_PATH (default config/config.yaml)
func Init() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := Load(configPath)
	if err != nil {
		return err
	}

	GlobalConfig = cfg
	return nil
}

// Load reads, overrides, defaults and validates a configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	validateAndApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides lets secrets come from the environment instead of the file
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Server.JWTSecret = v
	}
	if v := os.Getenv("MYSQL_PASSWORD"); v != "" {
		cfg.MySQL.Password = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("FEISHU_WEBHOOK_URL"); v != "" && cfg.Notification.FeishuWebhookURL == "" {
		cfg.Notification.FeishuWebhookURL = v
	}
}

// validateAndApplyDefaults replaces missing or out-of-range values with defaults
func validateAndApplyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.Mode != "debug" && cfg.Server.Mode != "release" {
		cfg.Server.Mode = DefaultMode
	}
	if cfg.Server.AgentPingInterval <= 0 {
		cfg.Server.AgentPingInterval = DefaultAgentPingInterval
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = StorageMySQL
	}
	if cfg.MySQL.Port <= 0 {
		cfg.MySQL.Port = 3306
	}
	if cfg.Redis.PresenceTTL <= 0 {
		cfg.Redis.PresenceTTL = DefaultPresenceTTL
	}

	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Output == "" {
		cfg.Logger.Output = "console"
	}

	if cfg.Retention.MetricsDays <= 0 {
		cfg.Retention.MetricsDays = DefaultMetricsDays
	}
	if cfg.Retention.ResolvedAlertDays <= 0 {
		cfg.Retention.ResolvedAlertDays = DefaultResolvedAlertDays
	}
	if cfg.Retention.RunDays <= 0 {
		cfg.Retention.RunDays = DefaultRunDays
	}
	if cfg.Retention.Interval <= 0 {
		cfg.Retention.Interval = DefaultRetentionInterval
	}

	if cfg.Dispatch.StepGrace <= 0 {
		cfg.Dispatch.StepGrace = DefaultStepGrace
	}
	if cfg.Dispatch.DeadlineBackend == "" {
		cfg.Dispatch.DeadlineBackend = DeadlineBackendAsynq
	}
	if cfg.Dispatch.DeadlineBackend == DeadlineBackendAsynq && !cfg.Redis.Enabled() {
		cfg.Dispatch.DeadlineBackend = DeadlineBackendLocal
	}
	if cfg.Dispatch.Concurrency <= 0 {
		cfg.Dispatch.Concurrency = DefaultDeadlineConcurrency
	}

	if cfg.Notification.MinSeverity == "" {
		cfg.Notification.MinSeverity = DefaultNotifySeverity
	}
}

// Validate rejects settings that have no safe default
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case StorageMySQL:
		if c.MySQL.Host == "" || c.MySQL.Database == "" {
			errs = append(errs, errors.New("mysql.host and mysql.database are required for storage.driver=mysql"))
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}

	switch c.Dispatch.DeadlineBackend {
	case DeadlineBackendAsynq, DeadlineBackendLocal:
	default:
		errs = append(errs, fmt.Errorf("unknown dispatch.deadline_backend %q", c.Dispatch.DeadlineBackend))
	}

	switch c.Notification.MinSeverity {
	case "info", "warning", "critical":
	default:
		errs = append(errs, fmt.Errorf("unknown notification.min_severity %q", c.Notification.MinSeverity))
	}

	if c.Server.JWTSecret == "" {
		errs = append(errs, errors.New("server.jwt_secret (or JWT_SECRET) is required"))
	}
	switch c.Logger.Output {
	case "file", "both":
		if c.Logger.File.Path == "" {
			errs = append(errs, errors.New("logger.file.path is required when logging to a file"))
		}
	}
	return errors.Join(errs...)
}
