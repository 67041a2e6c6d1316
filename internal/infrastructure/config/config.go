package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for procwarden.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Instance   InstanceConfig   `yaml:"instance"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Launcher   LauncherConfig   `yaml:"launcher"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
	Security   SecurityConfig   `yaml:"security"`
}

// InstanceConfig identifies this supervisor among others on the same broker.
type InstanceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// SupervisorConfig contains process lifecycle settings.
type SupervisorConfig struct {
	// BufferCapacity is the number of output lines kept per stream.
	BufferCapacity int `yaml:"buffer_capacity"`

	// StopTimeout bounds how long a single stop waits for the process to exit.
	StopTimeout time.Duration `yaml:"stop_timeout"`

	// StopAllTimeout bounds the per-process wait during a bulk stop.
	StopAllTimeout time.Duration `yaml:"stop_all_timeout"`

	// GracefulTimeout is the wait between SIGTERM and SIGKILL.
	GracefulTimeout time.Duration `yaml:"graceful_timeout"`

	// StopAllConcurrency limits parallel terminations during a bulk stop.
	StopAllConcurrency int `yaml:"stop_all_concurrency"`

	// SampleInterval is how often supervisor gauges are written to InfluxDB.
	SampleInterval time.Duration `yaml:"sample_interval"`
}

// LauncherConfig describes the managed executable and how it is invoked.
type LauncherConfig struct {
	// Executable is the file name of the managed program. On Windows ".exe"
	// is appended when missing.
	Executable string `yaml:"executable"`

	// WorkDir is the directory holding the executable. Defaults to the
	// current directory.
	WorkDir string `yaml:"work_dir"`

	// Args is the argument template. {pool}, {worker} and {name} are
	// substituted per launch.
	Args []string `yaml:"args"`

	// Env holds extra KEY=value pairs for the child environment.
	Env []string `yaml:"env"`

	// DiagnosticsFile is written in WorkDir when a launch fails.
	DiagnosticsFile string `yaml:"diagnostics_file"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// AuditRetentionDays is how long audit rows are kept. Zero keeps them forever.
	AuditRetentionDays int `yaml:"audit_retention_days"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`

	// LegacyRoutes enables the flat GET routes (/start/{pool}, /stopall, ...).
	LegacyRoutes bool `yaml:"legacy_routes"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains bearer token settings. An empty secret disables
// authentication.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// minJWTSecretLength is the shortest accepted HS256 secret.
const minJWTSecretLength = 32

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: PROCWARDEN_SECTION_KEY
// For example: PROCWARDEN_LAUNCHER_EXECUTABLE, PROCWARDEN_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides
// applied. It is used when no config file exists.
func Default() (*Config, error) {
	cfg := defaultConfig()
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Instance: InstanceConfig{
			ID:   "procwarden-01",
			Name: "procwarden",
		},
		Supervisor: SupervisorConfig{
			BufferCapacity:     1000,
			StopTimeout:        5 * time.Second,
			StopAllTimeout:     3 * time.Second,
			GracefulTimeout:    2 * time.Second,
			StopAllConcurrency: 8,
			SampleInterval:     30 * time.Second,
		},
		Launcher: LauncherConfig{
			Executable:      "worker",
			WorkDir:         ".",
			Args:            []string{"--pool", "{pool}", "--worker", "{worker}"},
			DiagnosticsFile: "procwarden_error.txt",
		},
		Database: DatabaseConfig{
			Enabled:            true,
			Path:               "./data/procwarden.db",
			WALMode:            true,
			BusyTimeout:        5,
			AuditRetentionDays: 30,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "procwarden",
			},
			QoS:         1,
			TopicPrefix: "procwarden",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			LegacyRoutes: true,
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				Issuer: "procwarden",
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: PROCWARDEN_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	// Launcher
	if v := os.Getenv("PROCWARDEN_LAUNCHER_EXECUTABLE"); v != "" {
		cfg.Launcher.Executable = v
	}
	if v := os.Getenv("PROCWARDEN_LAUNCHER_WORK_DIR"); v != "" {
		cfg.Launcher.WorkDir = v
	}

	// Supervisor
	if v := os.Getenv("PROCWARDEN_SUPERVISOR_STOP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PROCWARDEN_SUPERVISOR_STOP_TIMEOUT: %w", err)
		}
		cfg.Supervisor.StopTimeout = d
	}

	// Database
	if v := os.Getenv("PROCWARDEN_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("PROCWARDEN_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("PROCWARDEN_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("PROCWARDEN_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("PROCWARDEN_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("PROCWARDEN_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PROCWARDEN_API_PORT: %w", err)
		}
		cfg.API.Port = port
	}

	// InfluxDB
	if v := os.Getenv("PROCWARDEN_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("PROCWARDEN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Security
	if v := os.Getenv("PROCWARDEN_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}

	return nil
}

// Validate checks the configuration for errors and security issues.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []string

	if c.Instance.ID == "" {
		errs = append(errs, "instance.id is required")
	}

	// Supervisor
	if c.Supervisor.BufferCapacity < 1 {
		errs = append(errs, "supervisor.buffer_capacity must be at least 1")
	}
	if c.Supervisor.StopTimeout <= 0 {
		errs = append(errs, "supervisor.stop_timeout must be positive")
	}
	if c.Supervisor.StopAllTimeout <= 0 {
		errs = append(errs, "supervisor.stop_all_timeout must be positive")
	}
	if c.Supervisor.GracefulTimeout < 0 {
		errs = append(errs, "supervisor.graceful_timeout must not be negative")
	}
	if c.Supervisor.StopAllConcurrency < 1 {
		errs = append(errs, "supervisor.stop_all_concurrency must be at least 1")
	}

	// Launcher
	if c.Launcher.Executable == "" {
		errs = append(errs, "launcher.executable is required")
	}

	// Database
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database is enabled")
	}
	if c.Database.AuditRetentionDays < 0 {
		errs = append(errs, "database.audit_retention_days must not be negative")
	}

	// MQTT
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
	}

	// API
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// InfluxDB
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	// Security: the secret is optional, but a configured one must be strong.
	if s := c.Security.JWT.Secret; s != "" && len(s) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// AuthEnabled reports whether bearer token authentication is configured.
func (c *Config) AuthEnabled() bool {
	return c.Security.JWT.Secret != ""
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
