package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Gadget Core.
// Values come from defaults, then an optional YAML file, then environment variables.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	Gadgets   GadgetsConfig   `yaml:"gadgets"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	WebSocket WebSocketConfig `yaml:"websocket"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
// An empty AllowedOrigins list disables the CORS middleware.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains authentication settings.
type SecurityConfig struct {
	JWT      JWTConfig      `yaml:"jwt"`
	Password PasswordConfig `yaml:"password"`
}

// JWTConfig contains bearer token settings.
type JWTConfig struct {
	Secret string `yaml:"secret"`

	// TokenTTL is the token lifetime in minutes. Zero issues tokens without
	// an expiry claim.
	TokenTTL int `yaml:"token_ttl"`
}

// PasswordConfig selects the password hashing algorithm and its cost.
type PasswordConfig struct {
	// Algorithm is "argon2id" or "bcrypt".
	Algorithm  string       `yaml:"algorithm"`
	Argon2     Argon2Config `yaml:"argon2"`
	BcryptCost int          `yaml:"bcrypt_cost"`
}

// Argon2Config contains argon2id cost parameters.
type Argon2Config struct {
	Time    uint32 `yaml:"time"`
	Memory  uint32 `yaml:"memory"` // KiB
	Threads uint8  `yaml:"threads"`
}

// GadgetsConfig contains inventory behaviour settings.
type GadgetsConfig struct {
	// CodenamePrefix is prepended to the label supplied at creation.
	CodenamePrefix string `yaml:"codename_prefix"`

	// MaxNameLength bounds the stored name, prefix included.
	MaxNameLength int `yaml:"max_name_length"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
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
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`

	// BatchSize is the number of lifecycle points buffered per write.
	BatchSize int `yaml:"batch_size"`

	// FlushInterval is the longest a buffered point waits, in seconds.
	FlushInterval int `yaml:"flush_interval"`
}

// Write batching used when the config leaves it unset.
const (
	DefaultInfluxBatchSize     = 100
	DefaultInfluxFlushInterval = 10 // seconds
)

// WriteBatchSize returns BatchSize, or DefaultInfluxBatchSize when unset.
func (c InfluxDBConfig) WriteBatchSize() uint {
	if c.BatchSize <= 0 {
		return DefaultInfluxBatchSize
	}
	return uint(c.BatchSize)
}

// WriteFlushInterval returns FlushInterval as a Duration, falling back to
// DefaultInfluxFlushInterval when unset.
func (c InfluxDBConfig) WriteFlushInterval() time.Duration {
	if c.FlushInterval <= 0 {
		return DefaultInfluxFlushInterval * time.Second
	}
	return time.Duration(c.FlushInterval) * time.Second
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

const minJWTSecretLength = 32

// Load builds the configuration.
//
// The loading order is:
//  1. Default values
//  2. YAML file values, if path is non-empty and the file exists
//  3. Environment variables (GADGETS_SECTION_KEY, plus the legacy JWT_SECRET and PORT)
//
// A missing file is only an error when path was set explicitly via explicit=true.
func Load(path string, explicit bool) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist) && !explicit:
			// Environment-only deployment.
		default:
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in defaults without reading files or environment.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/gadgets.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 3000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
				MaxAge:         300,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			Password: PasswordConfig{
				Algorithm: "argon2id",
				Argon2: Argon2Config{
					Time:    3,
					Memory:  64 * 1024,
					Threads: 4,
				},
				BcryptCost: 10,
			},
		},
		Gadgets: GadgetsConfig{
			CodenamePrefix: "The ",
			MaxNameLength:  100,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "gadget-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     DefaultInfluxBatchSize,
			FlushInterval: DefaultInfluxFlushInterval,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Legacy variables first so the prefixed ones win.
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	if v := os.Getenv("GADGETS_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("GADGETS_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("GADGETS_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("GADGETS_CORS_ORIGINS"); v != "" {
		cfg.API.CORS.AllowedOrigins = splitList(v)
	}

	if v := os.Getenv("GADGETS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("GADGETS_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("GADGETS_JWT_TOKEN_TTL"); v != "" {
		if ttl, err := strconv.Atoi(v); err == nil {
			cfg.Security.JWT.TokenTTL = ttl
		}
	}
	if v := os.Getenv("GADGETS_PASSWORD_ALGORITHM"); v != "" {
		cfg.Security.Password.Algorithm = v
	}

	if v := os.Getenv("GADGETS_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GADGETS_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GADGETS_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("GADGETS_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.TLS.Enabled && (c.API.TLS.CertFile == "" || c.API.TLS.KeyFile == "") {
		errs = append(errs, "api.tls.cert_file and api.tls.key_file are required when TLS is enabled")
	}

	// Tokens signed with an empty or short key are forgeable.
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set GADGETS_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}
	if c.Security.JWT.TokenTTL < 0 {
		errs = append(errs, "security.jwt.token_ttl must not be negative")
	}

	switch c.Security.Password.Algorithm {
	case "argon2id":
		a := c.Security.Password.Argon2
		if a.Time == 0 || a.Memory == 0 || a.Threads == 0 {
			errs = append(errs, "security.password.argon2 time, memory and threads must be positive")
		}
	case "bcrypt":
		if c.Security.Password.BcryptCost < 4 || c.Security.Password.BcryptCost > 31 {
			errs = append(errs, "security.password.bcrypt_cost must be between 4 and 31")
		}
	default:
		errs = append(errs, fmt.Sprintf("security.password.algorithm %q is not supported (argon2id, bcrypt)", c.Security.Password.Algorithm))
	}

	if c.Gadgets.MaxNameLength < 1 {
		errs = append(errs, "gadgets.max_name_length must be positive")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}
	if c.InfluxDB.BatchSize < 0 || c.InfluxDB.FlushInterval < 0 {
		errs = append(errs, "influxdb.batch_size and influxdb.flush_interval must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
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

// TokenTTL returns the configured token lifetime. Zero means no expiry.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.TokenTTL) * time.Minute
}
