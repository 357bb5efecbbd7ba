package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/samirrijal/civicconnect/internal/pkg/logging"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	NATS         NATSConfig         `mapstructure:"nats"`
	Valkey       ValkeyConfig       `mapstructure:"valkey"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
	Session      SessionConfig      `mapstructure:"session"`
	Uploads      UploadsConfig      `mapstructure:"uploads"`
	Classifier   ClassifierConfig   `mapstructure:"classifier"`
	Verification VerificationConfig `mapstructure:"verification"`
	Temporal     TemporalConfig     `mapstructure:"temporal"`
	Triage       TriageConfig       `mapstructure:"triage"`
	Hotspots     HotspotsConfig     `mapstructure:"hotspots"`
	LogLevel     string             `mapstructure:"log_level"`
	LogFormat    string             `mapstructure:"log_format"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	BodyLimitMB  int    `mapstructure:"body_limit_mb"`
	CORSOrigins  string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Enabled      bool   `mapstructure:"enabled"`
}

type SessionConfig struct {
	TTLHours     int  `mapstructure:"ttl_hours"`
	CookieSecure bool `mapstructure:"cookie_secure"`
}

func (s SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLHours) * time.Hour
}

type UploadsConfig struct {
	Dir string `mapstructure:"dir"`
}

// ClassifierConfig points at a TensorFlow Serving REST endpoint.
type ClassifierConfig struct {
	URL            string `mapstructure:"url"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	Enabled        bool   `mapstructure:"enabled"`
}

type VerificationConfig struct {
	MaxDistanceMeters float64 `mapstructure:"max_distance_meters"`
	MaxAgeHours       int     `mapstructure:"max_age_hours"`
}

func (v VerificationConfig) MaxAge() time.Duration {
	return time.Duration(v.MaxAgeHours) * time.Hour
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// TriageConfig holds how long an issue may stay Pending before escalation.
type TriageConfig struct {
	SLAHighHours   int `mapstructure:"sla_high_hours"`
	SLANormalHours int `mapstructure:"sla_normal_hours"`
}

type HotspotsConfig struct {
	Resolution int `mapstructure:"resolution"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", logging.FormatJSON)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.body_limit_mb", 5)
	v.SetDefault("server.cors_origins", "*")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "civic")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "civicconnect")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("session.ttl_hours", 6)
	v.SetDefault("session.cookie_secure", false)
	v.SetDefault("uploads.dir", "static/uploads")
	v.SetDefault("classifier.url", "http://localhost:8501")
	v.SetDefault("classifier.model", "civic_issue_model")
	v.SetDefault("classifier.timeout_seconds", 10)
	v.SetDefault("classifier.enabled", true)
	v.SetDefault("verification.max_distance_meters", 200.0)
	v.SetDefault("verification.max_age_hours", 168)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "civic-triage")
	v.SetDefault("triage.sla_high_hours", 24)
	v.SetDefault("triage.sla_normal_hours", 72)
	v.SetDefault("hotspots.resolution", 8)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: CIVICCONNECT_DATABASE_HOST → database.host
	v.SetEnvPrefix("CIVICCONNECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := logging.ParseFormat(c.LogFormat); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Server.BodyLimitMB <= 0 {
		errs = append(errs, "server.body_limit_mb must be positive")
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Session.TTLHours <= 0 {
		errs = append(errs, "session.ttl_hours must be positive")
	}
	if c.Uploads.Dir == "" {
		errs = append(errs, "uploads.dir is required")
	}
	if c.Classifier.Enabled && c.Classifier.URL == "" {
		errs = append(errs, "classifier.url is required when the classifier is enabled")
	}
	if c.Verification.MaxDistanceMeters <= 0 {
		errs = append(errs, "verification.max_distance_meters must be positive")
	}
	if c.Verification.MaxAgeHours <= 0 {
		errs = append(errs, "verification.max_age_hours must be positive")
	}
	if c.Triage.SLAHighHours <= 0 || c.Triage.SLANormalHours <= 0 {
		errs = append(errs, "triage SLAs must be positive")
	}
	if c.Hotspots.Resolution < 0 || c.Hotspots.Resolution > 15 {
		errs = append(errs, fmt.Sprintf("hotspots.resolution must be 0-15, got %d", c.Hotspots.Resolution))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
