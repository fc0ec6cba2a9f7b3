package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Email       EmailConfig       `mapstructure:"email"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// EmailConfig holds outbound email API configuration
type EmailConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	SenderEmail        string        `mapstructure:"sender_email"`
	AuthorizationToken string        `mapstructure:"authorization_token"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

// WorkerConfig holds delivery worker configuration
type WorkerConfig struct {
	Count        int           `mapstructure:"count"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	ErrorBackoff time.Duration `mapstructure:"error_backoff"`
	LeaseTTL     time.Duration `mapstructure:"lease_ttl"`
}

// IdempotencyConfig holds idempotency store configuration
type IdempotencyConfig struct {
	WaitTimeout   time.Duration `mapstructure:"wait_timeout"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	Retention     time.Duration `mapstructure:"retention"`
	SweepSchedule string        `mapstructure:"sweep_schedule"`
}

// LoadConfig loads configuration from environment variables and config file
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Environment variables override config file
	viper.AutomaticEnv()
	bindEnvVars()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)

	viper.SetDefault("email.timeout", "10s")

	viper.SetDefault("worker.count", 1)
	viper.SetDefault("worker.poll_interval", "10s")
	viper.SetDefault("worker.error_backoff", "1s")
	viper.SetDefault("worker.lease_ttl", "5m")

	viper.SetDefault("idempotency.wait_timeout", "5s")
	viper.SetDefault("idempotency.poll_interval", "100ms")
	viper.SetDefault("idempotency.retention", "48h")
	viper.SetDefault("idempotency.sweep_schedule", "0 0 * * * *")
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars() {
	// Server
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	// Database
	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.dbname", "DB_NAME")

	// Email
	viper.BindEnv("email.base_url", "EMAIL_BASE_URL")
	viper.BindEnv("email.sender_email", "EMAIL_SENDER")
	viper.BindEnv("email.authorization_token", "EMAIL_AUTHORIZATION_TOKEN")
	viper.BindEnv("email.timeout", "EMAIL_TIMEOUT")

	// Worker
	viper.BindEnv("worker.count", "WORKER_COUNT")
	viper.BindEnv("worker.poll_interval", "WORKER_POLL_INTERVAL")
	viper.BindEnv("worker.error_backoff", "WORKER_ERROR_BACKOFF")
	viper.BindEnv("worker.lease_ttl", "WORKER_LEASE_TTL")

	// Idempotency
	viper.BindEnv("idempotency.wait_timeout", "IDEMPOTENCY_WAIT_TIMEOUT")
	viper.BindEnv("idempotency.poll_interval", "IDEMPOTENCY_POLL_INTERVAL")
	viper.BindEnv("idempotency.retention", "IDEMPOTENCY_RETENTION")
	viper.BindEnv("idempotency.sweep_schedule", "IDEMPOTENCY_SWEEP_SCHEDULE")
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return fmt.Errorf("database host, user, and dbname are required")
	}

	if c.Email.BaseURL == "" || c.Email.SenderEmail == "" || c.Email.AuthorizationToken == "" {
		return fmt.Errorf("email base_url, sender_email, and authorization_token are required")
	}

	if c.Worker.Count <= 0 {
		return fmt.Errorf("worker count must be greater than 0")
	}
	if c.Worker.PollInterval <= 0 || c.Worker.ErrorBackoff <= 0 {
		return fmt.Errorf("worker poll_interval and error_backoff must be greater than 0")
	}
	if c.Worker.LeaseTTL <= 0 {
		return fmt.Errorf("worker lease_ttl must be greater than 0")
	}

	if c.Idempotency.WaitTimeout < 0 || c.Idempotency.PollInterval <= 0 {
		return fmt.Errorf("idempotency poll_interval must be greater than 0")
	}

	return nil
}
