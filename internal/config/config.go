package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Polling   PollingConfig   `mapstructure:"polling"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// WebhookConfig holds callback endpoint configuration
type WebhookConfig struct {
	// Secret is the shared credential the external workflow must present,
	// either as a bearer token or in the X-API-Key header
	Secret string `mapstructure:"secret"`
	Path   string `mapstructure:"path"`
}

// PollingConfig holds polling client profiles. Each call site picks a
// named profile instead of hardcoding interval/attempt literals.
type PollingConfig struct {
	DefaultProfile string                    `mapstructure:"default_profile"`
	Profiles       map[string]PollingProfile `mapstructure:"profiles"`
}

// PollingProfile is one interval/attempt budget
type PollingProfile struct {
	Interval    time.Duration `mapstructure:"interval"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// Budget returns the wall-clock upper bound of the profile
func (p PollingProfile) Budget() time.Duration {
	return p.Interval * time.Duration(p.MaxAttempts)
}

// CleanupConfig holds record sweep configuration
type CleanupConfig struct {
	MaxAge   time.Duration `mapstructure:"max_age"`
	Interval time.Duration `mapstructure:"interval"`
}

// RateLimitConfig holds the webhook rate limiter configuration
type RateLimitConfig struct {
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/invoice_app.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	// Webhook defaults
	viper.SetDefault("webhook.path", "/api/invoice-callback")

	// Polling defaults: "interactive" is the 30s budget used right after
	// submission, "extended" the 120s budget used on the success page
	viper.SetDefault("polling.default_profile", "interactive")
	viper.SetDefault("polling.profiles.interactive.interval", 2*time.Second)
	viper.SetDefault("polling.profiles.interactive.max_attempts", 15)
	viper.SetDefault("polling.profiles.extended.interval", 2*time.Second)
	viper.SetDefault("polling.profiles.extended.max_attempts", 60)

	// Cleanup defaults
	viper.SetDefault("cleanup.max_age", 24*time.Hour)
	viper.SetDefault("cleanup.interval", time.Hour)

	// Rate limit defaults
	viper.SetDefault("rate_limit.max_requests", 100)
	viper.SetDefault("rate_limit.window", time.Minute)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	viper.BindEnv("webhook.secret", "INVOICE_WEBHOOK_SECRET")
	viper.BindEnv("database.path", "INVOICE_DB_PATH")
	viper.BindEnv("server.port", "PORT")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Webhook.Secret == "" {
		return fmt.Errorf("webhook.secret is required")
	}

	if c.Polling.DefaultProfile != "" {
		if _, ok := c.Polling.Profiles[c.Polling.DefaultProfile]; !ok {
			return fmt.Errorf("polling.default_profile %q has no profile definition", c.Polling.DefaultProfile)
		}
	}
	for name, p := range c.Polling.Profiles {
		if p.Interval <= 0 {
			return fmt.Errorf("polling profile %q: interval must be positive", name)
		}
		if p.MaxAttempts <= 0 {
			return fmt.Errorf("polling profile %q: max_attempts must be positive", name)
		}
	}

	if c.Cleanup.MaxAge <= 0 {
		return fmt.Errorf("cleanup.max_age must be positive")
	}

	return nil
}
