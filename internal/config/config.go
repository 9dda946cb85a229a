package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const envPrefix = "GROUPLEDGER"

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// WriteRateLimit caps mutating requests per tenant per WriteRateWindow.
	// Zero disables the limit.
	WriteRateLimit  int           `mapstructure:"write_rate_limit"`
	WriteRateWindow time.Duration `mapstructure:"write_rate_window"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	LogMode         bool          `mapstructure:"log_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	ExporterEndpoint string  `mapstructure:"exporter_endpoint"`
	ExporterProtocol string  `mapstructure:"exporter_protocol"`
	SamplingRatio    float64 `mapstructure:"sampling_ratio"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type SchedulerConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	TotalsInterval    time.Duration `mapstructure:"totals_interval"`
	JobTimeout        time.Duration `mapstructure:"job_timeout"`
}

type LedgerConfig struct {
	// ReconcileTolerance is the drift, in currency units, above which a cached
	// balance is overwritten.
	ReconcileTolerance string        `mapstructure:"reconcile_tolerance"`
	LinkCacheTTL       time.Duration `mapstructure:"link_cache_ttl"`
}

// Config is the process configuration.
type Config struct {
	ServiceName    string          `mapstructure:"service_name"`
	ServiceVersion string          `mapstructure:"service_version"`
	Environment    string          `mapstructure:"environment"`
	SnowflakeNode  int64           `mapstructure:"snowflake_node"`
	HTTP           HTTPConfig      `mapstructure:"http"`
	Database       DatabaseConfig  `mapstructure:"database"`
	Log            LogConfig       `mapstructure:"log"`
	Tracing        TracingConfig   `mapstructure:"tracing"`
	Metrics        MetricsConfig   `mapstructure:"metrics"`
	Scheduler      SchedulerConfig `mapstructure:"scheduler"`
	Ledger         LedgerConfig    `mapstructure:"ledger"`
}

// IsProduction reports whether the process runs in the production environment.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// Tolerance returns the parsed reconciliation tolerance.
func (c Config) Tolerance() decimal.Decimal {
	value, err := decimal.NewFromString(strings.TrimSpace(c.Ledger.ReconcileTolerance))
	if err != nil || value.IsNegative() {
		return decimal.New(1, -2)
	}
	return value
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "groupledger")
	v.SetDefault("service_version", "dev")
	v.SetDefault("environment", "development")
	v.SetDefault("snowflake_node", 1)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.write_rate_limit", 120)
	v.SetDefault("http.write_rate_window", time.Minute)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=localhost user=groupledger dbname=groupledger sslmode=disable")
	v.SetDefault("database.log_mode", false)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter_protocol", "grpc")
	v.SetDefault("tracing.sampling_ratio", 0.1)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.reconcile_interval", 15*time.Minute)
	v.SetDefault("scheduler.totals_interval", time.Hour)
	v.SetDefault("scheduler.job_timeout", 2*time.Minute)

	v.SetDefault("ledger.reconcile_tolerance", "0.01")
	v.SetDefault("ledger.link_cache_ttl", 30*time.Second)
}

// Load reads configuration from path (optional) and GROUPLEDGER_* environment
// variables, e.g. GROUPLEDGER_DATABASE_DSN.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Database.Driver)) {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.SnowflakeNode < 0 || c.SnowflakeNode > 1023 {
		return fmt.Errorf("snowflake_node must be between 0 and 1023")
	}
	if _, err := decimal.NewFromString(strings.TrimSpace(c.Ledger.ReconcileTolerance)); err != nil {
		return fmt.Errorf("ledger.reconcile_tolerance: %w", err)
	}
	return nil
}
