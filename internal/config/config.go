package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"churn-risk-alerts/internal/logging"
	"churn-risk-alerts/internal/storage"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig          `mapstructure:"app"`
	Logging   logging.Config     `mapstructure:"logging"`
	Database  storage.PoolConfig `mapstructure:"database"`
	HTTP      HTTPConfig         `mapstructure:"http"`
	Scheduler SchedulerConfig    `mapstructure:"scheduler"`
	Predictor PredictorConfig    `mapstructure:"predictor"`
	Alerting  AlertingConfig     `mapstructure:"alerting"`
	Retention RetentionConfig    `mapstructure:"retention"`
	Export    ExportConfig       `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// HTTPConfig covers the exposed API server.
type HTTPConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SchedulerConfig governs the evaluation cadence and run shape.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToInterval bool          `mapstructure:"align_to_interval"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	BatchSize       int           `mapstructure:"batch_size"`
	Workers         int           `mapstructure:"workers"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// PredictorConfig covers access to the churn model service.
type PredictorConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
}

// AlertingConfig defines delivery behaviour. Thresholds, the webhook URL, and
// the enabled flag live in the database configuration row; these settings
// shape how surviving alerts are delivered.
type AlertingConfig struct {
	Cooldown       time.Duration `mapstructure:"cooldown"`
	MaxPerMinute   int           `mapstructure:"max_per_minute"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	BaseDelay      time.Duration `mapstructure:"base_delay"`
	MaxDelay       time.Duration `mapstructure:"max_delay"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// RetentionConfig bounds history growth. Zero disables purging.
type RetentionConfig struct {
	RiskHistory  time.Duration `mapstructure:"risk_history"`
	AlertHistory time.Duration `mapstructure:"alert_history"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
	TrendDays     int `mapstructure:"trend_days"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CHURNWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "churnwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("http.listen_addr", ":8080")
	v.SetDefault("http.shutdown_timeout", "10s")

	v.SetDefault("scheduler.interval", "1h")
	v.SetDefault("scheduler.align_to_interval", true)
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.batch_size", 500)
	v.SetDefault("scheduler.workers", 8)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x6368726e))

	v.SetDefault("predictor.base_url", "http://localhost:8000/api")
	v.SetDefault("predictor.request_timeout", "10s")
	v.SetDefault("predictor.user_agent", "churnwatcher/1.0")
	v.SetDefault("predictor.cache_ttl", "1h")

	v.SetDefault("alerting.cooldown", "24h")
	v.SetDefault("alerting.max_per_minute", 30)
	v.SetDefault("alerting.max_attempts", 3)
	v.SetDefault("alerting.base_delay", "1s")
	v.SetDefault("alerting.max_delay", "30s")
	v.SetDefault("alerting.request_timeout", "10s")

	v.SetDefault("retention.risk_history", "0s")
	v.SetDefault("retention.alert_history", "0s")

	v.SetDefault("export.max_data_points", 100000)
	v.SetDefault("export.trend_days", 30)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Scheduler.BatchSize <= 0 {
		return fmt.Errorf("scheduler.batch_size must be greater than zero")
	}
	if c.Scheduler.Workers <= 0 {
		return fmt.Errorf("scheduler.workers must be greater than zero")
	}
	if c.Predictor.BaseURL == "" {
		return fmt.Errorf("predictor.base_url is required")
	}
	if c.Predictor.CacheTTL < 0 {
		return fmt.Errorf("predictor.cache_ttl cannot be negative")
	}
	if c.Alerting.MaxAttempts <= 0 {
		return fmt.Errorf("alerting.max_attempts must be greater than zero")
	}
	if c.Alerting.MaxPerMinute <= 0 {
		return fmt.Errorf("alerting.max_per_minute must be greater than zero")
	}
	if c.Alerting.Cooldown < 0 {
		return fmt.Errorf("alerting.cooldown cannot be negative")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Export.TrendDays <= 0 {
		return fmt.Errorf("export.trend_days must be greater than zero")
	}
	return nil
}
