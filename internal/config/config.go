package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every tunable enumerated in the configuration surface, loaded
// with defaults baked in as struct tags.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	AuthEnabled    bool    `env:"AUTH_ENABLED" envDefault:"false"`
	AuthToken      string  `env:"AUTH_TOKEN"`
	WriteToken     string  `env:"WRITE_TOKEN"`
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"40"`
	CORSOrigins    string  `env:"CORS_ORIGINS"`
	LogLevel       string  `env:"LOG_LEVEL" envDefault:"info"`
	MetricsEnabled bool    `env:"METRICS_ENABLED" envDefault:"true"`

	// Tiered storage (C4)
	HotRetentionDays  int  `env:"HOT_RETENTION_DAYS" envDefault:"7"`
	WarmRetentionDays int  `env:"WARM_RETENTION_DAYS" envDefault:"30"`
	EnableColdArchive bool `env:"ENABLE_COLD_ARCHIVE" envDefault:"false"`
	ColdArchiveDir    string `env:"COLD_ARCHIVE_DIR" envDefault:"./cold-archive"`

	// Ingestion pipeline (C3)
	ChannelBufferSize       int           `env:"CHANNEL_BUFFER_SIZE" envDefault:"10000"`
	BatchSize               int           `env:"BATCH_SIZE" envDefault:"100"`
	BatchTimeoutMS          int           `env:"BATCH_TIMEOUT_MS" envDefault:"1000"`
	CircuitBreakerThreshold int           `env:"CIRCUIT_BREAKER_THRESHOLD" envDefault:"5"`
	CircuitBreakerResetSecs int           `env:"CIRCUIT_BREAKER_RESET_SECS" envDefault:"30"`
	DLQMaxSize              int           `env:"DLQ_MAX_SIZE" envDefault:"10000"`
	DedupWindowSecs         int           `env:"DEDUP_WINDOW_SECS" envDefault:"60"`

	// Anomaly detector (C7)
	AnomalyThreshold float64       `env:"ANOMALY_THRESHOLD" envDefault:"3.0"`
	CriticalThreshold float64      `env:"CRITICAL_THRESHOLD" envDefault:"5.0"`
	WindowSizeSec    int           `env:"WINDOW_SIZE_SEC" envDefault:"300"`
	MinSamples       int           `env:"MIN_SAMPLES" envDefault:"30"`
	CooldownSecs     int           `env:"COOLDOWN_SECS" envDefault:"60"`
	IdleRetireHours  int           `env:"IDLE_RETIRE_HOURS" envDefault:"24"`

	// Correlation engine (C8)
	CorrelationWindowSecs int     `env:"CORRELATION_WINDOW_SECS" envDefault:"3600"`
	CorrelationRadiusKM   float64 `env:"CORRELATION_RADIUS_KM" envDefault:"100"`
}

// Validate is the hook for invariants that struct tags alone can't express.
// It performs no checks and always returns nil.
func (c *Config) Validate() error {
	return nil
}

// Overrides holds CLI flag values that take priority over environment
// variables, mirroring the teacher's CLI-flags-beat-env precedence.
type Overrides struct {
	EnvFile     string
	HTTPAddr    string
	LogLevel    string
	DatabaseURL string
	RedisURL    string
}

// HotRetention is HotRetentionDays as a time.Duration.
func (c *Config) HotRetention() time.Duration {
	return time.Duration(c.HotRetentionDays) * 24 * time.Hour
}

// WarmRetention is WarmRetentionDays as a time.Duration.
func (c *Config) WarmRetention() time.Duration {
	return time.Duration(c.WarmRetentionDays) * 24 * time.Hour
}

// BatchTimeout is BatchTimeoutMS as a time.Duration.
func (c *Config) BatchTimeout() time.Duration {
	return time.Duration(c.BatchTimeoutMS) * time.Millisecond
}

// CircuitBreakerReset is CircuitBreakerResetSecs as a time.Duration.
func (c *Config) CircuitBreakerReset() time.Duration {
	return time.Duration(c.CircuitBreakerResetSecs) * time.Second
}

// DedupWindow is DedupWindowSecs as a time.Duration.
func (c *Config) DedupWindow() time.Duration {
	return time.Duration(c.DedupWindowSecs) * time.Second
}

// Cooldown is CooldownSecs as a time.Duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownSecs) * time.Second
}

// IdleRetire is IdleRetireHours as a time.Duration.
func (c *Config) IdleRetire() time.Duration {
	return time.Duration(c.IdleRetireHours) * time.Hour
}

// CorrelationWindow is CorrelationWindowSecs as a time.Duration.
func (c *Config) CorrelationWindow() time.Duration {
	return time.Duration(c.CorrelationWindowSecs) * time.Second
}

// Load reads configuration from a .env file, environment variables, and CLI
// overrides. Priority: CLI flags > environment variables > .env file >
// struct defaults.
func Load(overrides Overrides) (*Config, error) {
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}
	if overrides.RedisURL != "" {
		cfg.RedisURL = overrides.RedisURL
	}

	if !cfg.AuthEnabled {
		cfg.AuthToken = ""
		cfg.WriteToken = ""
	}

	return cfg, nil
}
