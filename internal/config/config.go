package config

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type Config struct {
	Port              string        `mapstructure:"PORT"`
	PostgresURL       string        `mapstructure:"POSTGRES_URL"`
	JWTSecret         string        `mapstructure:"JWT_SECRET"`
	TokenTTL          time.Duration `mapstructure:"TOKEN_TTL"`
	KafkaBrokers      string        `mapstructure:"KAFKA_BROKERS"`
	OrderEventsTopic  string        `mapstructure:"ORDER_EVENTS_TOPIC"`
	RedisAddr         string        `mapstructure:"REDIS_ADDR"`
	RedisPassword     string        `mapstructure:"REDIS_PASSWORD"`
	LoginRateLimit    int           `mapstructure:"LOGIN_RATE_LIMIT"`
	LoginRateWindow   time.Duration `mapstructure:"LOGIN_RATE_WINDOW"`
	LowStockThreshold int           `mapstructure:"LOW_STOCK_THRESHOLD"`
	OTLPEndpoint      string        `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceVersion    string        `mapstructure:"SERVICE_VERSION"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	MigrationsPath    string        `mapstructure:"MIGRATIONS_PATH"`
}

var defaults = map[string]any{
	"PORT":                        "8080",
	"POSTGRES_URL":                "",
	"JWT_SECRET":                  "",
	"TOKEN_TTL":                   24 * time.Hour,
	"KAFKA_BROKERS":               "",
	"ORDER_EVENTS_TOPIC":          "order.events",
	"REDIS_ADDR":                  "",
	"REDIS_PASSWORD":              "",
	"LOGIN_RATE_LIMIT":            10,
	"LOGIN_RATE_WINDOW":           time.Minute,
	"LOW_STOCK_THRESHOLD":         10,
	"OTEL_EXPORTER_OTLP_ENDPOINT": "",
	"SERVICE_VERSION":             "0.1.0",
	"LOG_LEVEL":                   "info",
	"MIGRATIONS_PATH":             "file://migrations",
}

// Loader reads the configuration from defaults, an optional file named by
// CONFIG_FILE and the environment, in increasing order of precedence.
type Loader struct {
	v *viper.Viper
}

func NewLoader() *Loader {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	return &Loader{v: v}
}

func (l *Loader) Load() (*Config, error) {
	if file := l.v.GetString("CONFIG_FILE"); file != "" && l.v.ConfigFileUsed() == "" {
		l.v.SetConfigFile(file)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WatchLogLevel applies LOG_LEVEL changes made to the config file while the
// process runs. It does nothing when no config file is in use.
func (l *Loader) WatchLogLevel(level *slog.LevelVar, logger *slog.Logger) {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		next := ParseLevel(l.v.GetString("LOG_LEVEL"))
		if next != level.Level() {
			logger.Info("log level changed", "file", e.Name, "level", next.String())
			level.Set(next)
		}
	})
	l.v.WatchConfig()
}

// Validate checks the settings the API server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.PostgresURL == "" {
		errs = append(errs, errors.New("POSTGRES_URL is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.LoginRateLimit <= 0 || c.LoginRateWindow <= 0 {
		errs = append(errs, errors.New("LOGIN_RATE_LIMIT and LOGIN_RATE_WINDOW must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) Brokers() []string {
	if c.KafkaBrokers == "" {
		return nil
	}
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
