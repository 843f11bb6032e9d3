package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	DBDSN       string `envconfig:"DB_DSN" default:"storefront.db"`
	MediaDir    string `envconfig:"MEDIA_DIR" default:"./web/media"`
	TemplateDir string `envconfig:"TEMPLATE_DIR" default:"./web/templates"`
	LogFile     string `envconfig:"LOG_FILE" default:"./storefront.log"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	SessionIdleTimeout time.Duration `envconfig:"SESSION_IDLE_TIMEOUT" default:"30m"`
	CookieSecure       bool          `envconfig:"COOKIE_SECURE" default:"false"`
	TemplateReload     bool          `envconfig:"TEMPLATE_RELOAD" default:"false"`
	CheckoutMaxRetries int           `envconfig:"CHECKOUT_MAX_RETRIES" default:"3"`

	KafkaBrokers     string        `envconfig:"KAFKA_BROKERS"`
	OrderEventsTopic string        `envconfig:"ORDER_EVENTS_TOPIC" default:"orders.placed"`
	OutboxInterval   time.Duration `envconfig:"OUTBOX_INTERVAL" default:"5s"`
	OutboxBatch      int           `envconfig:"OUTBOX_BATCH" default:"50"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.Warnf("config: could not read .env (continuing): %v", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	logrus.WithFields(logrus.Fields{
		"port":         cfg.Port,
		"db_dsn":       cfg.DBDSN,
		"media_dir":    cfg.MediaDir,
		"log_file":     cfg.LogFile,
		"session_idle": cfg.SessionIdleTimeout.String(),
		"kafka":        cfg.KafkaBrokers != "",
	}).Info("config loaded")
	return cfg, nil
}

func (c Config) validate() error {
	if c.SessionIdleTimeout <= 0 {
		return errors.New("config: SESSION_IDLE_TIMEOUT must be positive")
	}
	if c.CheckoutMaxRetries < 1 {
		return errors.New("config: CHECKOUT_MAX_RETRIES must be at least 1")
	}
	if c.OutboxInterval <= 0 {
		return errors.New("config: OUTBOX_INTERVAL must be positive")
	}
	if c.OutboxBatch < 1 {
		return errors.New("config: OUTBOX_BATCH must be at least 1")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string { return ":" + c.Port }
