package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type BrokerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ClientID       string        `yaml:"client_id"`
	Topics         []string      `yaml:"topics"`
	QoS            byte          `yaml:"qos"`
	KeepAlive      time.Duration `yaml:"keepalive"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// Reconnect backoff
	BackoffBase time.Duration `yaml:"backoff_base"`
	BackoffMax  time.Duration `yaml:"backoff_max"`
}

type Config struct {
	HTTPPort string `yaml:"http_port"`
	GRPCPort string `yaml:"grpc_port"`

	Broker BrokerConfig `yaml:"broker"`

	HistorySize     int           `yaml:"history_size"`
	EventBuffer     int           `yaml:"event_buffer"`
	MonitorInterval time.Duration `yaml:"monitor_interval"`
	LogLevel        string        `yaml:"log_level"`
}

func Default() Config {
	return Config{
		HTTPPort: ":5000",
		GRPCPort: ":50051",
		Broker: BrokerConfig{
			Host:           "test.mosquitto.org",
			Port:           1883,
			Topics:         []string{"data/Raspy", "data/ESP32"},
			KeepAlive:      60 * time.Second,
			ConnectTimeout: 10 * time.Second,
			BackoffBase:    1 * time.Second,
			BackoffMax:     60 * time.Second,
		},
		HistorySize: 50,
		EventBuffer: 256,
		LogLevel:    "info",
	}
}

// Load builds the config from defaults, then the YAML file named by
// HERMES_CONFIG (if any), then HERMES_* environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("HERMES_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if cfg.Broker.ClientID == "" {
		cfg.Broker.ClientID = "hermes-bridge-" + uuid.NewString()[:8]
	}

	return cfg, cfg.Validate()
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var errs []error

	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("HERMES_HTTP_PORT", &cfg.HTTPPort)
	// Railway and similar platforms hand out the port this way
	if port := os.Getenv("PORT"); port != "" {
		cfg.HTTPPort = ":" + port
	}
	str("HERMES_GRPC_PORT", &cfg.GRPCPort)

	str("HERMES_BROKER_HOST", &cfg.Broker.Host)
	num("HERMES_BROKER_PORT", &cfg.Broker.Port)
	str("HERMES_CLIENT_ID", &cfg.Broker.ClientID)
	if v := os.Getenv("HERMES_TOPICS"); v != "" {
		cfg.Broker.Topics = splitList(v)
	}
	if v := os.Getenv("HERMES_QOS"); v != "" {
		q, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			errs = append(errs, fmt.Errorf("HERMES_QOS: %w", err))
		} else {
			cfg.Broker.QoS = byte(q)
		}
	}
	dur("HERMES_KEEPALIVE", &cfg.Broker.KeepAlive)
	dur("HERMES_CONNECT_TIMEOUT", &cfg.Broker.ConnectTimeout)
	dur("HERMES_BACKOFF_BASE", &cfg.Broker.BackoffBase)
	dur("HERMES_BACKOFF_MAX", &cfg.Broker.BackoffMax)

	num("HERMES_HISTORY_SIZE", &cfg.HistorySize)
	num("HERMES_EVENT_BUFFER", &cfg.EventBuffer)
	dur("HERMES_MONITOR_INTERVAL", &cfg.MonitorInterval)
	str("HERMES_LOG_LEVEL", &cfg.LogLevel)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c Config) Validate() error {
	var errs []error

	if c.Broker.Host == "" {
		errs = append(errs, errors.New("broker host is required"))
	}
	if c.Broker.Port < 1 || c.Broker.Port > 65535 {
		errs = append(errs, fmt.Errorf("broker port %d out of range", c.Broker.Port))
	}
	if len(c.Broker.Topics) == 0 {
		errs = append(errs, errors.New("at least one topic is required"))
	}
	seen := make(map[string]bool, len(c.Broker.Topics))
	for _, t := range c.Broker.Topics {
		if strings.ContainsAny(t, "+#") {
			errs = append(errs, fmt.Errorf("topic %q: wildcards are not allowed", t))
		}
		if seen[t] {
			errs = append(errs, fmt.Errorf("topic %q listed twice", t))
		}
		seen[t] = true
	}
	if c.Broker.QoS > 2 {
		errs = append(errs, fmt.Errorf("qos %d out of range", c.Broker.QoS))
	}
	if c.Broker.KeepAlive <= 0 {
		errs = append(errs, errors.New("keepalive must be positive"))
	}
	if c.Broker.BackoffBase <= 0 || c.Broker.BackoffMax < c.Broker.BackoffBase {
		errs = append(errs, fmt.Errorf("invalid backoff %s..%s", c.Broker.BackoffBase, c.Broker.BackoffMax))
	}
	if c.HistorySize < 1 {
		errs = append(errs, fmt.Errorf("history size %d must be at least 1", c.HistorySize))
	}
	if c.EventBuffer < 1 {
		errs = append(errs, fmt.Errorf("event buffer %d must be at least 1", c.EventBuffer))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// BrokerURL is the paho server URI, e.g. tcp://test.mosquitto.org:1883.
func (b BrokerConfig) BrokerURL() string {
	return "tcp://" + net.JoinHostPort(b.Host, strconv.Itoa(b.Port))
}

func (c Config) SlogLevel() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
