// Package config loads evtimesel settings from a YAML file, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config captures runtime configuration.
type Config struct {
	EventURL         string        `yaml:"event_url"`
	DataselectURL    string        `yaml:"dataselect_url"`
	Debounce         time.Duration `yaml:"debounce"`
	MinIDLength      int           `yaml:"min_id_length"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	ListenPort       int           `yaml:"listen_port"`
	LogLevel         string        `yaml:"log_level"`
	MetricsNamespace string        `yaml:"metrics_namespace"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		EventURL:         "http://localhost:8080/fdsnws/event/1",
		DataselectURL:    "http://localhost:8080/fdsnws/dataselect/1",
		Debounce:         800 * time.Millisecond,
		MinIDLength:      3,
		RequestTimeout:   15 * time.Second,
		ListenPort:       8484,
		LogLevel:         "info",
		MetricsNamespace: "evtimesel",
	}
}

// Load builds a Config from defaults, the YAML file at path (optional), a .env
// file in the working directory and EVTIMESEL_* environment variables, in that order.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("EVTIMESEL_EVENT_URL"); v != "" {
		c.EventURL = v
	}
	if v := os.Getenv("EVTIMESEL_DATASELECT_URL"); v != "" {
		c.DataselectURL = v
	}
	if v := os.Getenv("EVTIMESEL_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("EVTIMESEL_METRICS_NAMESPACE"); v != "" {
		c.MetricsNamespace = v
	}
	if v := os.Getenv("EVTIMESEL_DEBOUNCE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse EVTIMESEL_DEBOUNCE: %w", err)
		}
		c.Debounce = d
	}
	if v := os.Getenv("EVTIMESEL_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse EVTIMESEL_REQUEST_TIMEOUT: %w", err)
		}
		c.RequestTimeout = d
	}
	if v := os.Getenv("EVTIMESEL_MIN_ID_LENGTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse EVTIMESEL_MIN_ID_LENGTH: %w", err)
		}
		c.MinIDLength = n
	}
	if v := os.Getenv("EVTIMESEL_LISTEN_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse EVTIMESEL_LISTEN_PORT: %w", err)
		}
		c.ListenPort = n
	}
	return nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.EventURL) == "" {
		errs = append(errs, errors.New("event_url is required"))
	}
	if c.Debounce < 0 {
		errs = append(errs, fmt.Errorf("debounce must be >= 0, got %s", c.Debounce))
	}
	if c.MinIDLength < 1 {
		errs = append(errs, fmt.Errorf("min_id_length must be >= 1, got %d", c.MinIDLength))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be > 0, got %s", c.RequestTimeout))
	}
	if c.ListenPort < 0 || c.ListenPort > 65535 {
		errs = append(errs, fmt.Errorf("listen_port out of range: %d", c.ListenPort))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	return errors.Join(errs...)
}
