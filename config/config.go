package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "BARSCAN"

// Config holds lookup client and scanner configuration.
type Config struct {
	BaseURL        string        `split_words:"true"`
	APIKey         string        `split_words:"true"`
	Timeout        time.Duration `split_words:"true"`
	UserAgent      string        `split_words:"true"`
	Input          string        `split_words:"true"`
	Symbologies    []string      `split_words:"true"`
	DebounceWindow time.Duration `split_words:"true"`
	DebounceSize   int           `split_words:"true"`
	OutputFile     string        `split_words:"true"`
	OutputFormat   string        `split_words:"true"` // text, json, or csv
	MetricsAddr    string        `split_words:"true"`
	Bell           bool          `split_words:"true"`
	Verbose        bool          `split_words:"true"`
}

// DefaultConfig returns defaults for the UPCitemdb trial endpoint.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:        "https://api.upcitemdb.com/prod/trial",
		Timeout:        10 * time.Second,
		UserAgent:      "go-barcode-lookup/1.0",
		Input:          "-",
		Symbologies:    []string{"qr", "ean13", "ean8", "upca", "code128"},
		DebounceWindow: 2 * time.Second,
		DebounceSize:   128,
		OutputFormat:   "text",
	}
}

// Load applies BARSCAN_* environment overrides on top of DefaultConfig.
func Load() (*Config, error) {
	cfg := DefaultConfig()
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, errors.Wrap(err, "load environment")
	}
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)
	return cfg, nil
}

// LookupURL returns the lookup endpoint derived from BaseURL.
func (c *Config) LookupURL() string {
	return strings.TrimSuffix(c.BaseURL, "/") + "/lookup"
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return errors.Wrap(err, "invalid base URL")
	}
	if parsedURL.Host == "" {
		return errors.New("base URL must include a host")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.Errorf("base URL scheme %q is not http or https", parsedURL.Scheme)
	}

	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.UserAgent == "" {
		return errors.New("user agent cannot be empty")
	}
	if c.Input == "" {
		return errors.New("input cannot be empty")
	}
	if c.DebounceWindow < 0 {
		return errors.New("debounce window cannot be negative")
	}
	if c.DebounceWindow > 0 && c.DebounceSize <= 0 {
		return errors.New("debounce size must be positive when debounce is enabled")
	}
	switch c.OutputFormat {
	case "text", "json", "csv":
	default:
		return errors.New("output format must be text, json, or csv")
	}
	if c.OutputFormat != "text" && c.OutputFile == "" {
		return errors.Errorf("output file is required for %s format", c.OutputFormat)
	}

	return nil
}
