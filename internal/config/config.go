// Package config loads the snippet server configuration.
//
// Precedence, lowest to highest:
//  1. Defaults (Default)
//  2. An optional YAML file
//  3. Environment variables
//
// Example file:
//
//	port: 8080
//	public_url: https://snippets.example.com
//	log_level: info
//	store:
//	  grace: 5s
//	  shards: 64
//	  max_expires_in: 8760h
//	limits:
//	  max_name_bytes: 1024
//	  max_snippet_bytes: 1048576
//	  max_body_bytes: 2097152
//	extensions:
//	  likes: true
//	  edits: true
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	// Port is the HTTP listen port.
	Port int `yaml:"port"`

	// PublicURL is the externally visible origin used in snippet locators,
	// e.g. "https://snippets.example.com". Empty means "derive it from
	// each creation request's scheme and Host".
	PublicURL string `yaml:"public_url"`

	// LogLevel is one of debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	Store      StoreConfig      `yaml:"store"`
	Limits     LimitsConfig     `yaml:"limits"`
	Extensions ExtensionsConfig `yaml:"extensions"`
}

// StoreConfig tunes the in-memory snippet store.
type StoreConfig struct {
	// Grace is how far every fetch or like pushes expiry forward.
	Grace time.Duration `yaml:"grace"`

	// Shards is the number of independently locked partitions.
	// Must be a power of two.
	Shards int `yaml:"shards"`

	// MaxExpiresIn caps expires_in on create and edit.
	MaxExpiresIn time.Duration `yaml:"max_expires_in"`
}

// LimitsConfig bounds request sizes.
type LimitsConfig struct {
	MaxNameBytes    int   `yaml:"max_name_bytes"`
	MaxSnippetBytes int   `yaml:"max_snippet_bytes"`
	MaxBodyBytes    int64 `yaml:"max_body_bytes"`
}

// ExtensionsConfig switches the optional routes on and off.
type ExtensionsConfig struct {
	Likes bool `yaml:"likes"`
	Edits bool `yaml:"edits"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:     8080,
		LogLevel: "info",
		Store: StoreConfig{
			Grace:        5 * time.Second,
			Shards:       64,
			MaxExpiresIn: 10 * 365 * 24 * time.Hour,
		},
		Limits: LimitsConfig{
			MaxNameBytes:    1024,
			MaxSnippetBytes: 1 << 20,
			MaxBodyBytes:    2 << 20,
		},
		Extensions: ExtensionsConfig{Likes: true, Edits: true},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from environment variables:
//
//	PORT, PUBLIC_URL, LOG_LEVEL, SNIPPETS_GRACE, SNIPPETS_SHARDS,
//	SNIPPETS_EXTENSIONS (comma-separated subset of "likes,edits", or "none")
func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid PORT %q: %w", v, err)
		}
		c.Port = port
	}
	if v := getenv("PUBLIC_URL"); v != "" {
		c.PublicURL = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := getenv("SNIPPETS_GRACE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid SNIPPETS_GRACE %q: %w", v, err)
		}
		c.Store.Grace = d
	}
	if v := getenv("SNIPPETS_SHARDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid SNIPPETS_SHARDS %q: %w", v, err)
		}
		c.Store.Shards = n
	}
	if v := getenv("SNIPPETS_EXTENSIONS"); v != "" {
		c.Extensions = ExtensionsConfig{}
		for _, ext := range strings.Split(v, ",") {
			switch strings.TrimSpace(ext) {
			case "likes":
				c.Extensions.Likes = true
			case "edits":
				c.Extensions.Edits = true
			case "", "none":
			default:
				return fmt.Errorf("config: unknown extension %q in SNIPPETS_EXTENSIONS", ext)
			}
		}
	}
	return nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log_level %q (must be debug, info, warn or error)", c.LogLevel))
	}
	if c.PublicURL != "" && !strings.HasPrefix(c.PublicURL, "http://") && !strings.HasPrefix(c.PublicURL, "https://") {
		errs = append(errs, fmt.Errorf("public_url %q must start with http:// or https://", c.PublicURL))
	}
	if c.Store.Grace <= 0 {
		errs = append(errs, fmt.Errorf("store.grace must be positive, got %s", c.Store.Grace))
	}
	if c.Store.Shards < 1 || c.Store.Shards&(c.Store.Shards-1) != 0 {
		errs = append(errs, fmt.Errorf("store.shards must be a power of two, got %d", c.Store.Shards))
	}
	if c.Store.MaxExpiresIn <= 0 {
		errs = append(errs, fmt.Errorf("store.max_expires_in must be positive, got %s", c.Store.MaxExpiresIn))
	}
	if c.Limits.MaxNameBytes <= 0 || c.Limits.MaxSnippetBytes <= 0 || c.Limits.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("limits must all be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
