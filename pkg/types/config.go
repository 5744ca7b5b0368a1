package types

import "time"

// ServerConfig holds settings for the FHIR server connection.
type ServerConfig struct {
	// BaseURL is the FHIR base endpoint (e.g. "http://hapi.fhir.org/baseR4").
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// Timeout is the HTTP request timeout (default 200s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxRetries bounds retries on HTTP 429 (0 uses the default of 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// BearerToken is sent as an Authorization header when set. It is
	// normally loaded from .secrets/fhir-bearer-token, never from the config file.
	BearerToken string `json:"-" yaml:"-" mapstructure:"-"`
}

// SearchConfig holds settings for the name search.
type SearchConfig struct {
	// PageLimit caps pages fetched per term; 0 or less fetches all pages.
	PageLimit int `json:"page_limit" yaml:"page_limit" mapstructure:"page_limit"`

	// NoCache sends Cache-Control: no-cache on every search.
	NoCache bool `json:"no_cache" yaml:"no_cache" mapstructure:"no_cache"`

	// IgnoreAccents makes family-name matching accent-insensitive.
	IgnoreAccents bool `json:"ignore_accents" yaml:"ignore_accents" mapstructure:"ignore_accents"`
}

// StoreConfig holds settings for the SQLite match store.
type StoreConfig struct {
	// Path is the database file; empty disables the store.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// Config groups all configuration sections.
type Config struct {
	Server ServerConfig `json:"server" yaml:"server" mapstructure:"server"`
	Search SearchConfig `json:"search" yaml:"search" mapstructure:"search"`
	Store  StoreConfig  `json:"store" yaml:"store" mapstructure:"store"`
	Log    LogConfig    `json:"log" yaml:"log" mapstructure:"log"`
}

// LogConfig selects the log level ("debug", "info", "warn", "error").
type LogConfig struct {
	Level string `json:"level" yaml:"level" mapstructure:"level"`
}
