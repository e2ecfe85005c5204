// Package config loads the optional, application-layer configuration for
// the cmd/httpserver façade (SPEC_FULL.md §2.3). The library itself
// (package httpserver) never reads the environment — Server is always
// configurable purely in code, per spec.md §6 ("Environment variables /
// CLI: None at the library layer").
package config

import "github.com/kelseyhightower/envconfig"

// Config holds the listen address and the Stream-level limits an embedding
// application might want to tune from its environment.
type Config struct {
	Address        string `envconfig:"ADDRESS" default:"0.0.0.0"`
	Port           int    `envconfig:"PORT" default:"8080"`
	MaxHeaderBytes int64  `envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load populates a Config from environment variables prefixed HTTPSERVER_,
// e.g. HTTPSERVER_PORT, via kelseyhightower/envconfig (SPEC_FULL.md §2.3).
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("httpserver", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
