// Package config defines the server configuration structure.
package config

import "time"

// ServerConfig is the root configuration for redis-server.
type ServerConfig struct {
	Server  ServerSection  `koanf:"server"`
	Metrics MetricsSection `koanf:"metrics"`
	Log     LogSection     `koanf:"log"`
}

// ServerSection configures the listening endpoints and per-connection
// behavior.
type ServerSection struct {
	// Addr is the plaintext listen address.
	Addr string `koanf:"addr"`

	// TLSEnabled enables a TLS listener alongside the plaintext one.
	TLSEnabled bool `koanf:"tls_enabled"`
	// TLSAddr is the TLS listen address.
	TLSAddr string `koanf:"tls_addr"`
	// TLSCertFile is the PEM certificate path (required when TLS is enabled).
	TLSCertFile string `koanf:"tls_cert_file"`
	// TLSKeyFile is the PEM private key path (required when TLS is enabled).
	TLSKeyFile string `koanf:"tls_key_file"`

	// ReadTimeout bounds reading one command. Zero disables it; by
	// default connections may block in a read indefinitely.
	ReadTimeout time.Duration `koanf:"read_timeout"`
	// WriteTimeout bounds writing one response. Zero disables it.
	WriteTimeout time.Duration `koanf:"write_timeout"`
	// IdleTimeout bounds waiting between commands. Zero disables it.
	IdleTimeout time.Duration `koanf:"idle_timeout"`

	// RateLimit is the maximum commands per second per client IP.
	// Zero disables rate limiting.
	RateLimit int `koanf:"rate_limit"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// LogSection configures logging.
type LogSection struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is json or text.
	Format string `koanf:"format"`
}
