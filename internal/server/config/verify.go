package config

import (
	"errors"
	"fmt"
	"os"
)

var validLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validFormats = map[string]bool{
	"json": true,
	"text": true,
}

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		return errors.New("metrics.addr is required when metrics are enabled")
	}
	return verifyLog(&cfg.Log)
}

func verifyServer(cfg *ServerSection) error {
	if cfg.Addr == "" {
		return errors.New("server.addr is required")
	}

	if cfg.TLSEnabled {
		if cfg.TLSAddr == "" {
			return errors.New("server.tls_addr is required when TLS is enabled")
		}
		for _, f := range []struct{ name, path string }{
			{"server.tls_cert_file", cfg.TLSCertFile},
			{"server.tls_key_file", cfg.TLSKeyFile},
		} {
			if f.path == "" {
				return fmt.Errorf("%s is required when TLS is enabled", f.name)
			}
			if _, err := os.Stat(f.path); err != nil {
				return fmt.Errorf("%s: %w", f.name, err)
			}
		}
	}

	if cfg.ReadTimeout < 0 || cfg.WriteTimeout < 0 || cfg.IdleTimeout < 0 {
		return errors.New("server timeouts must not be negative")
	}
	if cfg.RateLimit < 0 {
		return errors.New("server.rate_limit must not be negative")
	}

	return nil
}

func verifyLog(cfg *LogSection) error {
	if !validLevels[cfg.Level] {
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	if !validFormats[cfg.Format] {
		return fmt.Errorf("log.format %q is not one of json, text", cfg.Format)
	}
	return nil
}
