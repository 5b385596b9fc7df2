package config

// Default configuration values.
const (
	DefaultAddr        = "127.0.0.1:6379"
	DefaultTLSAddr     = "127.0.0.1:6380"
	DefaultMetricsAddr = "127.0.0.1:9121"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Addr:    DefaultAddr,
			TLSAddr: DefaultTLSAddr,
		},
		Metrics: MetricsSection{
			Enabled: false,
			Addr:    DefaultMetricsAddr,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
