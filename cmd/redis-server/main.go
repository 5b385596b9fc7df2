// Package main provides the entry point for redis-server, an
// in-memory key-value server speaking a text protocol over TCP.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/nishanthrs/redis-from-scratch/internal/infra/buildinfo"
	"github.com/nishanthrs/redis-from-scratch/internal/infra/confloader"
	"github.com/nishanthrs/redis-from-scratch/internal/infra/shutdown"
	"github.com/nishanthrs/redis-from-scratch/internal/server/config"
	"github.com/nishanthrs/redis-from-scratch/internal/server/redisserver"
	"github.com/nishanthrs/redis-from-scratch/internal/storage/memory"
	"github.com/nishanthrs/redis-from-scratch/internal/telemetry/logger"
	"github.com/nishanthrs/redis-from-scratch/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("redis-server %s\n", buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	log.Info("starting redis-server",
		"version", buildinfo.Version,
		"commit", buildinfo.Commit,
		"config", *configFile)

	metrics := metric.New()

	store := memory.New(memory.WithExpiredCounter(metrics.KeysExpiredTotal))
	metrics.RegisterKeyCount(func() float64 { return float64(store.Len()) })

	handler := redisserver.NewCommandHandler(store, log, metrics, cfg.Server.RateLimit)

	srvCfg, err := serverConfig(cfg)
	if err != nil {
		return err
	}
	srv := redisserver.New(srvCfg, handler, log, metrics)

	shutdownHandler := shutdown.NewHandler(30*time.Second, log)

	if err := srv.Start(context.Background()); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	log.Info("server listening", "addr", cfg.Server.Addr, "tls", cfg.Server.TLSEnabled)
	shutdownHandler.OnShutdown("tcp server", srv.Shutdown)

	if cfg.Metrics.Enabled {
		metricsSrv := startMetrics(cfg.Metrics.Addr, metrics, log)
		shutdownHandler.OnShutdown("metrics server", metricsSrv.Shutdown)
	}

	if *configFile != "" {
		watcher, err := watchConfig(*configFile, log)
		if err != nil {
			log.Warn("config watcher disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown("config watcher", func(ctx context.Context) error {
				return watcher.Stop()
			})
		}
	}

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from file and environment.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	loader := confloader.NewLoader(opts...)
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogger builds the structured logger and installs it as the
// process default.
func initLogger(cfg *config.ServerConfig) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)
	return log, nil
}

// serverConfig translates the file configuration into the listener
// configuration, loading the TLS key pair when TLS is enabled.
func serverConfig(cfg *config.ServerConfig) (*redisserver.Config, error) {
	srvCfg := redisserver.DefaultConfig()
	srvCfg.PlainAddress = cfg.Server.Addr
	srvCfg.ReadTimeout = cfg.Server.ReadTimeout
	srvCfg.WriteTimeout = cfg.Server.WriteTimeout
	srvCfg.IdleTimeout = cfg.Server.IdleTimeout

	if cfg.Server.TLSEnabled {
		cert, err := tls.LoadX509KeyPair(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load TLS key pair: %w", err)
		}
		srvCfg.TLSEnabled = true
		srvCfg.TLSAddress = cfg.Server.TLSAddr
		srvCfg.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}
	return srvCfg, nil
}

// startMetrics serves the Prometheus endpoint on its own listener.
func startMetrics(addr string, metrics *metric.Metrics, log logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", "error", err)
		}
	}()
	return srv
}

// watchConfig reloads the log level when the configuration file
// changes. Other settings require a restart.
func watchConfig(path string, log logger.Logger) (*confloader.Watcher, error) {
	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := watcher.Watch(path); err != nil {
		watcher.Stop()
		return nil, err
	}

	watcher.OnChange(func(changed string) {
		cfg, err := loadConfig(changed)
		if err != nil {
			log.Warn("ignoring config change", "error", err)
			return
		}
		if cfg.Log.Level != logger.GetLevel() {
			log.Info("log level changed", "level", cfg.Log.Level)
			logger.SetLevel(cfg.Log.Level)
		}
	})
	watcher.StartAsync()
	return watcher, nil
}
