package redisserver

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/nishanthrs/redis-from-scratch/internal/telemetry/logger"
	"github.com/nishanthrs/redis-from-scratch/internal/telemetry/metric"
	"github.com/nishanthrs/redis-from-scratch/pkg/cmap"
)

// Config holds the server configuration.
type Config struct {
	// PlainEnabled enables the plaintext port.
	PlainEnabled bool
	// PlainAddress is the address for the plaintext port.
	PlainAddress string
	// TLSEnabled enables the TLS port.
	TLSEnabled bool
	// TLSAddress is the address for the TLS port.
	TLSAddress string
	// TLSConfig is the TLS configuration (required if TLSEnabled is true).
	TLSConfig *tls.Config

	// ReadTimeout bounds reading one command once its first byte arrived.
	// Zero disables the deadline: a connection may block in a read
	// indefinitely, which matches the protocol's contract of having no
	// cancellation signal besides the peer closing.
	ReadTimeout time.Duration
	// WriteTimeout bounds writing one response. Zero disables it.
	WriteTimeout time.Duration
	// IdleTimeout bounds waiting for the next command. Zero disables it.
	IdleTimeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		PlainEnabled: true,
		PlainAddress: "127.0.0.1:6379",
		TLSEnabled:   false,
		TLSAddress:   "127.0.0.1:6380",
	}
}

// Server accepts client connections and runs one session loop per
// connection. The store behind the handler is the only state shared
// between sessions.
type Server struct {
	cfg     *Config
	handler *CommandHandler
	logger  logger.Logger
	metrics *metric.Metrics

	plainLn net.Listener
	tlsLn   net.Listener
	conns   *cmap.Map[string, *Conn]
	running atomic.Bool
	wg      sync.WaitGroup
}

// Conn represents a single client connection.
type Conn struct {
	// ID is a ULID assigned at accept time, used for log correlation.
	ID string

	netConn net.Conn
	br      *bufio.Reader
	bw      *bufio.Writer

	closed atomic.Bool
}

func newConn(c net.Conn) *Conn {
	return &Conn{
		ID:      ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String(),
		netConn: c,
		br:      bufio.NewReader(c),
		bw:      bufio.NewWriter(c),
	}
}

// Close closes the underlying connection once.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.netConn.Close()
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.netConn.RemoteAddr()
}

// New creates a server dispatching to handler. metrics may be nil.
func New(cfg *Config, handler *CommandHandler, log logger.Logger, metrics *metric.Metrics) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logger.Default()
	}

	return &Server{
		cfg:     cfg,
		handler: handler,
		logger:  log,
		metrics: metrics,
		conns:   cmap.New[string, *Conn](),
	}
}

// Start opens the configured listeners and begins accepting. It returns
// once the listeners are running; accept loops run in the background.
func (s *Server) Start(ctx context.Context) error {
	if !s.cfg.PlainEnabled && !s.cfg.TLSEnabled {
		s.logger.Info("server disabled (both plain and TLS ports are disabled)")
		return nil
	}

	s.running.Store(true)

	if s.cfg.PlainEnabled {
		ln, err := net.Listen("tcp", s.cfg.PlainAddress)
		if err != nil {
			return err
		}
		s.plainLn = ln
		s.logger.Info("listening", "address", ln.Addr().String(), "tls", false)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.acceptLoop(ctx, ln); err != nil && s.running.Load() {
				s.logger.Error("accept loop failed", "error", err)
			}
		}()
	}

	if s.cfg.TLSEnabled {
		if s.cfg.TLSConfig == nil {
			return errors.New("redisserver: TLS enabled without TLS config")
		}
		ln, err := tls.Listen("tcp", s.cfg.TLSAddress, s.cfg.TLSConfig)
		if err != nil {
			return err
		}
		s.tlsLn = ln
		s.logger.Info("listening", "address", ln.Addr().String(), "tls", true)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.acceptLoop(ctx, ln); err != nil && s.running.Load() {
				s.logger.Error("tls accept loop failed", "error", err)
			}
		}()
	}

	return nil
}

// Addr returns the bound address of the plaintext listener, or nil.
func (s *Server) Addr() net.Addr {
	if s.plainLn == nil {
		return nil
	}
	return s.plainLn.Addr()
}

// Shutdown stops accepting, closes open connections and waits for all
// session loops to exit, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	var firstErr error
	if s.plainLn != nil {
		if err := s.plainLn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.tlsLn != nil {
		if err := s.tlsLn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.conns.Range(func(_ string, c *Conn) bool {
		_ = c.Close()
		return true
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return firstErr
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, newConn(c))
		}()
	}
}

// serveConn is the session loop: one frame read, one dispatch, one
// response write per iteration, until the peer closes or a protocol
// violation makes the stream unusable.
func (s *Server) serveConn(ctx context.Context, c *Conn) {
	s.conns.Set(c.ID, c)
	if s.metrics != nil {
		s.metrics.ConnectionsTotal.Inc()
		s.metrics.ConnectionsActive.Inc()
	}
	log := s.logger.With("conn_id", c.ID, "remote", c.RemoteAddr().String())
	log.Debug("connection opened")

	defer func() {
		_ = c.Close()
		s.conns.Delete(c.ID)
		if s.metrics != nil {
			s.metrics.ConnectionsActive.Dec()
		}
		log.Debug("connection closed")
	}()

	_ = ctx // closing the listener or connection is the only cancellation signal

	for {
		if err := s.setReadDeadline(c, s.cfg.IdleTimeout); err != nil {
			return
		}
		if _, err := c.br.Peek(1); err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug("read failed", "error", err)
			}
			return
		}

		// First byte arrived: tighten to the per-command read deadline.
		if err := s.setReadDeadline(c, s.cfg.ReadTimeout); err != nil {
			return
		}

		tokens, err := ReadCommand(c.br)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			if errors.Is(err, ErrLimitExceeded) {
				log.Warn("protocol limit exceeded", "error", err)
				s.replyAndClose(c, "ERR protocol limit exceeded")
				return
			}
			log.Debug("malformed frame", "error", err)
			s.replyAndClose(c, "ERR protocol error: "+err.Error())
			return
		}

		if len(tokens) == 0 {
			// Empty frame ("*0" or a blank inline line); nothing to dispatch.
			_ = s.setWriteDeadline(c)
			_ = WriteError(c.bw, "ERR empty command")
			_ = c.bw.Flush()
			continue
		}

		s.handler.Handle(c, tokens)

		if err := s.setWriteDeadline(c); err != nil {
			return
		}
		if err := c.bw.Flush(); err != nil {
			log.Debug("write failed", "error", err)
			return
		}
	}
}

func (s *Server) replyAndClose(c *Conn, msg string) {
	_ = s.setWriteDeadline(c)
	_ = WriteError(c.bw, msg)
	_ = c.bw.Flush()
}

func (s *Server) setReadDeadline(c *Conn, d time.Duration) error {
	if d <= 0 {
		return c.netConn.SetReadDeadline(time.Time{})
	}
	return c.netConn.SetReadDeadline(time.Now().Add(d))
}

func (s *Server) setWriteDeadline(c *Conn) error {
	if s.cfg.WriteTimeout <= 0 {
		return c.netConn.SetWriteDeadline(time.Time{})
	}
	return c.netConn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
}
