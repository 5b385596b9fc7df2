package redisserver

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/nishanthrs/redis-from-scratch/internal/storage/memory"
	"github.com/nishanthrs/redis-from-scratch/internal/telemetry/logger"
	"github.com/nishanthrs/redis-from-scratch/internal/telemetry/metric"
)

// maxExpiry is the largest accepted PX duration.
const maxExpiry = time.Duration(1<<63 - 1)

// Command identifies one of the supported request commands.
type Command int

const (
	CmdPing Command = iota
	CmdEcho
	CmdGet
	CmdSet
)

// String returns the wire name of the command.
func (c Command) String() string {
	switch c {
	case CmdPing:
		return "PING"
	case CmdEcho:
		return "ECHO"
	case CmdGet:
		return "GET"
	case CmdSet:
		return "SET"
	default:
		return "UNKNOWN"
	}
}

// Request is one decoded command with its argument tokens, produced per
// frame and never retained across requests.
type Request struct {
	Cmd Command

	// Args holds the tokens after the command name, verbatim.
	Args [][]byte
}

// UnknownCommandError reports a command name outside the supported set.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return "unknown command '" + e.Name + "'"
}

// ParseCommand maps the raw tokens of one frame onto the closed command
// grammar. The command name is case-normalized before matching.
func ParseCommand(tokens [][]byte) (Request, error) {
	if len(tokens) == 0 {
		return Request{}, errors.New("empty command")
	}

	name := normalizeCommandName(tokens[0])
	args := tokens[1:]

	switch name {
	case "PING":
		return Request{Cmd: CmdPing, Args: args}, nil
	case "ECHO":
		return Request{Cmd: CmdEcho, Args: args}, nil
	case "GET":
		return Request{Cmd: CmdGet, Args: args}, nil
	case "SET":
		return Request{Cmd: CmdSet, Args: args}, nil
	default:
		return Request{}, &UnknownCommandError{Name: name}
	}
}

// CommandHandler dispatches parsed commands against the store.
//
// There is no cross-request state: every frame is handled independently,
// and validation failures reply to the client without closing the
// connection.
type CommandHandler struct {
	store   *memory.Store
	logger  logger.Logger
	metrics *metric.Metrics
	limiter *ipRateLimiter
}

// NewCommandHandler creates a CommandHandler. metrics may be nil;
// rateLimit <= 0 disables per-IP rate limiting.
func NewCommandHandler(store *memory.Store, log logger.Logger, metrics *metric.Metrics, rateLimit int) *CommandHandler {
	if log == nil {
		log = logger.Default()
	}

	var rl *ipRateLimiter
	if rateLimit > 0 {
		rl = newIPRateLimiter(rateLimit)
	}

	return &CommandHandler{
		store:   store,
		logger:  log,
		metrics: metrics,
		limiter: rl,
	}
}

// Handle processes the raw tokens of one frame and writes exactly one
// response to the connection's buffered writer. The caller flushes.
//
// Error replies reuse the success simple-string framing ("+<message>")
// rather than the protocol's error type; clients of the observed wire
// behavior depend on that.
func (h *CommandHandler) Handle(conn *Conn, tokens [][]byte) {
	start := time.Now()

	req, err := ParseCommand(tokens)
	if err != nil {
		var unknown *UnknownCommandError
		if errors.As(err, &unknown) {
			h.logger.Debug("unknown command", "name", unknown.Name, "remote", conn.RemoteAddr())
			_ = WriteSimpleString(conn.bw, "ERR "+unknown.Error())
			h.observe("UNKNOWN", "error", start)
			return
		}
		_ = WriteSimpleString(conn.bw, "ERR "+err.Error())
		h.observe("UNKNOWN", "error", start)
		return
	}

	if h.limiter != nil && !h.limiter.Allow(conn.RemoteAddr().String()) {
		_ = WriteError(conn.bw, "ERR rate limit exceeded")
		h.observe(req.Cmd.String(), "throttled", start)
		return
	}

	var status string
	switch req.Cmd {
	case CmdPing:
		status = h.handlePing(conn)
	case CmdEcho:
		status = h.handleEcho(conn, req.Args)
	case CmdGet:
		status = h.handleGet(conn, req.Args)
	case CmdSet:
		status = h.handleSet(conn, req.Args)
	}

	h.observe(req.Cmd.String(), status, start)
}

func (h *CommandHandler) observe(command, status string, start time.Time) {
	if h.metrics == nil {
		return
	}
	h.metrics.CommandsTotal.WithLabelValues(command, status).Inc()
	h.metrics.CommandDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
}

// PING
func (h *CommandHandler) handlePing(conn *Conn) string {
	_ = WriteSimpleString(conn.bw, "PONG")
	return "ok"
}

// ECHO <text>
func (h *CommandHandler) handleEcho(conn *Conn, args [][]byte) string {
	if len(args) != 1 {
		_ = WriteSimpleString(conn.bw, "ERR wrong number of arguments for 'ECHO' command")
		return "error"
	}
	_ = WriteSimpleString(conn.bw, string(args[0]))
	return "ok"
}

// GET <key>
func (h *CommandHandler) handleGet(conn *Conn, args [][]byte) string {
	if len(args) != 1 {
		_ = WriteSimpleString(conn.bw, "ERR wrong number of arguments for 'GET' command")
		return "error"
	}

	value, ok := h.store.Get(string(args[0]))
	if !ok {
		_ = WriteNullBulk(conn.bw)
		return "miss"
	}
	_ = WriteSimpleString(conn.bw, value)
	return "ok"
}

// SET <key> <value> [PX <milliseconds>]
func (h *CommandHandler) handleSet(conn *Conn, args [][]byte) string {
	if len(args) < 2 {
		_ = WriteSimpleString(conn.bw, "ERR wrong number of arguments for 'SET' command")
		return "error"
	}

	key := string(args[0])
	value := string(args[1])

	var (
		ttl    time.Duration
		hasTTL bool
	)
	for i := 2; i < len(args); i += 2 {
		opt := strings.ToUpper(string(args[i]))
		if opt != "PX" {
			_ = WriteSimpleString(conn.bw, "ERR unsupported option '"+opt+"'")
			return "error"
		}
		if i+1 >= len(args) {
			_ = WriteSimpleString(conn.bw, "ERR missing argument for 'PX' option")
			return "error"
		}
		// Expiry durations are unsigned milliseconds. The upper bound
		// keeps the converted time.Duration from overflowing.
		ms, err := strconv.ParseUint(string(args[i+1]), 10, 63)
		if err != nil || ms > uint64(maxExpiry/time.Millisecond) {
			_ = WriteSimpleString(conn.bw, "ERR value is not an integer or out of range")
			return "error"
		}
		ttl = time.Duration(ms) * time.Millisecond
		hasTTL = true
	}

	if hasTTL {
		h.store.SetWithTTL(key, value, ttl)
	} else {
		h.store.Set(key, value)
	}
	_ = WriteSimpleString(conn.bw, "OK")
	return "ok"
}
