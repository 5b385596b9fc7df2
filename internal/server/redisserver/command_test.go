package redisserver

import (
	"bufio"
	"bytes"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/nishanthrs/redis-from-scratch/internal/storage/memory"
)

// testConn wraps a Conn whose writes land in a buffer we can inspect.
type testConn struct {
	*Conn
	output *bytes.Buffer
	server net.Conn
	client net.Conn
}

func newTestConn(t *testing.T) *testConn {
	t.Helper()
	server, client := net.Pipe()
	output := &bytes.Buffer{}

	tc := &testConn{
		output: output,
		server: server,
		client: client,
	}
	tc.Conn = &Conn{
		ID:      "test-conn",
		netConn: server,
		br:      bufio.NewReader(server),
		bw:      bufio.NewWriter(output),
	}
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return tc
}

func (tc *testConn) Output() string {
	tc.bw.Flush()
	out := tc.output.String()
	tc.output.Reset()
	return out
}

// fakeClock mirrors the store test helper so dispatcher tests can
// control expiry.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func tokens(args ...string) [][]byte {
	out := make([][]byte, 0, len(args))
	for _, a := range args {
		out = append(out, []byte(a))
	}
	return out
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		tokens   []string
		wantCmd  Command
		wantArgs int
		wantErr  bool
	}{
		{name: "PING", tokens: []string{"PING"}, wantCmd: CmdPing},
		{name: "lowercase ping", tokens: []string{"ping"}, wantCmd: CmdPing},
		{name: "ECHO", tokens: []string{"ECHO", "hey"}, wantCmd: CmdEcho, wantArgs: 1},
		{name: "GET", tokens: []string{"get", "k"}, wantCmd: CmdGet, wantArgs: 1},
		{name: "SET with options", tokens: []string{"SET", "k", "v", "PX", "100"}, wantCmd: CmdSet, wantArgs: 4},
		{name: "unknown", tokens: []string{"FLUSHALL"}, wantErr: true},
		{name: "empty", tokens: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseCommand(tokens(tt.tokens...))
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if req.Cmd != tt.wantCmd {
				t.Errorf("Cmd = %v, want %v", req.Cmd, tt.wantCmd)
			}
			if len(req.Args) != tt.wantArgs {
				t.Errorf("len(Args) = %d, want %d", len(req.Args), tt.wantArgs)
			}
		})
	}
}

func TestParseCommandUnknownName(t *testing.T) {
	_, err := ParseCommand(tokens("foobar"))

	var unknown *UnknownCommandError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want UnknownCommandError", err)
	}
	if unknown.Name != "FOOBAR" {
		t.Errorf("Name = %q, want FOOBAR (case-normalized)", unknown.Name)
	}
}

func newTestHandler(clock *fakeClock) *CommandHandler {
	opts := []memory.Option{}
	if clock != nil {
		opts = append(opts, memory.WithClock(clock.Now))
	}
	return NewCommandHandler(memory.New(opts...), nil, nil, 0)
}

func TestHandlePing(t *testing.T) {
	h := newTestHandler(nil)
	tc := newTestConn(t)

	h.Handle(tc.Conn, tokens("PING"))
	if got := tc.Output(); got != "+PONG\r\n" {
		t.Errorf("PING reply = %q, want +PONG", got)
	}

	// PONG regardless of prior cache state.
	h.Handle(tc.Conn, tokens("SET", "k", "v"))
	tc.Output()
	h.Handle(tc.Conn, tokens("PING"))
	if got := tc.Output(); got != "+PONG\r\n" {
		t.Errorf("PING reply after SET = %q, want +PONG", got)
	}
}

func TestHandleEcho(t *testing.T) {
	h := newTestHandler(nil)
	tc := newTestConn(t)

	h.Handle(tc.Conn, tokens("ECHO", "Hello World"))
	if got := tc.Output(); got != "+Hello World\r\n" {
		t.Errorf("ECHO reply = %q", got)
	}
}

func TestHandleEchoArity(t *testing.T) {
	h := newTestHandler(nil)
	tc := newTestConn(t)

	for _, args := range [][][]byte{tokens("ECHO"), tokens("ECHO", "a", "b")} {
		h.Handle(tc.Conn, args)
		got := tc.Output()
		if got != "+ERR wrong number of arguments for 'ECHO' command\r\n" {
			t.Errorf("ECHO arity reply = %q", got)
		}
	}
}

func TestHandleSetGetRoundTrip(t *testing.T) {
	h := newTestHandler(nil)
	tc := newTestConn(t)

	h.Handle(tc.Conn, tokens("SET", "mykey", "myval"))
	if got := tc.Output(); got != "+OK\r\n" {
		t.Fatalf("SET reply = %q, want +OK", got)
	}

	h.Handle(tc.Conn, tokens("GET", "mykey"))
	if got := tc.Output(); got != "+myval\r\n" {
		t.Errorf("GET reply = %q, want +myval", got)
	}
}

func TestHandleGetMiss(t *testing.T) {
	h := newTestHandler(nil)
	tc := newTestConn(t)

	h.Handle(tc.Conn, tokens("GET", "never-written"))
	if got := tc.Output(); got != "$-1\r\n" {
		t.Errorf("GET miss reply = %q, want $-1", got)
	}
}

func TestHandleSetWithExpiry(t *testing.T) {
	clock := newFakeClock()
	h := newTestHandler(clock)
	tc := newTestConn(t)

	h.Handle(tc.Conn, tokens("SET", "k", "v", "PX", "100"))
	if got := tc.Output(); got != "+OK\r\n" {
		t.Fatalf("SET PX reply = %q", got)
	}

	h.Handle(tc.Conn, tokens("GET", "k"))
	if got := tc.Output(); got != "+v\r\n" {
		t.Errorf("GET before expiry = %q", got)
	}

	clock.Advance(101 * time.Millisecond)
	h.Handle(tc.Conn, tokens("GET", "k"))
	if got := tc.Output(); got != "$-1\r\n" {
		t.Errorf("GET after expiry = %q, want $-1", got)
	}
}

func TestHandleSetPxZero(t *testing.T) {
	clock := newFakeClock()
	h := newTestHandler(clock)
	tc := newTestConn(t)

	h.Handle(tc.Conn, tokens("SET", "k", "v", "PX", "0"))
	tc.Output()

	clock.Advance(time.Millisecond)
	h.Handle(tc.Conn, tokens("GET", "k"))
	if got := tc.Output(); got != "$-1\r\n" {
		t.Errorf("GET after PX 0 = %q, want $-1", got)
	}
}

func TestHandleSetClearsExpiry(t *testing.T) {
	clock := newFakeClock()
	h := newTestHandler(clock)
	tc := newTestConn(t)

	h.Handle(tc.Conn, tokens("SET", "k", "v1", "PX", "100000"))
	tc.Output()
	h.Handle(tc.Conn, tokens("SET", "k", "v2"))
	tc.Output()

	clock.Advance(200 * time.Second)
	h.Handle(tc.Conn, tokens("GET", "k"))
	if got := tc.Output(); got != "+v2\r\n" {
		t.Errorf("GET = %q, want +v2 (expiry cleared by plain SET)", got)
	}
}

func TestHandleSetValidation(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		want   string
	}{
		{
			name: "too few arguments",
			args: []string{"SET", "k"},
			want: "+ERR wrong number of arguments for 'SET' command\r\n",
		},
		{
			name: "unsupported option",
			args: []string{"SET", "k", "v", "EX", "10"},
			want: "+ERR unsupported option 'EX'\r\n",
		},
		{
			name: "PX without value",
			args: []string{"SET", "k", "v", "PX"},
			want: "+ERR missing argument for 'PX' option\r\n",
		},
		{
			name: "PX not an integer",
			args: []string{"SET", "k", "v", "PX", "soon"},
			want: "+ERR value is not an integer or out of range\r\n",
		},
		{
			name: "PX negative",
			args: []string{"SET", "k", "v", "PX", "-5"},
			want: "+ERR value is not an integer or out of range\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(nil)
			tc := newTestConn(t)

			h.Handle(tc.Conn, tokens(tt.args...))
			if got := tc.Output(); got != tt.want {
				t.Errorf("reply = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHandleUnknownCommand(t *testing.T) {
	h := newTestHandler(nil)
	tc := newTestConn(t)

	h.Handle(tc.Conn, tokens("FLUSHALL"))
	if got := tc.Output(); got != "+ERR unknown command 'FLUSHALL'\r\n" {
		t.Errorf("reply = %q", got)
	}

	// The connection stays usable after an unknown command.
	h.Handle(tc.Conn, tokens("PING"))
	if got := tc.Output(); got != "+PONG\r\n" {
		t.Errorf("PING after unknown command = %q", got)
	}
}

func TestHandleValidationKeepsStoreIntact(t *testing.T) {
	h := newTestHandler(nil)
	tc := newTestConn(t)

	h.Handle(tc.Conn, tokens("SET", "k", "v"))
	tc.Output()
	h.Handle(tc.Conn, tokens("SET", "k", "other", "EX", "10"))
	tc.Output()

	h.Handle(tc.Conn, tokens("GET", "k"))
	if got := tc.Output(); got != "+v\r\n" {
		t.Errorf("GET = %q; rejected SET must not modify the store", got)
	}
}

func TestHandleRateLimit(t *testing.T) {
	h := NewCommandHandler(memory.New(), nil, nil, 1)
	tc := newTestConn(t)

	// Burst of 1: the first command passes, the second is throttled.
	h.Handle(tc.Conn, tokens("PING"))
	if got := tc.Output(); got != "+PONG\r\n" {
		t.Fatalf("first reply = %q", got)
	}

	h.Handle(tc.Conn, tokens("PING"))
	if got := tc.Output(); got != "-ERR rate limit exceeded\r\n" {
		t.Errorf("throttled reply = %q", got)
	}
}
