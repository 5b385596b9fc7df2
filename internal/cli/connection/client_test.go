package connection

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"testing"
	"time"
)

// stubServer accepts one connection and answers each received line
// group with the next canned reply.
func stubServer(t *testing.T, replies ...string) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		br := bufio.NewReader(conn)
		for _, reply := range replies {
			// Consume one command frame: *N followed by N bulk strings.
			header, err := br.ReadString('\n')
			if err != nil {
				return
			}
			n := 0
			if strings.HasPrefix(header, "*") {
				for i := 1; i < len(header)-2; i++ {
					n = n*10 + int(header[i]-'0')
				}
			}
			for i := 0; i < n*2; i++ {
				if _, err := br.ReadString('\n'); err != nil {
					return
				}
			}
			conn.Write([]byte(reply))
		}
	}()

	return ln.Addr().String()
}

func TestClientSimpleStringReply(t *testing.T) {
	addr := stubServer(t, "+PONG\r\n")

	c := NewClient(addr, 2*time.Second)
	defer c.Close()

	got, err := c.Do("PING")
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != "PONG" {
		t.Errorf("reply = %q, want PONG", got)
	}
}

func TestClientBulkStringReply(t *testing.T) {
	addr := stubServer(t, "$5\r\nhello\r\n")

	c := NewClient(addr, 2*time.Second)
	defer c.Close()

	got, err := c.Do("ECHO", "hello")
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != "hello" {
		t.Errorf("reply = %q, want hello", got)
	}
}

func TestClientNullBulkReply(t *testing.T) {
	addr := stubServer(t, "$-1\r\n")

	c := NewClient(addr, 2*time.Second)
	defer c.Close()

	_, err := c.Do("GET", "absent")
	if !errors.Is(err, ErrNil) {
		t.Errorf("err = %v, want ErrNil", err)
	}
}

func TestClientErrorReply(t *testing.T) {
	addr := stubServer(t, "-ERR protocol error: bad frame\r\n")

	c := NewClient(addr, 2*time.Second)
	defer c.Close()

	_, err := c.Do("GET", "k")
	if err == nil {
		t.Fatal("expected error reply")
	}
	if !strings.Contains(err.Error(), "protocol error") {
		t.Errorf("err = %v, want server message", err)
	}
}

func TestClientIntegerReply(t *testing.T) {
	addr := stubServer(t, ":42\r\n")

	c := NewClient(addr, 2*time.Second)
	defer c.Close()

	got, err := c.Do("DBSIZE")
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != "42" {
		t.Errorf("reply = %q, want 42", got)
	}
}

func TestClientSequentialCommands(t *testing.T) {
	addr := stubServer(t, "+OK\r\n", "+bar\r\n")

	c := NewClient(addr, 2*time.Second)
	defer c.Close()

	if got, err := c.Do("SET", "foo", "bar"); err != nil || got != "OK" {
		t.Fatalf("SET reply = %q, err = %v", got, err)
	}
	if got, err := c.Do("GET", "foo"); err != nil || got != "bar" {
		t.Fatalf("GET reply = %q, err = %v", got, err)
	}
}

func TestClientEmptyCommand(t *testing.T) {
	addr := stubServer(t)

	c := NewClient(addr, 2*time.Second)
	defer c.Close()

	if _, err := c.Do(); err == nil {
		t.Error("Do with no args should fail")
	}
}

func TestClientConnectFailure(t *testing.T) {
	// Port 1 is almost certainly closed.
	c := NewClient("127.0.0.1:1", 500*time.Millisecond)
	if _, err := c.Do("PING"); err == nil {
		t.Error("expected connection error")
	}
}
