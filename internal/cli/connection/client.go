// Package connection implements the client side of the server's wire
// protocol for redis-cli.
package connection

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

// ErrNil marks a null bulk reply, returned when a key does not exist.
var ErrNil = errors.New("nil reply")

// Client is a TCP client speaking the server's protocol. It is not
// safe for concurrent use.
type Client struct {
	addr    string
	timeout time.Duration
	conn    net.Conn
	br      *bufio.Reader
	bw      *bufio.Writer
}

// NewClient creates a client for the given server address.
func NewClient(addr string, timeout time.Duration) *Client {
	return &Client{addr: addr, timeout: timeout}
}

// Connect dials the server.
func (c *Client) Connect() error {
	conn, err := net.DialTimeout("tcp", c.addr, c.timeout)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", c.addr, err)
	}
	c.conn = conn
	c.br = bufio.NewReader(conn)
	c.bw = bufio.NewWriter(conn)
	return nil
}

// Close closes the connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Do sends one command as an array of bulk strings and returns the
// reply rendered as a string. A null bulk reply yields ErrNil, and an
// error reply from the server yields an error carrying its message.
func (c *Client) Do(args ...string) (string, error) {
	if c.conn == nil {
		if err := c.Connect(); err != nil {
			return "", err
		}
	}
	if len(args) == 0 {
		return "", errors.New("empty command")
	}

	if c.timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return "", err
		}
	}

	if err := c.writeCommand(args); err != nil {
		return "", fmt.Errorf("send command: %w", err)
	}
	return c.readReply()
}

func (c *Client) writeCommand(args []string) error {
	fmt.Fprintf(c.bw, "*%d\r\n", len(args))
	for _, a := range args {
		fmt.Fprintf(c.bw, "$%d\r\n", len(a))
		c.bw.WriteString(a)
		c.bw.WriteString("\r\n")
	}
	return c.bw.Flush()
}

func (c *Client) readReply() (string, error) {
	line, err := c.readLine()
	if err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}
	if len(line) == 0 {
		return "", errors.New("empty reply line")
	}

	switch line[0] {
	case '+':
		return line[1:], nil
	case '-':
		return "", errors.New(line[1:])
	case ':':
		return line[1:], nil
	case '$':
		n, err := strconv.Atoi(line[1:])
		if err != nil {
			return "", fmt.Errorf("bad bulk length %q", line[1:])
		}
		if n < 0 {
			return "", ErrNil
		}
		buf := make([]byte, n+2)
		if _, err := io.ReadFull(c.br, buf); err != nil {
			return "", fmt.Errorf("read bulk body: %w", err)
		}
		if buf[n] != '\r' || buf[n+1] != '\n' {
			return "", errors.New("bulk reply missing terminator")
		}
		return string(buf[:n]), nil
	default:
		return "", fmt.Errorf("unexpected reply type %q", line[0])
	}
}

func (c *Client) readLine() (string, error) {
	line, err := c.br.ReadString('\n')
	if err != nil {
		return "", err
	}
	if len(line) < 2 || line[len(line)-2] != '\r' {
		return "", errors.New("reply line missing terminator")
	}
	return line[:len(line)-2], nil
}
