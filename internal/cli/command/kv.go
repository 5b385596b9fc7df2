package command

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/nishanthrs/redis-from-scratch/internal/cli/connection"
)

// PingCommand returns the ping command.
func PingCommand() *cli.Command {
	return &cli.Command{
		Name:   "ping",
		Usage:  "Check that the server is alive",
		Action: runPing,
	}
}

func runPing(c *cli.Context) error {
	client := dial(c)
	defer client.Close()

	reply, err := client.Do("PING")
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}

// EchoCommand returns the echo command.
func EchoCommand() *cli.Command {
	return &cli.Command{
		Name:      "echo",
		Usage:     "Send a message and print the server's copy of it",
		ArgsUsage: "MESSAGE",
		Action:    runEcho,
	}
}

func runEcho(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("echo requires exactly one argument")
	}

	client := dial(c)
	defer client.Close()

	reply, err := client.Do("ECHO", c.Args().Get(0))
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}

// GetCommand returns the get command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Fetch the value stored under a key",
		ArgsUsage: "KEY",
		Action:    runGet,
	}
}

func runGet(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("get requires exactly one argument")
	}

	client := dial(c)
	defer client.Close()

	reply, err := client.Do("GET", c.Args().Get(0))
	if errors.Is(err, connection.ErrNil) {
		fmt.Println("(nil)")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}

// SetCommand returns the set command.
func SetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Store a value under a key",
		ArgsUsage: "KEY VALUE",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:  "px",
				Usage: "expire the key after this many milliseconds",
			},
		},
		Action: runSet,
	}
}

func runSet(c *cli.Context) error {
	if c.NArg() != 2 {
		return errors.New("set requires exactly two arguments")
	}

	client := dial(c)
	defer client.Close()

	args := []string{"SET", c.Args().Get(0), c.Args().Get(1)}
	if c.IsSet("px") {
		px := c.Int64("px")
		if px < 0 {
			return errors.New("px must be non-negative")
		}
		args = append(args, "PX", strconv.FormatInt(px, 10))
	}

	reply, err := client.Do(args...)
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}
