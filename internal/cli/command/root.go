// Package command provides CLI command definitions for redis-cli.
//
// It uses urfave/cli/v2 for command parsing. Each command opens one
// connection to the server, sends its request, and prints the reply.
package command

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/nishanthrs/redis-from-scratch/internal/cli/connection"
	"github.com/nishanthrs/redis-from-scratch/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "redis-cli",
		Usage:   "command-line client for the key-value server",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			PingCommand(),
			EchoCommand(),
			GetCommand(),
			SetCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "server address",
			EnvVars: []string{"REDIS_CLI_SERVER"},
			Value:   "127.0.0.1:6379",
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Aliases: []string{"t"},
			Usage:   "per-command timeout",
			Value:   5 * time.Second,
		},
	}
}

// dial builds a client from the global flags.
func dial(c *cli.Context) *connection.Client {
	return connection.NewClient(c.String("server"), c.Duration("timeout"))
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
