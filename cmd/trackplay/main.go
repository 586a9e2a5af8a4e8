// Command trackplay replays recorded positions or follows live entity
// channels headlessly.
//
// Usage:
//
//	trackplay replay --file positions.json [--speed 4]
//	trackplay replay --entity 42 --from 2024-03-01T12:00:00Z
//	trackplay live --ids 42,43 [--transport nats]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

const appName = "trackplay"

// Version is set at build time.
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	var err error
	switch strings.ToLower(args[0]) {
	case "replay":
		err = replayCommand(ctx, args[1:], stdout, stderr)
	case "live":
		err = liveCommand(ctx, args[1:], stdin, stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "%s %s\n", appName, Version)
	case "help", "-h", "--help":
		usage(stdout)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		usage(stderr)
		return 2
	}

	if err != nil {
		if errors.Is(err, errUsage) {
			return 2
		}
		fmt.Fprintf(stderr, "%s: %v\n", appName, err)
		return 1
	}
	return 0
}

var errUsage = errors.New("usage")

func usage(w io.Writer) {
	fmt.Fprintf(w, `Usage: %s <command> [flags]

Commands:
  replay   replay recorded positions, printing notifications as JSON lines
  live     follow live entity channels on the configured transport
  version  print the version

Run '%s <command> --help' for command flags.
`, appName, appName)
}
