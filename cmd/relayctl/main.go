package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/canteen/cmd/relayctl/internal/commands"
	"github.com/spf13/pflag"
)

const (
	appName    = "relayctl"
	appVersion = "0.1.0"
)

type command func(ctx context.Context, args []string, config commands.ConfigReader, out io.Writer, logger apt.Logger) error

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	config, err := apt.LoadConfig("RELAYCTL", nil)
	if err != nil {
		log.Fatalf("Cannot load config: %v", err)
	}

	logLevel := config.GetStringOrDef("log.level", "info")
	logger := apt.NewLogger(logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name := os.Args[1]
	args := os.Args[2:]

	var run command
	switch name {
	case "order":
		run = commands.Order
	case "status":
		run = commands.Status
	case "sale":
		run = commands.Sale
	case "watch":
		run = commands.Watch
	case "tail":
		run = commands.Tail

	case "version":
		fmt.Printf("%s version %s\n", appName, appVersion)
		return

	case "help", "-h", "--help":
		printUsage()
		return

	default:
		fmt.Printf("Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}

	if err := run(ctx, args, config, os.Stdout, logger); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("%s %s failed: %v", appName, name, err)
	}
}

func printUsage() {
	fmt.Printf(`%s - canteen relay command line

Usage:
  %s <command> [options]

Commands:
  order     Send a NEW_ORDER (--item name[:qty] repeatable, --receipt, --note, --status)
  status    Send an UPDATE_ORDER_STATUS (--id, --status new|in_progress|done)
  sale      Send a NEW_SALE (--waiter, --total, --receipt, --created-at)
  watch     Print every relay frame as a JSON line (--count, --type)
  tail      Same as watch, over the relay gRPC stream (--addr)
  version   Print version information
  help      Show this help message

Connection:
  --url     relay socket URL; otherwise discovered from --page on port 8080

Environment Variables:
  RELAYCTL_RELAY_URL        Relay socket URL
  RELAYCTL_PAGE_URL         Page URL used for discovery (default: http://localhost)
  RELAYCTL_RELAY_GRPC_ADDR  Relay gRPC address for tail (default: localhost:50051)
  RELAYCTL_LOG_LEVEL        Log level: debug, info, warn, error (default: info)

Examples:
  %s order --receipt 1042 --item "Milanesa:2" --item "Agua" --note "sin sal"
  %s status --id 3f1c... --status done
  %s sale --receipt 1042 --waiter Lucia --total 5400.50
  %s watch --type NEW_ORDER --type UPDATE_ORDER_STATUS

`, appName, appName, appName, appName, appName, appName)
}
