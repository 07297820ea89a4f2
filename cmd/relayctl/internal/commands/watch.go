package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/canteen/pkg/event"
	"github.com/appetiteclub/canteen/pkg/relayclient"
	"github.com/spf13/pflag"
)

// Watch connects as a consumer and prints every frame as one JSON line
// until ctx ends or --count frames were printed. Reconnects are transparent;
// each one starts with fresh snapshots.
func Watch(ctx context.Context, args []string, config ConfigReader, out io.Writer, logger apt.Logger) error {
	var conn RelayConnection
	var count int
	var types []string

	flagSet := pflag.NewFlagSet("watch", pflag.ContinueOnError)
	conn.AddFlags(flagSet)
	flagSet.IntVar(&count, "count", 0, "stop after this many frames (0 = forever)")
	flagSet.StringSliceVar(&types, "type", nil, "only print these message types")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	url, err := conn.Resolve(config)
	if err != nil {
		return err
	}

	client := relayclient.NewClient(relayclient.Config{URL: url}, logger)
	_ = client.Start(ctx)
	defer func() { _ = client.Stop(context.Background()) }()

	printed := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-client.Frames():
			if !ok {
				return nil
			}
			if !wants(types, env.Type) {
				continue
			}
			if err := printEnvelope(out, env); err != nil {
				return err
			}
			printed++
			if count > 0 && printed >= count {
				return nil
			}
		}
	}
}

func wants(types []string, msgType string) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if t == msgType {
			return true
		}
	}
	return false
}

func printEnvelope(out io.Writer, env event.Envelope) error {
	line, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("cannot encode frame: %w", err)
	}
	_, err = fmt.Fprintln(out, string(line))
	return err
}
