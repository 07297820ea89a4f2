package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/canteen/pkg/relaystream"
	"github.com/spf13/pflag"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// Tail subscribes to the relay's gRPC stream and prints frames like Watch.
func Tail(ctx context.Context, args []string, config ConfigReader, out io.Writer, logger apt.Logger) error {
	var addr string
	var count int
	var types []string

	flagSet := pflag.NewFlagSet("tail", pflag.ContinueOnError)
	flagSet.StringVar(&addr, "addr", "", "relay gRPC address (overrides relay.grpc.addr)")
	flagSet.IntVar(&count, "count", 0, "stop after this many frames (0 = forever)")
	flagSet.StringSliceVar(&types, "type", nil, "only stream these message types")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	addr = grpcAddr(addr, config)

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("cannot create gRPC client for %s: %w", addr, err)
	}
	defer conn.Close()

	return tailStream(ctx, conn, &relaystream.SubscribeRequest{Types: types}, count, out, logger)
}

// grpcAddr picks the --addr flag, then relay.grpc.addr, then the relay's
// default stream address.
func grpcAddr(flag string, config ConfigReader) string {
	if flag != "" {
		return flag
	}
	return config.GetStringOrDef("relay.grpc.addr", relaystream.DefaultAddr)
}

func tailStream(ctx context.Context, conn grpc.ClientConnInterface, req *relaystream.SubscribeRequest, count int, out io.Writer, logger apt.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub, err := relaystream.Subscribe(ctx, conn, req)
	if err != nil {
		return err
	}
	logger.Debug("subscribed to relay stream", "types", req.Types)

	printed := 0
	for {
		env, err := sub.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
				return nil
			}
			return fmt.Errorf("relay stream failed: %w", err)
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
