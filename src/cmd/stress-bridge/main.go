package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"textlens/src/config"
	"textlens/src/messages"
	"textlens/src/wsbridge"
)

type stressOptions struct {
	n        int
	requests int
	addr     string
	deadline time.Duration
}

type counts struct {
	ok       int32
	conflict int32
	err      int32
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &stressOptions{}
	cmd := newRootCmd(opts, os.Stdout)
	return cmd.Execute()
}

func newRootCmd(opts *stressOptions, out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-bridge",
		Short:         "Stress test the resident's websocket bridge",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.addr == "" {
				opts.addr = config.DefaultBridgeAddr
			}
			c := runWithOptions(*opts)
			fmt.Fprintf(out, "clients=%d ok=%d conflict=%d err=%d\n", opts.n, c.ok, c.conflict, c.err)
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 50, "number of clients to connect")
	cmd.Flags().IntVar(&opts.requests, "requests", 5, "getResult requests per client")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "bridge address (host:port)")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-client timeout")

	return cmd
}

// runWithOptions connects n clients under distinct names and has each poll
// the coordinator. Requests are counted individually.
func runWithOptions(opts stressOptions) counts {
	var (
		wg sync.WaitGroup
		c  counts
	)

	for i := 0; i < opts.n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), opts.deadline)
			defer cancel()

			client, err := wsbridge.Dial(ctx, "ws://"+opts.addr, fmt.Sprintf("stress:%d", i))
			if err != nil {
				if strings.Contains(err.Error(), "409") {
					atomic.AddInt32(&c.conflict, 1)
					return
				}
				atomic.AddInt32(&c.err, 1)
				return
			}
			defer client.Close()

			for j := 0; j < opts.requests; j++ {
				reply, err := client.Request(ctx, messages.ContextBackground, messages.GetResult{})
				if _, ok := reply.(messages.ResultReply); err != nil || !ok {
					atomic.AddInt32(&c.err, 1)
					continue
				}
				atomic.AddInt32(&c.ok, 1)
			}
		}(i)
	}
	wg.Wait()
	return c
}
