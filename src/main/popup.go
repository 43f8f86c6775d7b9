package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"textlens/src/clipboard"
	"textlens/src/config"
	"textlens/src/handshake"
	"textlens/src/messages"
	"textlens/src/presenter"
	"textlens/src/runtimeinit"
	"textlens/src/wsbridge"
)

type popupOptions struct {
	start  bool
	clear  bool
	copy   bool
	noWait bool
}

func newPopupCmd(root *rootOptions) *cobra.Command {
	opts := &popupOptions{}
	cmd := &cobra.Command{
		Use:   "popup",
		Short: "Show the current result of a running resident, or act on it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPopup(cmd.Context(), cmd.OutOrStdout(), *root, *opts, nil)
		},
	}
	cmd.Flags().BoolVar(&opts.start, "start", false, "Start a new selection")
	cmd.Flags().BoolVar(&opts.clear, "clear", false, "Clear the current result")
	cmd.Flags().BoolVar(&opts.copy, "copy", false, "Copy the current result to the clipboard")
	cmd.Flags().BoolVar(&opts.noWait, "no-wait", false, "Read the state once instead of waiting for processing to finish")
	cmd.MarkFlagsMutuallyExclusive("start", "clear", "copy")
	return cmd
}

// remoteInjector cannot start pages in another process; it only reports.
type remoteInjector struct{}

func (remoteInjector) Inject(_ context.Context, target string) error {
	return fmt.Errorf("%s is not running in the resident process", target)
}

func runPopup(ctx context.Context, out io.Writer, root rootOptions, opts popupOptions, clip clipboard.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.LoadWithOptions(root.loadOptions())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	store, err := runtimeinit.OpenStore(cfg)
	if err != nil {
		return err
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	policy := handshake.DefaultPolicy
	policy.Attempts = cfg.ReadinessAttempts

	// A previous popup may still be unregistering under the same name.
	var client *wsbridge.Client
	err = handshake.Retry(ctx, policy, func(ctx context.Context) error {
		c, err := wsbridge.Dial(ctx, "ws://"+cfg.BridgeAddr, messages.ContextPopup)
		client = c
		return err
	})
	if err != nil {
		return fmt.Errorf("is `textlens serve` running? %w", err)
	}
	defer client.Close()

	if clip == nil {
		clip = &clipboard.System{}
	}

	p := &presenter.Popup{
		Requester: client,
		Store:     store,
		Clipboard: clip,
		Injector:  remoteInjector{},
		Policy:    policy,
		Page:      messages.PageContext(1),
		Interval:  cfg.PollInterval,
	}

	switch {
	case opts.start:
		err = p.StartSelection(ctx)
	case opts.clear:
		err = p.Clear(ctx)
	case opts.copy:
		err = p.Copy(ctx)
	case opts.noWait:
		_, err = p.Refresh(ctx)
	default:
		_, err = p.Open(ctx)
	}
	fmt.Fprintln(out, presenter.RenderPopup(p.View()))
	return err
}
