package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"textlens/src/config"
	"textlens/src/credential"
	"textlens/src/logutil"
	"textlens/src/runtimeinit"
)

type setKeyOptions struct {
	remove bool
}

func newSetKeyCmd(root *rootOptions) *cobra.Command {
	opts := &setKeyOptions{}
	cmd := &cobra.Command{
		Use:   "set-key [key]",
		Short: "Store or delete the analysis API key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ""
			if len(args) == 1 {
				key = args[0]
			}
			return runSetKey(cmd.Context(), cmd.OutOrStdout(), *root, *opts, key)
		},
	}
	cmd.Flags().BoolVar(&opts.remove, "delete", false, "Delete the stored key")
	return cmd
}

func runSetKey(ctx context.Context, out io.Writer, root rootOptions, opts setKeyOptions, key string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	key = strings.TrimSpace(key)
	if !opts.remove && key == "" {
		return errors.New("a key is required unless --delete is given")
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

	if opts.remove {
		if err := store.Delete(ctx, credential.Key); err != nil {
			return fmt.Errorf("failed to delete key: %w", err)
		}
		fmt.Fprintln(out, "API key deleted")
		return nil
	}

	if err := store.Set(ctx, credential.Key, key); err != nil {
		return fmt.Errorf("failed to save key: %w", err)
	}
	fmt.Fprintf(out, "API key saved (%s)\n", logutil.RedactKey(key))
	return nil
}
