package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"textlens/src/config"
)

// rootOptions are shared by every subcommand.
type rootOptions struct {
	envPath     string
	storage     string
	storagePath string
	bridgeAddr  string
}

func (o rootOptions) loadOptions() config.LoadOptions {
	return config.LoadOptions{
		EnvPathOverride: o.envPath,
		StorageBackend:  o.storage,
		StoragePath:     o.storagePath,
		BridgeAddr:      o.bridgeAddr,
	}
}

func main() {
	if err := runWithArgs(normalizeLegacyArgs(os.Args)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"textlens"}
	}
	cmd := newRootCmd(&rootOptions{})
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "textlens",
		Short:         "Select a screen region, read its text and analyze it",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.envPath, "env", "", "Path to a .env file")
	cmd.PersistentFlags().StringVar(&opts.storage, "storage", "", "Credential storage backend (file|redis)")
	cmd.PersistentFlags().StringVar(&opts.storagePath, "storage-path", "", "Credential file for the file backend")
	cmd.PersistentFlags().StringVar(&opts.bridgeAddr, "bridge", "", "Bridge address (host:port)")

	cmd.AddCommand(newServeCmd(opts), newPopupCmd(opts), newSetKeyCmd(opts))
	return cmd
}

// normalizeLegacyArgs maps single-dash long flags to their GNU form.
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	long := []string{"env", "storage", "storage-path", "bridge", "no-tray", "start", "clear", "copy", "no-wait", "delete"}
	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range long {
			if arg == "-"+name || strings.HasPrefix(arg, "-"+name+"=") {
				normalized[i] = "-" + arg
				break
			}
		}
	}
	return normalized
}
