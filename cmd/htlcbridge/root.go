package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
	"github.com/vitwit/htlcbridge"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "htlcbridge",
		Short:         "Hash time-locked bridge tooling",
		Version:       htlcbridge.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newSecretCmd(),
		newParseCmd(),
		newAddressCmd(),
		newSimulateCmd(),
	)
	return root
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
