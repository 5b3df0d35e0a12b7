package main

import (
	"github.com/spf13/cobra"
	"github.com/vitwit/htlcbridge/types"
	"github.com/vitwit/htlcbridge/utils"
)

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <hex>",
		Short: "Parse a 32-byte transfer id or hash lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := types.ParseTransferID(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]string{"transferId": id.String()})
		},
	}
}

func newAddressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "address <hex-key>",
		Short: "Print the EVM address of a private key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := utils.AddressFromHexKey(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]string{"address": addr.Hex()})
		},
	}
}
