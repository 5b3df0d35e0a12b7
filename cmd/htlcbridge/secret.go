package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vitwit/htlcbridge/types"
	"github.com/vitwit/htlcbridge/verification"
)

const hasherFlag = "hasher"

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Generate a secret and its hash lock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			hasher, _ := cmd.Flags().GetString(hasherFlag)

			secret, err := types.RandomPreImage()
			if err != nil {
				return err
			}

			var lock string
			switch hasher {
			case "sha256":
				lock = verification.NewHashLock[types.Hash32](verification.SHA256Hasher{}, secret).String()
			case "keccak256":
				lock = verification.Keccak256Hasher{}.Hash(secret).Hex()
			default:
				return fmt.Errorf("unknown hasher %q", hasher)
			}

			return writeJSON(cmd.OutOrStdout(), map[string]string{
				"hasher":   hasher,
				"secret":   secret.String(),
				"hashLock": lock,
			})
		},
	}
	cmd.Flags().String(hasherFlag, "sha256", "hash function: sha256 or keccak256")
	return cmd
}
