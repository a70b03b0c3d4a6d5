package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/backsnote/backsnote/api/internal/infrastructure/crypto"
)

func newKeygenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a fresh 256-bit ENCRYPTION_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := crypto.GenerateEncryptionKey()
			if err != nil {
				return fmt.Errorf("generate key: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}
