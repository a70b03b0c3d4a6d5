package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/backsnote/backsnote/api/internal/core/domain"
	"github.com/backsnote/backsnote/api/internal/infrastructure/crypto"
)

func (c *commandContext) envelope(cmd *cobra.Command) *crypto.Envelope {
	key := c.keyFlag
	if key == "" {
		key = os.Getenv("ENCRYPTION_KEY")
	}
	logger := c.logger(cmd)
	return crypto.NewEnvelope(crypto.NewKeyCache(key, logger), logger)
}

// readInput returns the single argument if given, otherwise stdin minus one trailing newline.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSuffix(string(data), "\n"), nil
}

func newEncryptCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt [plaintext]",
		Short: "Seal plaintext into an iv:ciphertext envelope",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			sealed, err := ctx.envelope(cmd).Encrypt(cmd.Context(), input)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sealed)
			return nil
		},
	}
}

func newDecryptCommand(ctx *commandContext) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "decrypt [envelope]",
		Short: "Open an envelope; undecryptable input is echoed back unchanged",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			result := ctx.envelope(cmd).Open(cmd.Context(), input)

			fmt.Fprintln(cmd.OutOrStdout(), result.Content)
			if result.Reason != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "status: %s (%s)\n", result.Status, result.Reason)
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "status: %s\n", result.Status)
			}

			if strict && result.Status == domain.PassthroughLegacy {
				return errors.New("input was not decrypted")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when the input passes through undecrypted")
	return cmd
}

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [text]",
		Short: "Report whether text looks like an encryption envelope",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			if crypto.IsEncrypted(input) {
				fmt.Fprintln(cmd.OutOrStdout(), "encrypted")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "plaintext")
			}
			return nil
		},
	}
}
