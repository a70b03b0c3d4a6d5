package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

type commandContext struct {
	keyFlag string
	verbose bool
}

func (c *commandContext) logger(cmd *cobra.Command) *slog.Logger {
	if !c.verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "backsnotectl",
		Short:         "Operator tooling for note content encryption",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.keyFlag, "key", "", "Encryption key (hex); defaults to $ENCRYPTION_KEY")
	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Log envelope diagnostics to stderr")

	rootCmd.AddCommand(newKeygenCommand())
	rootCmd.AddCommand(newAuditCommand())
	rootCmd.AddCommand(newInspectCommand())
	rootCmd.AddCommand(newEncryptCommand(ctx))
	rootCmd.AddCommand(newDecryptCommand(ctx))

	return rootCmd
}
