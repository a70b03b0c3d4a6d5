package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/backsnote/backsnote/api/internal/infrastructure/crypto"
)

var errPostureFailed = errors.New("security posture audit failed")

func newAuditCommand() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check the deployment environment before launch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "🔍 Running security posture audit...")

			if err := godotenv.Load(envFile); err != nil {
				fmt.Fprintf(out, "⚠️  No %s file found, checking process environment\n", envFile)
			}

			if failed := runAudit(out, os.Getenv); failed {
				fmt.Fprintln(out, "🚨 VERDICT: fix the failures above before deploying.")
				return errPostureFailed
			}
			fmt.Fprintln(out, "🚀 VERDICT: environment is ready.")
			return nil
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Dotenv file to load before auditing")
	return cmd
}

// runAudit prints one line per check and reports whether any check failed.
func runAudit(out io.Writer, getenv func(string) string) bool {
	failed := false
	fail := func(format string, a ...any) {
		fmt.Fprintf(out, "❌ FAIL: "+format+"\n", a...)
		failed = true
	}
	pass := func(msg string) { fmt.Fprintln(out, "✅ PASS: "+msg) }

	if err := crypto.ValidateKey(getenv("ENCRYPTION_KEY")); err != nil {
		fail("%v", err)
	} else {
		pass("ENCRYPTION_KEY is a 256-bit hex key.")
	}

	production := getenv("BACKSNOTE_ENV") != "development"

	dbURL := getenv("DATABASE_URL")
	switch {
	case dbURL == "" && production:
		fail("DATABASE_URL must be set in production.")
	case strings.Contains(dbURL, "dev_password"):
		fail("DATABASE_URL is using default development credentials.")
	case dbURL == "":
		fmt.Fprintln(out, "⚠️  NOTICE: DATABASE_URL unset, notes will live in memory.")
	default:
		pass("DATABASE_URL is configured.")
	}

	origins := getenv("CORS_ALLOWED_ORIGINS")
	if production && (origins == "" || strings.Contains(origins, "*")) {
		fail("CORS_ALLOWED_ORIGINS must list explicit origins in production.")
	} else {
		pass("CORS origins are restricted.")
	}

	if getenv("REDIS_ADDR") == "" {
		fmt.Fprintln(out, "⚠️  NOTICE: REDIS_ADDR unset, the note cache is disabled.")
	}

	return failed
}
