// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for vodoo. Each subcommand
// resolves the connection settings, opens one client and runs a single
// operation against the Odoo server, printing the result as JSON.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vodoo/cli/internal/logging"
	"vodoo/cli/pkg/odooerr"
)

var (
	instanceName string
	verbose      bool

	flagURL      string
	flagDatabase string
	flagUsername string
	flagProtocol string
	flagTimeout  float64
	flagRetries  int

	logger = zap.NewNop()
	// serverHost names the server in failure messages once it is known.
	serverHost string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "vodoo",
	Short: "Talk to an Odoo server over JSON-RPC or JSON-2",
	Long: `vodoo runs record operations against an Odoo server. It detects whether the
server offers the JSON-2 API (Odoo 19+) or only legacy JSON-RPC and uses the
right protocol transparently.

Connection settings come from ~/.config/vodoo/config.yaml, instance profiles,
ODOO_* environment variables and flags, in increasing order of precedence.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(verbose || logging.Verbose())
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the CLI application and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if odooerr.KindOf(err) != "" {
			logging.PresentFailure(err, serverHost)
		} else {
			fmt.Fprintln(os.Stderr, logging.PresentError("Error", err))
		}
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&instanceName, "instance", "i", "", "Instance profile to use (default: VODOO_INSTANCE or default-instance file)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&flagURL, "url", "", "Server URL, e.g. https://mycompany.odoo.com")
	pf.StringVar(&flagDatabase, "database", "", "Database name")
	pf.StringVar(&flagUsername, "username", "", "Login")
	pf.StringVar(&flagProtocol, "protocol", "", "Force a protocol: auto, legacy or direct")
	pf.Float64Var(&flagTimeout, "timeout", 0, "Per-request timeout in seconds")
	pf.IntVar(&flagRetries, "retries", 0, "Retries for transient failures (0 disables)")
}
