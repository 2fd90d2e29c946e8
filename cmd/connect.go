// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vodoo/cli/internal/config"
	"vodoo/cli/internal/httperrors"
	"vodoo/cli/internal/terminal"
	"vodoo/cli/pkg/client"
)

// flagSettings returns the settings given on the command line. Only flags
// the user actually set take part in layering.
func flagSettings(cmd *cobra.Command) config.Settings {
	var s config.Settings
	flags := cmd.Flags()
	s.URL = flagURL
	s.Database = flagDatabase
	s.Username = flagUsername
	s.Protocol = flagProtocol
	if flags.Changed("timeout") {
		t := flagTimeout
		s.Timeout = &t
	}
	if flags.Changed("retries") {
		r := flagRetries
		s.RetryCount = &r
	}
	return s
}

// withClient resolves the configuration, connects and runs fn. The client
// is closed when fn returns. A spinner runs on interactive terminals while
// the protocol is detected.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *client.Client) error) error {
	res, err := config.Loader{}.Load(instanceName, flagSettings(cmd))
	if err != nil {
		return err
	}
	d := res.Descriptor
	serverHost = httperrors.ExtractHostFromURL(d.URL)
	logger.Debug("resolved configuration",
		zap.String("instance", res.Instance),
		zap.Strings("sources", res.Sources),
		zap.Stringer("server", d))

	stop := func() {}
	if terminal.IsInteractive(os.Stderr) && !verbose {
		stop = startInlineSpinner(os.Stderr, "Connecting to "+serverHost+"...", terminal.Width(os.Stderr), spinnerFrames, 100*time.Millisecond)
	}
	defer stop()

	ctx := cmd.Context()
	return client.With(ctx, d, func(c *client.Client) error {
		stop()
		return fn(ctx, c)
	}, client.WithLogger(logger), client.WithUserAgent("vodoo/"+Version))
}
