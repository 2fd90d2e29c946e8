// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vodoo/cli/pkg/client"
	"vodoo/cli/pkg/connection"
	"vodoo/cli/pkg/odootest"
)

func commandFor(t *testing.T, srv *odootest.Server) *cobra.Command {
	t.Helper()
	cfg := srv.Config()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("VODOO_INSTANCE", "")
	t.Setenv("ODOO_URL", srv.URL)
	t.Setenv("ODOO_DATABASE", cfg.Database)
	t.Setenv("ODOO_USERNAME", cfg.Login)
	t.Setenv("ODOO_PASSWORD", cfg.Password)
	t.Setenv("ODOO_RETRY_COUNT", "0")

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	return cmd
}

func TestWithClientClosesAfterRun(t *testing.T) {
	srv := odootest.New(t, odootest.Config{LegacyOnly: true})
	cmd := commandFor(t, srv)

	var kept *client.Client
	err := withClient(cmd, func(ctx context.Context, c *client.Client) error {
		kept = c
		assert.Equal(t, connection.ProtocolLegacy, c.Protocol())
		_, err := c.Search(ctx, "res.users", nil, client.SearchOptions{})
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, kept)

	_, err = kept.Search(context.Background(), "res.users", nil, client.SearchOptions{})
	assert.True(t, client.IsClosed(err), "got %v", err)
}

func TestWithClientReturnsRunError(t *testing.T) {
	srv := odootest.New(t, odootest.Config{})
	cmd := commandFor(t, srv)

	boom := errors.New("boom")
	err := withClient(cmd, func(context.Context, *client.Client) error { return boom })
	assert.ErrorIs(t, err, boom)
}
