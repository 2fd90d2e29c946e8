package cmd

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"vodoo/cli/pkg/client"
)

// whoamiCmd connects with the resolved settings and reports who the server
// thinks we are. It doubles as a connectivity check.
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the server, database and user vodoo connects as",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			d := c.Descriptor()
			rows := [][]string{
				{"Server", d.BaseURL()},
				{"Database", d.Database},
				{"User", d.Username},
				{"Protocol", string(c.Protocol())},
				{"User ID", fmt.Sprint(c.UserID())},
			}
			if d.Insecure() {
				rows = append(rows, []string{"Warning", "connection is not encrypted"})
			}
			return pterm.DefaultTable.WithWriter(cmd.OutOrStdout()).WithData(rows).Render()
		})
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
