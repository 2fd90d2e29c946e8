// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"vodoo/cli/pkg/client"
	"vodoo/cli/pkg/fields"
)

var createCmd = &cobra.Command{
	Use:   "create MODEL FIELD=VALUE...",
	Short: "Create a record",
	Long: `Create a record from field assignments.

Values are typed automatically: 42 is an integer, 1.5 a float, true/false a
boolean, and quotes force a string. Prefix JSON with json:, e.g.
  vodoo create res.partner name=Acme is_company=true 'category_id=json:[[6,0,[3]]]'`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		vals, err := fields.Values(args[1:])
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			id, err := c.CreateOne(ctx, args[0], vals)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), id)
		})
	},
}

var writeCmd = &cobra.Command{
	Use:   "write MODEL ID FIELD=VALUE...",
	Short: "Update a record",
	Long: `Update a record from field assignments. Besides field=value, numeric
fields accept field+=n, field-=n, field*=n and field/=n, applied to the
current value.`,
	Args: cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args[1:2])
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			vals, err := fields.Resolve(ctx, c, args[0], ids[0], args[2:])
			if err != nil {
				return err
			}
			ok, err := c.Write(ctx, args[0], ids, vals)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ok)
		})
	},
}

var unlinkYes bool

var unlinkCmd = &cobra.Command{
	Use:     "unlink MODEL ID...",
	Aliases: []string{"delete"},
	Short:   "Delete records",
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args[1:])
		if err != nil {
			return err
		}
		if !unlinkYes {
			ok, _ := pterm.DefaultInteractiveConfirm.
				WithDefaultText(fmt.Sprintf("Delete %d record(s) from %s?", len(ids), args[0])).
				Show()
			if !ok {
				pterm.Info.Println("Nothing deleted.")
				return nil
			}
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			ok, err := c.Unlink(ctx, args[0], ids)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ok)
		})
	},
}

func init() {
	unlinkCmd.Flags().BoolVarP(&unlinkYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(createCmd, writeCmd, unlinkCmd)
}
