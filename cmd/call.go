// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"vodoo/cli/pkg/client"
)

var (
	callArgs   string
	callKwargs string
)

var callCmd = &cobra.Command{
	Use:   "call MODEL METHOD",
	Short: "Call any model method",
	Long: `Call an arbitrary model method. Positional arguments go in --args as a
JSON list and keyword arguments in --kwargs as a JSON object:

  vodoo call res.partner search_count --args '[[["is_company","=",true]]]'`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		positional, err := parseJSONList("args", callArgs)
		if err != nil {
			return err
		}
		kwargs, err := parseJSONObject("kwargs", callKwargs)
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			res, err := c.Call(ctx, args[0], args[1], positional, kwargs)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		})
	},
}

func init() {
	callCmd.Flags().StringVar(&callArgs, "args", "", "Positional arguments as a JSON list")
	callCmd.Flags().StringVar(&callKwargs, "kwargs", "", "Keyword arguments as a JSON object")
	rootCmd.AddCommand(callCmd)
}
