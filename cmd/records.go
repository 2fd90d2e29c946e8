// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"vodoo/cli/pkg/client"
)

type searchFlags struct {
	domain string
	fields string
	limit  int
	offset int
	order  string
}

func (f *searchFlags) register(cmd *cobra.Command, withFields bool) {
	cmd.Flags().StringVarP(&f.domain, "domain", "d", "", `Search domain as JSON, e.g. '[["is_company","=",true]]'`)
	cmd.Flags().IntVar(&f.limit, "limit", 0, "Maximum number of records")
	cmd.Flags().IntVar(&f.offset, "offset", 0, "Number of records to skip")
	cmd.Flags().StringVar(&f.order, "order", "", "Sort order, e.g. 'name desc'")
	if withFields {
		cmd.Flags().StringVarP(&f.fields, "fields", "f", "", "Comma-separated fields to return")
	}
}

func (f *searchFlags) options() client.SearchOptions {
	return client.SearchOptions{Limit: f.limit, Offset: f.offset, Order: f.order}
}

var (
	searchOpts     searchFlags
	searchReadOpts searchFlags
	readFields     string
	countDomain    string
	nameLimit      int
)

var searchCmd = &cobra.Command{
	Use:   "search MODEL",
	Short: "List ids of records matching a domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, err := parseDomain(searchOpts.domain)
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			ids, err := c.Search(ctx, args[0], domain, searchOpts.options())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ids)
		})
	},
}

var searchReadCmd = &cobra.Command{
	Use:     "search-read MODEL",
	Aliases: []string{"list"},
	Short:   "Read records matching a domain",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, err := parseDomain(searchReadOpts.domain)
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			recs, err := c.SearchRead(ctx, args[0], domain, splitFields(searchReadOpts.fields), searchReadOpts.options())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), recs)
		})
	},
}

var readCmd = &cobra.Command{
	Use:   "read MODEL ID...",
	Short: "Read records by id",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args[1:])
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			recs, err := c.Read(ctx, args[0], ids, splitFields(readFields))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), recs)
		})
	},
}

var countCmd = &cobra.Command{
	Use:   "count MODEL",
	Short: "Count records matching a domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, err := parseDomain(countDomain)
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			n, err := c.SearchCount(ctx, args[0], domain)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), n)
		})
	},
}

var nameSearchCmd = &cobra.Command{
	Use:   "name-search MODEL NAME",
	Short: "Find records by display name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			pairs, err := c.NameSearch(ctx, args[0], args[1], nil, nameLimit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), pairs)
		})
	},
}

func init() {
	searchOpts.register(searchCmd, false)
	searchReadOpts.register(searchReadCmd, true)
	readCmd.Flags().StringVarP(&readFields, "fields", "f", "", "Comma-separated fields to return")
	countCmd.Flags().StringVarP(&countDomain, "domain", "d", "", "Search domain as JSON")
	nameSearchCmd.Flags().IntVar(&nameLimit, "limit", 0, "Maximum number of matches (default 7)")

	rootCmd.AddCommand(searchCmd, searchReadCmd, readCmd, countCmd, nameSearchCmd)
}
