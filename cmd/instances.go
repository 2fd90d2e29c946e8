// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"sort"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"vodoo/cli/internal/config"
)

var instancesCmd = &cobra.Command{
	Use:   "instances",
	Short: "List instance profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var l config.Loader
		profiles, err := l.Profiles()
		if err != nil {
			return err
		}
		current, _, err := l.ResolveInstance(instanceName)
		if err != nil {
			return err
		}
		if len(profiles) == 0 {
			pterm.Info.Println("No instance profiles found. Create ~/.config/vodoo/instances/<name>.yaml to add one.")
			return nil
		}
		names := make([]string, 0, len(profiles))
		for n := range profiles {
			names = append(names, n)
		}
		sort.Strings(names)

		rows := [][]string{{"", "Instance", "Files"}}
		for _, n := range names {
			mark := ""
			if n == current {
				mark = "*"
			}
			rows = append(rows, []string{mark, n, strings.Join(profiles[n], ", ")})
		}
		return pterm.DefaultTable.WithHasHeader().WithWriter(cmd.OutOrStdout()).WithData(rows).Render()
	},
}

var useProject bool

var useCmd = &cobra.Command{
	Use:   "use INSTANCE",
	Short: "Set the default instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.Loader{}.WriteDefaultInstance(args[0], useProject)
		if err != nil {
			return err
		}
		pterm.Success.Printfln("Default instance is now %q (%s)", strings.TrimSpace(args[0]), path)
		return nil
	},
}

func init() {
	useCmd.Flags().BoolVar(&useProject, "project", false, "Write to ./.vodoo instead of the global config directory")
	rootCmd.AddCommand(instancesCmd, useCmd)
}
