package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"netsim-sweep/internal/config"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List builtin sweeps",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tPOINTS\tDESCRIPTION")
		for _, name := range config.PresetNames() {
			cfg, err := config.Preset(name)
			if err != nil {
				return err
			}
			points, err := cfg.Points()
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\n", name, len(points), cfg.Description)
		}
		return tw.Flush()
	},
}
