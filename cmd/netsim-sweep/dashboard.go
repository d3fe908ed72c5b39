package main

import (
	"os"

	"github.com/spf13/cobra"

	"netsim-sweep/internal/dashboard"
)

var dashboardOut string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Render Grafana dashboards for the GreptimeDB result table",
	Long:  "dashboard renders the bundled Grafana dashboards. GREPTIMEDB_DATASOURCE_UID must be set.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return dashboard.Render(dashboardOut, os.Getenv("GREPTIMEDB_TABLE"))
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardOut, "out", "build", "Output directory")
}
