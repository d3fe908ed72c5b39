package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"netsim-sweep/internal/logging"
)

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "netsim-sweep",
	Short: "Network simulator parameter sweeps",
	Long: "netsim-sweep runs a network simulator such as ns-3 across configuration points, " +
		"extracts packet events from its output and reports throughput, latency, loss and delivery ratio per point.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.NewWith(logging.Options{Level: logLevel, Format: logFormat})
		if err != nil {
			return err
		}
		slog.SetDefault(l)
		cmd.SetContext(logging.NewContext(cmd.Context(), l))
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(presetsCmd)
	rootCmd.AddCommand(dashboardCmd)
}
