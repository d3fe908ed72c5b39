package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"netsim-sweep/internal/config"
	"netsim-sweep/internal/sweep"
)

var (
	replayInput     string
	replayCSV       string
	replayJSON      bool
	replayPrintOnly bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a results log file",
	Long:  "replay feeds results recorded with run --log-file back into the stdout report, CSV, GreptimeDB or MQTT.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		// A replay has no sweep file; sinks come from the environment.
		cfg := config.Default()
		if err := cfg.ApplyEnv(); err != nil {
			return err
		}
		writer, _, err := newWriters(terminalOptions(writerOptions{
			PrintOnly: replayPrintOnly,
			JSON:      replayJSON,
			CSV:       replayCSV,
			Sinks:     cfg.Sinks,
		}))
		if err != nil {
			return err
		}
		_, err = sweep.ReplayLogFile(replayInput, writer)
		if cerr := writer.Close(); err == nil {
			err = cerr
		}
		return err
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to results log file (JSONL)")
	replayCmd.Flags().StringVar(&replayCSV, "csv", "", "Write results as CSV to this file")
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "Print results as JSON lines")
	replayCmd.Flags().BoolVar(&replayPrintOnly, "print-only", false, "Print results only, skip GreptimeDB and MQTT")
	replayCmd.MarkFlagRequired("input")
}
