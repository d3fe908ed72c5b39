package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"netsim-sweep/internal/logging"
	"netsim-sweep/internal/metrics"
	"netsim-sweep/internal/sweep"
	"netsim-sweep/internal/trace"
)

var (
	analyzeGrammar     string
	analyzeDefaultSize int
	analyzeJSON        bool
	analyzeSeries      bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE",
	Short: "Compute metrics from an existing simulator log",
	Long:  "analyze runs event extraction, pairing and metric computation over a captured log. Use - for stdin.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := trace.BuiltinGrammar(analyzeGrammar)
		if err != nil {
			return err
		}
		var in io.Reader = os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		a, err := sweep.Analyze(in, trace.NewExtractor(g, logging.FromContext(cmd.Context())), analyzeDefaultSize)
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		return writeAnalysis(cmd.OutOrStdout(), args[0], g.Name(), a, analyzeJSON, analyzeSeries)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeGrammar, "grammar", trace.DefaultGrammar, fmt.Sprintf("Event grammar %v", trace.GrammarNames()))
	analyzeCmd.Flags().IntVar(&analyzeDefaultSize, "default-size", metrics.DefaultPacketSize, "Packet size in bytes for sends that do not state one")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the summary as JSON")
	analyzeCmd.Flags().BoolVar(&analyzeSeries, "series", false, "Include per-packet latency and throughput series")
}

type analysisReport struct {
	File     string          `json:"file"`
	Grammar  string          `json:"grammar"`
	Lines    int             `json:"lines"`
	Matched  int             `json:"matched"`
	Skipped  int             `json:"skipped_lines"`
	Summary  metrics.Summary `json:"summary"`
	Reported *trace.Reported `json:"reported,omitempty"`
}

func writeAnalysis(w io.Writer, file, grammar string, a *sweep.Analysis, asJSON, series bool) error {
	s := a.Summary
	if !series {
		s.LatenciesMs = nil
		s.Throughput = nil
	}
	rep := analysisReport{
		File: file, Grammar: grammar,
		Lines: a.Extraction.Lines, Matched: a.Extraction.Matched, Skipped: a.Extraction.Skipped,
		Summary: s,
	}
	if !a.Extraction.Reported.Empty() {
		rep.Reported = a.Extraction.Reported
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "file\t%s\n", rep.File)
	fmt.Fprintf(tw, "grammar\t%s\n", rep.Grammar)
	fmt.Fprintf(tw, "lines\t%d (matched %d, skipped %d)\n", rep.Lines, rep.Matched, rep.Skipped)
	fmt.Fprintf(tw, "sent / received / pairs\t%d / %d / %d\n", s.TxCount, s.RxCount, s.Pairs)
	fmt.Fprintf(tw, "throughput\t%.4f Mbps\n", s.ThroughputMbps)
	fmt.Fprintf(tw, "latency mean / p50 / p95\t%.3f / %.3f / %.3f ms\n", s.MeanLatencyMs, s.LatencyP50Ms, s.LatencyP95Ms)
	fmt.Fprintf(tw, "loss rate\t%.2f %%\n", s.LossRatePct)
	fmt.Fprintf(tw, "delivery ratio\t%.2f %%\n", s.PDRPct)
	if r := rep.Reported; r != nil {
		if r.LostPackets != nil {
			fmt.Fprintf(tw, "reported lost packets\t%d\n", *r.LostPackets)
		}
		if r.ThroughputKbps != nil {
			fmt.Fprintf(tw, "reported throughput\t%.2f Kbps\n", *r.ThroughputKbps)
		}
		if r.PDRPct != nil {
			fmt.Fprintf(tw, "reported delivery ratio\t%.2f %%\n", *r.PDRPct)
		}
		if r.MeanDelayMs != nil {
			fmt.Fprintf(tw, "reported mean delay\t%.3f ms\n", *r.MeanDelayMs)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if series {
		fmt.Fprintln(w, "\nlatency_ms")
		for i, l := range s.LatenciesMs {
			fmt.Fprintf(w, "%d\t%.3f\n", i, l)
		}
		fmt.Fprintln(w, "\nat_s\tthroughput_mbps")
		for _, t := range s.Throughput {
			fmt.Fprintf(w, "%.6f\t%.6f\n", t.At, t.Mbps)
		}
	}
	return nil
}
