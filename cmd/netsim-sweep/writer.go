package main

import (
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/term"

	"netsim-sweep/internal/config"
	"netsim-sweep/internal/sweep"
)

// writerOptions selects the result writers of a sweep or replay.
type writerOptions struct {
	PrintOnly bool // console output only, no remote sinks
	JSON      bool
	TUI       bool
	CSV       string
	LogFile   string
	ClampLoss bool
	Sinks     config.SinksConfig

	Tracker    *sweep.Tracker
	Registerer prometheus.Registerer

	StdoutTerminal bool
	StderrTerminal bool
}

func terminalOptions(opts writerOptions) writerOptions {
	opts.StdoutTerminal = term.IsTerminal(int(os.Stdout.Fd()))
	opts.StderrTerminal = term.IsTerminal(int(os.Stderr.Fd()))
	return opts
}

// newWriters builds the writer chain. The returned MultiWriter closes every
// writer that holds resources. tui is non-nil when the TUI owns the terminal.
func newWriters(opts writerOptions) (*sweep.MultiWriter, *sweep.TUIWriter, error) {
	var (
		ws  []sweep.ResultWriter
		tui *sweep.TUIWriter
	)
	closeAll := func() {
		sweep.NewMultiWriter(ws...).Close()
	}

	switch {
	case opts.JSON:
		ws = append(ws, sweep.NewJSONStdoutWriter())
	case opts.TUI:
		tui = sweep.NewTUIWriter(opts.ClampLoss)
		ws = append(ws, tui)
	default:
		ws = append(ws, sweep.NewStdoutWriter(opts.StdoutTerminal, opts.ClampLoss))
		if !opts.StdoutTerminal && opts.StderrTerminal {
			ws = append(ws, sweep.NewProgressWriter())
		}
	}

	if opts.LogFile != "" {
		fw, err := sweep.NewFileWriter(opts.LogFile)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		ws = append(ws, fw)
	}
	if opts.CSV != "" {
		cw, err := sweep.NewCSVWriter(opts.CSV)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		ws = append(ws, cw)
	}

	if !opts.PrintOnly {
		if g := opts.Sinks.GreptimeDB; g.Endpoint != "" {
			gw, err := sweep.NewGreptimeDBWriter(g.Endpoint, g.Database, g.Table)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			slog.Info("[Main] writing results to GreptimeDB", "endpoint", g.Endpoint, "table", g.Table)
			ws = append(ws, gw)
		}
		if m := opts.Sinks.MQTT; m.Broker != "" {
			qw, err := sweep.NewMQTTWriter(m.Broker, m.Topic)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			slog.Info("[Main] publishing results over MQTT", "broker", m.Broker, "topic", m.Topic)
			ws = append(ws, qw)
		}
	}

	if opts.Tracker != nil {
		ws = append(ws, opts.Tracker)
	}
	if opts.Registerer != nil {
		pw, err := sweep.NewPromWriter(opts.Registerer)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		ws = append(ws, pw)
	}
	return sweep.NewMultiWriter(ws...), tui, nil
}
