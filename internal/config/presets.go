package config

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"netsim-sweep/internal/metrics"
	"netsim-sweep/internal/sweep"
	"netsim-sweep/internal/trace"
)

const (
	manetCommand    = `./ns3 run "scratch/manet-28 --size={{.size}} --txrange={{.txrange}} --simTime={{.simTime}}"`
	third3Command   = `./ns3 run "scratch/third3 --mode={{.mode}} --nWifi={{.nWifi}} --nCsma={{.nCsma}}"`
	third2Command   = `./ns3 run "scratch/third2 --mode={{.mode}}"`
	flowmonCommand  = `./ns3 run 'scratch/third2 --nWifi={{.nWifi}} --nCsma={{.nCsma}} --tracing=true --verbose=true'`
	presetTimeout   = 300 * time.Second
	flowmonTimeout  = 30 * time.Second
	defaultLoadMode = "medium"

	// manet-28 logs UdpClient/UdpServer without a time prefix, so the
	// prefix is switched on through NS_LOG.
	udpTraceLog = "UdpClient=level_info|prefix_time:UdpServer=level_info|prefix_time"
)

// stepRange returns from..to inclusive in steps, as strings.
func stepRange(from, to, step int) []string {
	var out []string
	for v := from; v <= to; v += step {
		out = append(out, strconv.Itoa(v))
	}
	return out
}

func fixed(kv ...string) OrderedParams {
	var out OrderedParams
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, sweep.Param{Name: kv[i], Value: kv[i+1]})
	}
	return out
}

func preset(name, desc, command string, timeout time.Duration, mode sweep.GridMode, fix OrderedParams, params ...Parameter) *SweepConfig {
	return &SweepConfig{
		Name:        name,
		Description: desc,
		Simulator:   SimulatorConfig{Command: command, Shell: true, Timeout: timeout},
		Grammar:     GrammarConfig{Name: trace.GrammarNS3UdpEcho, DefaultSizeBytes: metrics.DefaultPacketSize},
		Sweep:       GridConfig{Mode: string(mode), Fixed: fix, Parameters: params},
		Parallelism: 1,
	}
}

// udpTrace switches a preset to the UdpClient/UdpServer TraceDelay lines.
func udpTrace(cfg *SweepConfig) *SweepConfig {
	cfg.Grammar.Name = trace.GrammarNS3UdpTrace
	cfg.Simulator.Env = map[string]string{"NS_LOG": udpTraceLog}
	return cfg
}

var presets = map[string]func() *SweepConfig{
	"manet-size": func() *SweepConfig {
		return udpTrace(preset("manet-size", "MANET: node count 10..100, tx range 50 m",
			manetCommand, presetTimeout, sweep.ModeProduct, fixed("txrange", "50", "simTime", "50"),
			Parameter{Name: "size", Values: stepRange(10, 100, 10)}))
	},
	"manet-txrange": func() *SweepConfig {
		return udpTrace(preset("manet-txrange", "MANET: tx range 30..150 m, 50 nodes",
			manetCommand, presetTimeout, sweep.ModeProduct, fixed("size", "50", "simTime", "50"),
			Parameter{Name: "txrange", Values: stepRange(30, 150, 10)}))
	},
	"topology-wifi": func() *SweepConfig {
		return preset("topology-wifi", "Mixed topology: WiFi nodes 3..30, 3 CSMA nodes",
			third3Command, presetTimeout, sweep.ModeProduct, fixed("nCsma", "3", "mode", defaultLoadMode),
			Parameter{Name: "nWifi", Values: stepRange(3, 30, 3)})
	},
	"topology-csma": func() *SweepConfig {
		return preset("topology-csma", "Mixed topology: CSMA nodes 3..30, 3 WiFi nodes",
			third3Command, presetTimeout, sweep.ModeProduct, fixed("nWifi", "3", "mode", defaultLoadMode),
			Parameter{Name: "nCsma", Values: stepRange(3, 30, 3)})
	},
	"topology-both": func() *SweepConfig {
		return preset("topology-both", "Mixed topology: WiFi and CSMA nodes grown together 3..30",
			third3Command, presetTimeout, sweep.ModeZip, fixed("mode", defaultLoadMode),
			Parameter{Name: "nWifi", Values: stepRange(3, 30, 3)},
			Parameter{Name: "nCsma", Values: stepRange(3, 30, 3)})
	},
	"load-modes": func() *SweepConfig {
		return preset("load-modes", "Temporal run of the base topology under low, medium and high load",
			third2Command, presetTimeout, sweep.ModeProduct, nil,
			Parameter{Name: "mode", Values: []string{"low", "medium", "high"}})
	},
	"flowmon-wifi": func() *SweepConfig {
		return preset("flowmon-wifi", "FlowMonitor summary while WiFi nodes grow 1..9",
			flowmonCommand, flowmonTimeout, sweep.ModeProduct, fixed("nCsma", "3"),
			Parameter{Name: "nWifi", Values: stepRange(1, 9, 1)})
	},
}

// PresetNames lists the builtin sweeps in name order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Preset returns a fresh copy of a builtin sweep with defaults applied.
func Preset(name string) (*SweepConfig, error) {
	mk, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q (available: %v)", name, PresetNames())
	}
	cfg := mk()
	cfg.applyDefaults()
	return cfg, nil
}
