package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"netsim-sweep/internal/runner"
	"netsim-sweep/internal/sweep"
	"netsim-sweep/internal/trace"
)

const schemaPath = "../../schemas/sweep.cue"

const validYAML = `
name: manet-size
simulator:
  command: './ns3 run "scratch/manet-28 --size={{.size}} --txrange={{.txrange}}"'
  workdir: /opt/ns-3
  shell: true
  timeout: 90s
sweep:
  fixed:
    txrange: 50
    simTime: 50
  parameters:
    - name: size
      values: [10, 20, 30]
capture:
  dir: runs
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sweep.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	for _, k := range []string{"GREPTIMEDB_ENDPOINT", "GREPTIMEDB_DATABASE", "GREPTIMEDB_TABLE", "MQTT_BROKER", "MQTT_TOPIC", "SWEEP_TIMEOUT", "SWEEP_PARALLELISM", "NS3_DIR"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Valid(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, validYAML), schemaPath)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Name != "manet-size" || cfg.Simulator.Timeout != 90*time.Second || !cfg.Simulator.Shell {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Grammar.Name != "ns3-udp-echo" || cfg.Grammar.DefaultSizeBytes != 1024 || cfg.Parallelism != 1 {
		t.Errorf("defaults not applied: %+v", cfg.Grammar)
	}
	points, err := cfg.Points()
	if err != nil {
		t.Fatalf("Points: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	if got := points[1].String(); got != "size=20,txrange=50,simTime=50" {
		t.Errorf("point order = %s", got)
	}
}

func TestLoadConfig_SchemaRejectsUnknownField(t *testing.T) {
	clearEnv(t)
	bad := strings.Replace(validYAML, "capture:", "captures:", 1)
	if _, err := Load(writeConfig(t, bad), schemaPath); err == nil {
		t.Fatalf("expected schema error for unknown field")
	}
}

func TestLoadConfig_SchemaRejectsBadMode(t *testing.T) {
	clearEnv(t)
	bad := strings.Replace(validYAML, "sweep:\n", "sweep:\n  mode: shuffle\n", 1)
	if _, err := Load(writeConfig(t, bad), schemaPath); err == nil {
		t.Fatalf("expected schema error for mode")
	}
}

func TestLoadConfig_MissingCommand(t *testing.T) {
	clearEnv(t)
	cfg, err := Parse([]byte("name: x\nsweep:\n  parameters:\n    - name: a\n      values: [1]\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for missing command")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SWEEP_TIMEOUT", "2m")
	t.Setenv("GREPTIMEDB_ENDPOINT", "greptime:4001")
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("NS3_DIR", "/srv/ns3")
	cfg, err := Load(writeConfig(t, validYAML), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Simulator.Timeout != 2*time.Minute {
		t.Errorf("timeout = %v", cfg.Simulator.Timeout)
	}
	if cfg.Sinks.GreptimeDB.Endpoint != "greptime:4001" || cfg.Sinks.GreptimeDB.Table != "sweep_results" {
		t.Errorf("greptime = %+v", cfg.Sinks.GreptimeDB)
	}
	if cfg.Sinks.MQTT.Broker != "tcp://broker:1883" || cfg.Sinks.MQTT.Topic != "netsim/sweeps" {
		t.Errorf("mqtt = %+v", cfg.Sinks.MQTT)
	}
	if cfg.Simulator.Workdir != "/srv/ns3" {
		t.Errorf("workdir = %s", cfg.Simulator.Workdir)
	}

	t.Setenv("SWEEP_TIMEOUT", "soon")
	if _, err := Load(writeConfig(t, validYAML), ""); err == nil {
		t.Fatalf("expected error for invalid SWEEP_TIMEOUT")
	}
}

func TestCustomGrammar(t *testing.T) {
	cfg, err := Parse([]byte(`
name: custom
simulator: {command: "sim {{.n}}"}
grammar:
  send: 'TX t=(?P<ts>\S+) len=(?P<size>\d+)'
  receive: 'RX t=(?P<ts>\S+)'
sweep:
  points:
    - {n: 1}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	g, err := cfg.BuildGrammar()
	if err != nil {
		t.Fatalf("BuildGrammar: %v", err)
	}
	if g.Name() != "custom" {
		t.Errorf("grammar name = %s", g.Name())
	}

	cfg.Grammar.Receive = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for half a custom grammar")
	}
}

func TestPresets(t *testing.T) {
	want := map[string]struct {
		points int
		first  string
	}{
		"manet-size":    {10, "size=10,txrange=50,simTime=50"},
		"manet-txrange": {13, "txrange=30,size=50,simTime=50"},
		"topology-wifi": {10, "nWifi=3,nCsma=3,mode=medium"},
		"topology-csma": {10, "nCsma=3,nWifi=3,mode=medium"},
		"topology-both": {10, "nWifi=3,nCsma=3,mode=medium"},
		"load-modes":    {3, "mode=low"},
		"flowmon-wifi":  {9, "nWifi=1,nCsma=3"},
	}
	if len(PresetNames()) != len(want) {
		t.Fatalf("presets = %v", PresetNames())
	}
	for name, w := range want {
		cfg, err := Preset(name)
		if err != nil {
			t.Fatalf("Preset(%s): %v", name, err)
		}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("preset %s invalid: %v", name, err)
		}
		points, err := cfg.Points()
		if err != nil {
			t.Fatalf("points %s: %v", name, err)
		}
		if len(points) != w.points || points[0].String() != w.first {
			t.Errorf("%s: %d points, first %s", name, len(points), points[0])
		}
	}
	if _, err := Preset("nope"); err == nil {
		t.Fatalf("expected error for unknown preset")
	}
}

// Output as the scenarios print it: manet-28 under the NS_LOG its presets set,
// third2/third3 with their default verbose UdpEcho logging.
var scenarioOutput = map[string]string{
	"manet-28": `+2.000000000s 0 UdpClient:Send(): TraceDelay TX 1024 bytes to 10.1.1.10 Uid: 812 Time: +2s
+2.003871000s 9 UdpServer:HandleRead(): TraceDelay: RX 1024 bytes from 10.1.1.1 Sequence Number: 0 Uid: 812 TXtime: +2e+09ns RXtime: +2.00387e+09ns Delay: +3.871e+06ns
+2.010000000s 0 UdpClient:Send(): TraceDelay TX 1024 bytes to 10.1.1.10 Uid: 813 Time: +2.01s
+2.013904000s 9 UdpServer:HandleRead(): TraceDelay: RX 1024 bytes from 10.1.1.1 Sequence Number: 1 Uid: 813 TXtime: +2.01e+09ns RXtime: +2.0139e+09ns Delay: +3.904e+06ns
  Total Packets Lost: 0
  Throughput: 16.4 Kbps
  Packets Delivery Ratio: 100%
`,
	"third2": `At time +2s client sent 1024 bytes to 10.1.2.4 port 9
At time +2.00737s server received 1024 bytes from 10.1.3.3 port 49153
At time +2.00737s server sent 1024 bytes to 10.1.3.3 port 49153
At time +2.01473s client received 1024 bytes from 10.1.2.4 port 9
`,
	"third3": `At time +1s client sent 1024 bytes to 10.1.2.4 port 9
At time +1.01624s client received 1024 bytes from 10.1.2.4 port 9
`,
}

func scenarioOf(command string) string {
	for _, name := range []string{"manet-28", "third2", "third3"} {
		if strings.Contains(command, "scratch/"+name+" ") {
			return name
		}
	}
	return ""
}

func TestPresetsAnalyzeScenarioOutput(t *testing.T) {
	for _, name := range PresetNames() {
		t.Run(name, func(t *testing.T) {
			cfg, err := Preset(name)
			if err != nil {
				t.Fatalf("Preset: %v", err)
			}
			g, err := cfg.BuildGrammar()
			if err != nil {
				t.Fatalf("BuildGrammar: %v", err)
			}
			tpl, err := cfg.Template()
			if err != nil {
				t.Fatalf("Template: %v", err)
			}
			points, err := cfg.Points()
			if err != nil {
				t.Fatalf("Points: %v", err)
			}

			var envs [][]string
			r := runner.RunnerFunc(func(_ context.Context, inv runner.Invocation, out io.Writer) error {
				envs = append(envs, inv.Env)
				sample, ok := scenarioOutput[scenarioOf(inv.Command)]
				if !ok {
					return fmt.Errorf("no sample output for %s", inv.Command)
				}
				_, err := io.WriteString(out, sample)
				return err
			})
			o, err := sweep.NewOrchestrator(sweep.Options{
				Name:        name,
				Template:    tpl,
				Runner:      r,
				Extractor:   trace.NewExtractor(g, nil),
				DefaultSize: cfg.Grammar.DefaultSizeBytes,
			})
			if err != nil {
				t.Fatalf("NewOrchestrator: %v", err)
			}

			res, err := o.Run(context.Background(), points[:1])
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			run := res.Runs()[0]
			if run.Status != sweep.StatusOK || run.Pairs == 0 {
				t.Fatalf("status %s with %d pairs: %s", run.Status, run.Pairs, run.Error)
			}

			wantLog := cfg.Grammar.Name == trace.GrammarNS3UdpTrace
			if got := slices.Contains(envs[0], "NS_LOG="+udpTraceLog); got != wantLog {
				t.Errorf("NS_LOG set = %v, want %v (env %v)", got, wantLog, envs[0])
			}
		})
	}
}

func TestExampleConfigsValidate(t *testing.T) {
	files, err := filepath.Glob("../../config/*.yaml")
	if err != nil || len(files) == 0 {
		t.Fatalf("no example configs: %v", err)
	}
	for _, f := range files {
		if err := ValidateWithCue(f, schemaPath); err != nil {
			t.Errorf("%s: %v", f, err)
		}
	}
}
