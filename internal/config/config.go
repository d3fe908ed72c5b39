// YAML sweep definitions with CUE validation, env overrides and presets
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"netsim-sweep/internal/metrics"
	"netsim-sweep/internal/runner"
	"netsim-sweep/internal/sweep"
	"netsim-sweep/internal/trace"
)

// SimulatorConfig describes how the simulator is invoked.
type SimulatorConfig struct {
	Command    string            `yaml:"command"`
	Workdir    string            `yaml:"workdir"`
	Shell      bool              `yaml:"shell"`
	Timeout    time.Duration     `yaml:"timeout"`
	Env        map[string]string `yaml:"env"`
	OutputFile string            `yaml:"output_file"`
}

// GrammarConfig selects a builtin event grammar or supplies a custom one.
type GrammarConfig struct {
	Name             string `yaml:"name"`
	Send             string `yaml:"send"`
	Receive          string `yaml:"receive"`
	DefaultSizeBytes int    `yaml:"default_size_bytes"`
}

// Parameter is one swept axis.
type Parameter struct {
	Name   string   `yaml:"name"`
	Values []string `yaml:"values"`
}

// GridConfig is the declarative sweep.
type GridConfig struct {
	Mode       string          `yaml:"mode"`
	Fixed      OrderedParams   `yaml:"fixed"`
	Parameters []Parameter     `yaml:"parameters"`
	Points     []OrderedParams `yaml:"points"`
}

// CaptureConfig controls where raw simulator output is kept.
type CaptureConfig struct {
	Dir string `yaml:"dir"`
}

// GreptimeConfig locates the result table.
type GreptimeConfig struct {
	Endpoint string `yaml:"endpoint"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
}

// MQTTConfig locates the broker results are published to.
type MQTTConfig struct {
	Broker string `yaml:"broker"`
	Topic  string `yaml:"topic"`
}

// SinksConfig configures remote result writers.
type SinksConfig struct {
	GreptimeDB GreptimeConfig `yaml:"greptimedb"`
	MQTT       MQTTConfig     `yaml:"mqtt"`
}

// SweepConfig is the root configuration of one sweep.
type SweepConfig struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Simulator   SimulatorConfig `yaml:"simulator"`
	Grammar     GrammarConfig   `yaml:"grammar"`
	Sweep       GridConfig      `yaml:"sweep"`
	Capture     CaptureConfig   `yaml:"capture"`
	Parallelism int             `yaml:"parallelism"`
	ClampLoss   bool            `yaml:"clamp_loss"`
	Sinks       SinksConfig     `yaml:"sinks"`
}

// OrderedParams is a YAML mapping of parameter values that keeps key order.
type OrderedParams []sweep.Param

// UnmarshalYAML reads a mapping node pair by pair.
func (o *OrderedParams) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping of parameter values", node.Line)
	}
	params := make(OrderedParams, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: parameter %q must be a scalar", v.Line, k.Value)
		}
		params = append(params, sweep.Param{Name: k.Value, Value: v.Value})
	}
	*o = params
	return nil
}

// Load validates configPath against the CUE schema at cueSchemaPath (skipped
// when empty), decodes it and applies environment overrides.
func Load(configPath, cueSchemaPath string) (*SweepConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if cueSchemaPath != "" {
		if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
			return nil, err
		}
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}
	slog.Debug("[Config] loaded sweep", "name", cfg.Name, "path", configPath)
	return cfg, nil
}

// Parse decodes YAML and fills in defaults without validating.
func Parse(data []byte) (*SweepConfig, error) {
	var cfg SweepConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns an empty sweep with defaults applied.
func Default() *SweepConfig {
	c := &SweepConfig{}
	c.applyDefaults()
	return c
}

func (c *SweepConfig) applyDefaults() {
	if c.Grammar.Name == "" && c.Grammar.Send == "" {
		c.Grammar.Name = trace.DefaultGrammar
	}
	if c.Grammar.DefaultSizeBytes == 0 {
		c.Grammar.DefaultSizeBytes = metrics.DefaultPacketSize
	}
	if c.Sweep.Mode == "" {
		c.Sweep.Mode = string(sweep.ModeProduct)
	}
	if c.Parallelism == 0 {
		c.Parallelism = 1
	}
	if c.Sinks.MQTT.Topic == "" {
		c.Sinks.MQTT.Topic = sweep.DefaultMQTTTopic
	}
	if c.Sinks.GreptimeDB.Database == "" {
		c.Sinks.GreptimeDB.Database = "public"
	}
	if c.Sinks.GreptimeDB.Table == "" {
		c.Sinks.GreptimeDB.Table = sweep.DefaultGreptimeTable
	}
}

// ApplyEnv overrides settings from the environment.
func (c *SweepConfig) ApplyEnv() error {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.Sinks.GreptimeDB.Endpoint, "GREPTIMEDB_ENDPOINT")
	setString(&c.Sinks.GreptimeDB.Database, "GREPTIMEDB_DATABASE")
	setString(&c.Sinks.GreptimeDB.Table, "GREPTIMEDB_TABLE")
	setString(&c.Sinks.MQTT.Broker, "MQTT_BROKER")
	setString(&c.Sinks.MQTT.Topic, "MQTT_TOPIC")
	setString(&c.Simulator.Workdir, "NS3_DIR")
	if v := os.Getenv("SWEEP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SWEEP_TIMEOUT: %w", err)
		}
		c.Simulator.Timeout = d
	}
	if v := os.Getenv("SWEEP_PARALLELISM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid SWEEP_PARALLELISM %q", v)
		}
		c.Parallelism = n
	}
	return nil
}

// Validate checks the settings a schema cannot express.
func (c *SweepConfig) Validate() error {
	var errs []error
	if c.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if _, err := c.Template(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.BuildGrammar(); err != nil {
		errs = append(errs, err)
	}
	if c.Simulator.Timeout < 0 {
		errs = append(errs, errors.New("simulator.timeout must not be negative"))
	}
	if c.Parallelism < 1 {
		errs = append(errs, errors.New("parallelism must be at least 1"))
	}
	if c.Grammar.DefaultSizeBytes < 0 {
		errs = append(errs, errors.New("grammar.default_size_bytes must not be negative"))
	}
	if _, err := c.Points(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Grid converts the sweep section.
func (c *SweepConfig) Grid() sweep.Grid {
	g := sweep.Grid{Mode: sweep.GridMode(c.Sweep.Mode), Fixed: append([]sweep.Param(nil), c.Sweep.Fixed...)}
	for _, p := range c.Sweep.Parameters {
		g.Axes = append(g.Axes, sweep.Axis{Name: p.Name, Values: append([]string(nil), p.Values...)})
	}
	for _, p := range c.Sweep.Points {
		g.Points = append(g.Points, sweep.NewPoint(p...))
	}
	return g
}

// Points expands the grid into configuration points.
func (c *SweepConfig) Points() ([]sweep.Point, error) {
	return c.Grid().Expand()
}

// BuildGrammar resolves the configured grammar.
func (c *SweepConfig) BuildGrammar() (*trace.Grammar, error) {
	g := c.Grammar
	if g.Send != "" || g.Receive != "" {
		if g.Send == "" || g.Receive == "" {
			return nil, errors.New("grammar: custom send and receive patterns must be given together")
		}
		name := g.Name
		if name == "" {
			name = "custom"
		}
		return trace.NewGrammar(name, g.Send, g.Receive)
	}
	return trace.BuiltinGrammar(g.Name)
}

// Template compiles the simulator command.
func (c *SweepConfig) Template() (*runner.Template, error) {
	return runner.ParseTemplate(c.Simulator.Command, runner.TemplateOptions{
		Shell:      c.Simulator.Shell,
		Dir:        c.Simulator.Workdir,
		Env:        c.Simulator.Env,
		OutputFile: c.Simulator.OutputFile,
	})
}
