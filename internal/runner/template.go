package runner

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/mattn/go-shellwords"
)

// Invocation is one fully rendered simulator call.
type Invocation struct {
	Args       []string      // argv; Args[0] is the program
	Command    string        // rendered command line, for logs
	Dir        string        // working directory, empty for the current one
	Env        []string      // extra KEY=VALUE pairs appended to the environment
	Timeout    time.Duration // zero means unbounded
	OutputFile string        // artifact the simulator writes instead of stdout, may be empty
}

// Template renders simulator command lines from named parameters.
// Parameters are referenced as {{.name}}; a missing parameter is an error.
type Template struct {
	raw    string
	cmd    *template.Template
	output *template.Template
	shell  bool
	dir    string
	env    []string
}

// TemplateOptions configures a Template.
type TemplateOptions struct {
	Shell      bool              // run through "sh -c" instead of splitting into argv
	Dir        string            // working directory
	Env        map[string]string // extra environment
	OutputFile string            // optional artifact path template
}

var funcMap = template.FuncMap{
	"shquote": shellQuote,
	"default": func(def, v string) string {
		if v == "" {
			return def
		}
		return v
	},
}

// ParseTemplate compiles a command template.
func ParseTemplate(command string, opts TemplateOptions) (*Template, error) {
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("simulator command is empty")
	}
	cmd, err := template.New("command").Funcs(funcMap).Option("missingkey=error").Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse command template: %w", err)
	}
	t := &Template{raw: command, cmd: cmd, shell: opts.Shell, dir: opts.Dir}
	if opts.OutputFile != "" {
		t.output, err = template.New("output").Funcs(funcMap).Option("missingkey=error").Parse(opts.OutputFile)
		if err != nil {
			return nil, fmt.Errorf("parse output_file template: %w", err)
		}
	}
	for k, v := range opts.Env {
		t.env = append(t.env, k+"="+v)
	}
	return t, nil
}

// Raw returns the unrendered template text.
func (t *Template) Raw() string { return t.raw }

// Render substitutes data into the template and builds the argv.
func (t *Template) Render(data map[string]string, timeout time.Duration) (Invocation, error) {
	line, err := execute(t.cmd, data)
	if err != nil {
		return Invocation{}, fmt.Errorf("render command: %w", err)
	}
	inv := Invocation{Command: line, Dir: t.dir, Env: append([]string(nil), t.env...), Timeout: timeout}
	if t.shell {
		inv.Args = []string{"sh", "-c", line}
	} else {
		args, err := shellwords.Parse(line)
		if err != nil {
			return Invocation{}, fmt.Errorf("split command %q: %w", line, err)
		}
		if len(args) == 0 {
			return Invocation{}, fmt.Errorf("command %q renders to nothing", line)
		}
		inv.Args = args
	}
	if t.output != nil {
		inv.OutputFile, err = execute(t.output, data)
		if err != nil {
			return Invocation{}, fmt.Errorf("render output_file: %w", err)
		}
	}
	return inv, nil
}

func execute(t *template.Template, data map[string]string) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
