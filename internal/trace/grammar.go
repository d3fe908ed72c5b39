package trace

import (
	"fmt"
	"regexp"
	"sort"
)

// Named capture groups a grammar pattern must (ts) or may (size) define.
const (
	GroupTimestamp = "ts"
	GroupSize      = "size"
)

// Builtin grammar names.
//
// GrammarNS3UdpEcho reads the UdpEchoClient log lines ("At time +2s client
// sent 1024 bytes ...").
//
// GrammarNS3UdpTrace reads the UdpClient and UdpServer TraceDelay lines, which
// carry no timestamp of their own: the component must be logged with
// prefix_time, e.g. NS_LOG="UdpClient=level_info|prefix_time:UdpServer=level_info|prefix_time".
//
// GrammarKV reads generic key=value lines. A send needs the word tx or sent
// before timestamp= and size=, a receive needs rx or received before
// timestamp=. Lines with timestamp= but neither keyword are not events.
const (
	GrammarNS3UdpEcho  = "ns3-udp-echo"
	GrammarNS3UdpTrace = "ns3-udp-trace"
	GrammarKV          = "kv"
)

// DefaultGrammar is used when a sweep does not name one.
const DefaultGrammar = GrammarNS3UdpEcho

// Groups capture loosely (\S+) so malformed numbers are recognised and then
// rejected by conversion instead of silently falling through as no-match.
var builtinGrammars = map[string][2]string{
	GrammarNS3UdpEcho: {
		`At time \+?(?P<ts>\S+)s client sent (?P<size>\S+) bytes`,
		`At time \+?(?P<ts>\S+)s client received`,
	},
	GrammarNS3UdpTrace: {
		`^\+?(?P<ts>\S+?)s\s.*\bTraceDelay TX (?P<size>\S+) bytes`,
		`^\+?(?P<ts>\S+?)s\s.*\bTraceDelay: RX\b`,
	},
	GrammarKV: {
		`\b(?:tx|sent)\b.*?\btimestamp=(?P<ts>[^\s,;]+).*?\bsize=(?P<size>[^\s,;]+)`,
		`\b(?:rx|received)\b.*?\btimestamp=(?P<ts>[^\s,;]+)`,
	},
}

// GrammarNames lists the builtin grammar names in sorted order.
func GrammarNames() []string {
	names := make([]string, 0, len(builtinGrammars))
	for n := range builtinGrammars {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Grammar recognises send and receive lines with two search patterns.
type Grammar struct {
	name    string
	send    *regexp.Regexp
	receive *regexp.Regexp
}

// NewGrammar compiles a custom grammar. Both patterns need a "ts" group;
// the send pattern may carry a "size" group.
func NewGrammar(name, sendPattern, receivePattern string) (*Grammar, error) {
	send, err := compilePattern("send", sendPattern)
	if err != nil {
		return nil, err
	}
	receive, err := compilePattern("receive", receivePattern)
	if err != nil {
		return nil, err
	}
	return &Grammar{name: name, send: send, receive: receive}, nil
}

// BuiltinGrammar returns one of the named builtin grammars.
func BuiltinGrammar(name string) (*Grammar, error) {
	if name == "" {
		name = DefaultGrammar
	}
	p, ok := builtinGrammars[name]
	if !ok {
		return nil, fmt.Errorf("unknown grammar %q (known: %v)", name, GrammarNames())
	}
	return NewGrammar(name, p[0], p[1])
}

// MustBuiltinGrammar is BuiltinGrammar for package-level initialisation and tests.
func MustBuiltinGrammar(name string) *Grammar {
	g, err := BuiltinGrammar(name)
	if err != nil {
		panic(err)
	}
	return g
}

func compilePattern(kind, pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%s pattern is empty", kind)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile %s pattern: %w", kind, err)
	}
	if re.SubexpIndex(GroupTimestamp) < 0 {
		return nil, fmt.Errorf("%s pattern has no (?P<%s>...) group", kind, GroupTimestamp)
	}
	return re, nil
}

// Name returns the grammar name.
func (g *Grammar) Name() string { return g.name }

// Recognize searches line for a send shape first, then a receive shape.
func (g *Grammar) Recognize(line string) (Token, bool) {
	if tok, ok := match(g.send, KindSend, line); ok {
		return tok, true
	}
	return match(g.receive, KindReceive, line)
}

func match(re *regexp.Regexp, kind Kind, line string) (Token, bool) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return Token{}, false
	}
	tok := Token{Kind: kind, Timestamp: m[re.SubexpIndex(GroupTimestamp)]}
	if i := re.SubexpIndex(GroupSize); i >= 0 {
		tok.Size = m[i]
	}
	return tok, true
}
