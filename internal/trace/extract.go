// Package trace turns captured simulator output into send and receive events.
//
// Extraction is best-effort: lines that match no grammar shape are ignored,
// and lines that match but carry an unparseable number are skipped and
// counted. Only a failing reader produces an error.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
)

const maxLineBytes = 1 << 20

// Extraction is the result of scanning one run's output. Sent and Received
// keep the order in which lines were emitted, which is not necessarily
// chronological.
type Extraction struct {
	Sent     []SendEvent
	Received []float64
	Lines    int // lines scanned
	Matched  int // lines converted into events
	Skipped  int // lines recognised but dropped on numeric conversion
	Reported *Reported
}

// Events returns the number of send and receive events extracted.
func (e *Extraction) Events() int {
	return len(e.Sent) + len(e.Received)
}

// Extractor applies a Grammar to lines of output.
type Extractor struct {
	grammar *Grammar
	log     *slog.Logger
}

// NewExtractor creates an Extractor. A nil grammar selects DefaultGrammar.
func NewExtractor(g *Grammar, log *slog.Logger) *Extractor {
	if g == nil {
		g = MustBuiltinGrammar(DefaultGrammar)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{grammar: g, log: log}
}

// Grammar returns the grammar in use.
func (x *Extractor) Grammar() *Grammar { return x.grammar }

// ParseLine recognises and converts a single line. ok is false when the line
// matches no shape; err is a *ConversionError when it matched but did not convert.
func (x *Extractor) ParseLine(line string) (ev Event, ok bool, err error) {
	tok, ok := x.grammar.Recognize(line)
	if !ok {
		return Event{}, false, nil
	}
	ev, err = tok.Event()
	return ev, true, err
}

// ExtractLines scans an in-memory sequence of lines.
func (x *Extractor) ExtractLines(lines []string) *Extraction {
	ext := newExtraction()
	for _, line := range lines {
		x.add(ext, line)
	}
	return ext.finish()
}

// Extract scans r line by line.
func (x *Extractor) Extract(r io.Reader) (*Extraction, error) {
	ext := newExtraction()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		x.add(ext, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return ext.finish(), fmt.Errorf("scan output: %w", err)
	}
	return ext.finish(), nil
}

func newExtraction() *Extraction {
	return &Extraction{Reported: &Reported{}}
}

func (e *Extraction) finish() *Extraction {
	if e.Reported.Empty() {
		e.Reported = nil
	}
	return e
}

func (x *Extractor) add(ext *Extraction, line string) {
	ext.Lines++
	ev, ok, err := x.ParseLine(line)
	if !ok {
		scanReported(ext.Reported, line)
		return
	}
	if err != nil {
		ext.Skipped++
		x.log.Debug("[Extractor] skipped line", "line", ext.Lines, "err", err)
		return
	}
	ext.Matched++
	switch ev.Kind {
	case KindSend:
		ext.Sent = append(ext.Sent, SendEvent{Timestamp: ev.Timestamp, SizeBytes: ev.SizeBytes, HasSize: ev.HasSize})
	case KindReceive:
		ext.Received = append(ext.Received, ev.Timestamp)
	}
}
