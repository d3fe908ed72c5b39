package trace

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind tags an Event as a send or a receive.
type Kind int

const (
	KindSend Kind = iota
	KindReceive
)

func (k Kind) String() string {
	switch k {
	case KindSend:
		return "send"
	case KindReceive:
		return "receive"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is one packet send or receive observed in the simulator output.
// SizeBytes is only meaningful when HasSize is true.
type Event struct {
	Kind      Kind
	Timestamp float64 // seconds
	SizeBytes int
	HasSize   bool
}

// SendEvent is a send timestamp with its payload size.
type SendEvent struct {
	Timestamp float64 `json:"timestamp"`
	SizeBytes int     `json:"size_bytes"`
	HasSize   bool    `json:"has_size"`
}

// Token is a line recognised by a Grammar before numeric conversion.
// Timestamp and Size hold the raw matched text; Size is empty when the
// grammar has no size group or the line did not carry one.
type Token struct {
	Kind      Kind
	Timestamp string
	Size      string
}

// ConversionError reports a recognised line whose numeric field did not parse.
type ConversionError struct {
	Field string
	Raw   string
	Err   error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s %q: %v", e.Field, e.Raw, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

var (
	errNotFinite = fmt.Errorf("value is not finite")
	errNegative  = fmt.Errorf("value is negative")
)

// Event converts the raw token fields into a typed Event.
func (t Token) Event() (Event, error) {
	raw := strings.TrimSpace(t.Timestamp)
	ts, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Event{}, &ConversionError{Field: "timestamp", Raw: t.Timestamp, Err: err}
	}
	if math.IsNaN(ts) || math.IsInf(ts, 0) {
		return Event{}, &ConversionError{Field: "timestamp", Raw: t.Timestamp, Err: errNotFinite}
	}
	ev := Event{Kind: t.Kind, Timestamp: ts}
	if t.Size == "" {
		return ev, nil
	}
	size, err := strconv.Atoi(strings.TrimSpace(t.Size))
	if err != nil {
		return Event{}, &ConversionError{Field: "size", Raw: t.Size, Err: err}
	}
	if size < 0 {
		return Event{}, &ConversionError{Field: "size", Raw: t.Size, Err: errNegative}
	}
	ev.SizeBytes = size
	ev.HasSize = true
	return ev, nil
}
