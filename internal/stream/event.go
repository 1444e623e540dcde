// Package stream implements the streaming reply accumulator: a state
// machine that opens a websocket to the backend's generation endpoint,
// concatenates incoming text fragments into one in-progress assistant
// reply, and finalizes it into the message log when the stream ends.
//
// The state machine consumes an explicit event enumeration rather than raw
// transport callbacks, so it is testable by feeding synthetic events.
package stream

import (
	"errors"
	"fmt"
)

// EventKind enumerates transport events fed into the accumulator.
type EventKind int

const (
	// EventOpened fires once the connection is established and the
	// control frame has been sent.
	EventOpened EventKind = iota
	// EventFragment carries one UTF-8 text fragment of the reply.
	EventFragment
	// EventClosed signals normal end of stream, either via the explicit
	// terminal frame or the connection closing cleanly.
	EventClosed
	// EventErrored signals a transport failure.
	EventErrored
)

// String returns the lowercase event name.
func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventFragment:
		return "fragment"
	case EventClosed:
		return "closed"
	case EventErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Event is one transport occurrence. Text is set for EventFragment,
// Err for EventErrored.
type Event struct {
	Kind EventKind
	Text string
	Err  error
}

// ErrGenerationActive is returned when a generation is requested while one
// is already in flight. Exactly one generation may be active at a time.
var ErrGenerationActive = errors.New("a generation is already in progress")

// ErrCanceled is reported by Wait when the user canceled the generation.
var ErrCanceled = errors.New("generation canceled")

// StreamError wraps a transport-level failure during generation.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("streaming failed: %v", e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }
