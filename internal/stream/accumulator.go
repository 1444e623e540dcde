package stream

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"parley/internal/logger"
	"parley/pkg/chattypes"
)

// Update is the observable accumulator state delivered to subscribers on
// every transition and fragment.
type Update struct {
	State chattypes.GenerationState
	Text  string
	Err   error
}

// Accumulator is the generation state machine: Idle -> Generating -> Done
// -> Idle. Fragments are concatenated in arrival order; on normal stream
// end the accumulated text is finalized through the provided callback; on
// cancel or transport error the text is discarded and no finalize happens.
type Accumulator struct {
	mu             sync.Mutex
	state          chattypes.GenerationState
	buf            strings.Builder
	genID          uint64
	closeTransport func()
	done           chan struct{}
	lastReply      string
	lastErr        error

	finalize  func(text string) error
	settle    time.Duration
	notifier  chattypes.Notifier
	listeners []func(Update)
	log       *log.Logger
}

// NewAccumulator creates an idle accumulator. finalize persists a completed
// reply; it is invoked exactly once per naturally ended generation with
// non-empty text, and never on cancel or error. settle optionally delays
// finalization after stream end.
func NewAccumulator(finalize func(text string) error, notifier chattypes.Notifier, settle time.Duration) *Accumulator {
	if notifier == nil {
		notifier = chattypes.NopNotifier{}
	}
	if finalize == nil {
		finalize = func(string) error { return nil }
	}
	return &Accumulator{
		state:    chattypes.GenerationIdle,
		finalize: finalize,
		settle:   settle,
		notifier: notifier,
		log:      logger.NewStyledLogger("Stream"),
	}
}

// Subscribe registers a listener for state transitions and fragment
// arrivals. The growing text is pushed, not polled.
func (a *Accumulator) Subscribe(fn func(Update)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

// State returns the current generation state.
func (a *Accumulator) State() chattypes.GenerationState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Text returns the reply accumulated so far.
func (a *Accumulator) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.String()
}

// LastReply returns the text of the most recently completed generation.
// It is retained even when finalization failed, so the caller can retry.
func (a *Accumulator) LastReply() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastReply
}

// Begin reserves the accumulator for a new generation. It fails with
// ErrGenerationActive unless the state is Idle, leaving state and text
// unchanged. The returned generation id tags subsequent events so that
// stale events from a canceled transport are dropped.
func (a *Accumulator) Begin() (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != chattypes.GenerationIdle {
		return 0, ErrGenerationActive
	}
	a.state = chattypes.GenerationActive
	a.genID++
	a.buf.Reset()
	a.lastErr = nil
	a.done = make(chan struct{})
	a.log.Debug("Generation reserved", "generation", a.genID)
	return a.genID, nil
}

// AttachTransport registers the function that closes the live transport,
// used by Cancel and by error handling.
func (a *Accumulator) AttachTransport(gen uint64, closeFn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen == a.genID && a.state == chattypes.GenerationActive {
		a.closeTransport = closeFn
	}
}

// Abort resets a reserved generation that failed before any event arrived
// (credential fetch, dial, or control-frame failure). No partial state is
// kept.
func (a *Accumulator) Abort(gen uint64, err error) {
	a.mu.Lock()
	if gen != a.genID || a.state != chattypes.GenerationActive {
		a.mu.Unlock()
		return
	}
	a.buf.Reset()
	a.state = chattypes.GenerationIdle
	a.lastErr = err
	a.closeTransport = nil
	done := a.done
	a.done = nil
	a.mu.Unlock()

	a.log.Debug("Generation aborted", "error", err)
	close(done)
	a.broadcast(Update{State: chattypes.GenerationIdle, Err: err})
}

// Handle feeds one transport event into the state machine. Events carrying
// a stale generation id, or arriving while Idle, are dropped.
func (a *Accumulator) Handle(gen uint64, ev Event) {
	switch ev.Kind {
	case EventOpened:
		a.mu.Lock()
		if gen != a.genID || a.state != chattypes.GenerationActive {
			a.mu.Unlock()
			return
		}
		a.mu.Unlock()
		a.log.Debug("Stream opened")
		a.broadcast(Update{State: chattypes.GenerationActive})

	case EventFragment:
		a.mu.Lock()
		if gen != a.genID || a.state != chattypes.GenerationActive {
			a.mu.Unlock()
			return
		}
		a.buf.WriteString(ev.Text)
		text := a.buf.String()
		a.mu.Unlock()
		a.broadcast(Update{State: chattypes.GenerationActive, Text: text})

	case EventClosed:
		a.complete(gen)

	case EventErrored:
		a.fail(gen, ev.Err)
	}
}

// complete runs the Generating -> Done -> Idle path: finalize non-empty
// text, then release the machine. A finalize failure is surfaced loudly and
// recorded, never silently dropped.
func (a *Accumulator) complete(gen uint64) {
	a.mu.Lock()
	if gen != a.genID || a.state != chattypes.GenerationActive {
		a.mu.Unlock()
		return
	}
	text := a.buf.String()
	a.state = chattypes.GenerationDone
	closeFn := a.closeTransport
	a.closeTransport = nil
	a.mu.Unlock()

	if closeFn != nil {
		closeFn()
	}
	a.log.Debug("Stream closed", "chars", len(text))
	a.broadcast(Update{State: chattypes.GenerationDone, Text: text})

	if a.settle > 0 {
		time.Sleep(a.settle)
	}

	var finalizeErr error
	if text != "" {
		if finalizeErr = a.finalize(text); finalizeErr != nil {
			a.log.Error("Failed to persist assistant reply", "error", finalizeErr)
			a.notifier.Error("Error saving assistant reply")
		}
	}

	a.mu.Lock()
	a.lastReply = text
	a.lastErr = finalizeErr
	a.buf.Reset()
	a.state = chattypes.GenerationIdle
	done := a.done
	a.done = nil
	a.mu.Unlock()

	close(done)
	a.broadcast(Update{State: chattypes.GenerationIdle, Text: text, Err: finalizeErr})
}

// fail handles a transport error while Generating: the text accumulated so
// far is discarded and the machine returns to Idle. No orphaned Generating
// state survives.
func (a *Accumulator) fail(gen uint64, cause error) {
	a.mu.Lock()
	if gen != a.genID || a.state != chattypes.GenerationActive {
		a.mu.Unlock()
		return
	}
	err := &StreamError{Err: cause}
	a.buf.Reset()
	a.state = chattypes.GenerationIdle
	a.lastErr = err
	closeFn := a.closeTransport
	a.closeTransport = nil
	done := a.done
	a.done = nil
	a.mu.Unlock()

	if closeFn != nil {
		closeFn()
	}
	a.log.Debug("Stream errored", "error", cause)
	a.notifier.Error("Error generating response")
	close(done)
	a.broadcast(Update{State: chattypes.GenerationIdle, Err: err})
}

// Cancel aborts an in-flight generation: the transport is closed, the
// accumulated text is discarded and never persisted, and the state returns
// to Idle. Returns false when nothing was in flight. Canceling during
// finalization is a no-op; at that point the stream already ended normally.
func (a *Accumulator) Cancel() bool {
	a.mu.Lock()
	if a.state != chattypes.GenerationActive {
		a.mu.Unlock()
		return false
	}
	// Invalidate pending events from the dying transport
	a.genID++
	a.buf.Reset()
	a.state = chattypes.GenerationIdle
	a.lastErr = ErrCanceled
	closeFn := a.closeTransport
	a.closeTransport = nil
	done := a.done
	a.done = nil
	a.mu.Unlock()

	if closeFn != nil {
		closeFn()
	}
	a.log.Debug("Generation canceled")
	close(done)
	a.broadcast(Update{State: chattypes.GenerationIdle, Err: ErrCanceled})
	return true
}

// Wait blocks until the current generation finishes and returns its
// outcome: nil on success, ErrCanceled on cancel, a StreamError on
// transport failure, or the finalize error. Returns immediately when idle.
func (a *Accumulator) Wait(ctx context.Context) error {
	a.mu.Lock()
	done := a.done
	a.mu.Unlock()
	if done == nil {
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.lastErr
	}
	select {
	case <-done:
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.lastErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Accumulator) broadcast(u Update) {
	a.mu.Lock()
	listeners := make([]func(Update), len(a.listeners))
	copy(listeners, a.listeners)
	a.mu.Unlock()
	for _, fn := range listeners {
		fn(u)
	}
}
