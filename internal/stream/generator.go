package stream

import (
	"context"
	"errors"
	"time"

	"parley/internal/api"
	"parley/internal/logger"
	"parley/pkg/chattypes"
)

// Invalidator is the session store's entry point for reporting a rejected
// identity token.
type Invalidator interface {
	Invalidate()
}

// Generator runs one streaming generation session end to end: it requests
// the single-use streaming credential, dials the websocket, sends the
// control frame, and pumps transport events into the accumulator.
type Generator struct {
	client      *api.Client
	session     Invalidator
	acc         *Accumulator
	idleTimeout time.Duration
	notifier    chattypes.Notifier
}

// NewGenerator wires a generator to the API client and accumulator.
func NewGenerator(client *api.Client, session Invalidator, acc *Accumulator, idleTimeout time.Duration, notifier chattypes.Notifier) *Generator {
	if notifier == nil {
		notifier = chattypes.NopNotifier{}
	}
	return &Generator{
		client:      client,
		session:     session,
		acc:         acc,
		idleTimeout: idleTimeout,
		notifier:    notifier,
	}
}

// Accumulator exposes the underlying state machine for subscription and
// state queries.
func (g *Generator) Accumulator() *Accumulator {
	return g.acc
}

// Start begins a generation for the given ordered conversation. It returns
// ErrGenerationActive when one is already in flight. Any failure before the
// stream opens resets the machine to Idle with no partial state; the error
// is both surfaced through the notifier and returned.
//
// On success the read loop runs in its own goroutine; completion is
// observed through the accumulator's subscription or Wait.
func (g *Generator) Start(ctx context.Context, conversation []chattypes.Turn) error {
	gen, err := g.acc.Begin()
	if err != nil {
		return err
	}

	token, err := g.client.StreamToken(ctx)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) && g.session != nil {
			g.session.Invalidate()
		}
		g.notifier.Error("Error generating response")
		g.acc.Abort(gen, err)
		return err
	}

	transport, err := Dial(ctx, g.client.StreamURL(token), g.idleTimeout)
	if err != nil {
		serr := &StreamError{Err: err}
		g.notifier.Error("Error generating response")
		g.acc.Abort(gen, serr)
		return serr
	}

	if err := transport.SendChatCompletion(conversation); err != nil {
		transport.Close()
		serr := &StreamError{Err: err}
		g.notifier.Error("Error generating response")
		g.acc.Abort(gen, serr)
		return serr
	}

	g.acc.AttachTransport(gen, transport.Close)
	g.acc.Handle(gen, Event{Kind: EventOpened})
	logger.StreamEvent("opened", "turns", len(conversation))

	go transport.ReadLoop(func(ev Event) {
		g.acc.Handle(gen, ev)
	})
	return nil
}

// Cancel aborts the in-flight generation, if any. The accumulated text is
// discarded, never persisted.
func (g *Generator) Cancel() bool {
	return g.acc.Cancel()
}
