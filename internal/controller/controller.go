// Package controller implements the conversation session controller, the
// single entry point the UI layer calls into. It binds the session store,
// conversation registry, message log, and streaming reply accumulator, and
// enforces the active-conversation and single-generation rules.
package controller

import (
	"context"
	"fmt"
	"sync"

	"parley/internal/api"
	"parley/internal/auth"
	"parley/internal/config"
	"parley/internal/conversation"
	"parley/internal/logger"
	"parley/internal/stream"
	"parley/pkg/chattypes"
)

// ErrNoActiveConversation is returned by operations that need a selected
// conversation when none is selected, including after the active
// conversation was deleted.
var ErrNoActiveConversation = conversation.ErrNoConversation

// Snapshot is the observable controller state pushed to subscribers.
type Snapshot struct {
	Active       *chattypes.Conversation
	Generation   chattypes.GenerationState
	StreamText   string
	MessageCount int
}

// Controller orchestrates one conversation session.
type Controller struct {
	mu        sync.RWMutex
	session   *auth.Store
	registry  *conversation.Registry
	log       *conversation.Log
	generator *stream.Generator
	notifier  chattypes.Notifier
	active    *chattypes.Conversation
	listeners []func(Snapshot)
}

// New wires a controller from configuration. The notifier receives every
// user-visible outcome; pass nil to discard notifications.
func New(cfg *config.Config, client *api.Client, session *auth.Store, notifier chattypes.Notifier) *Controller {
	if notifier == nil {
		notifier = chattypes.NopNotifier{}
	}
	c := &Controller{
		session:  session,
		registry: conversation.NewRegistry(client, session, notifier),
		log:      conversation.NewLog(client, session, notifier, cfg.FailSoftLoad),
		notifier: notifier,
	}

	acc := stream.NewAccumulator(c.finalizeReply, notifier, cfg.SettleDelay)
	c.generator = stream.NewGenerator(client, session, acc, cfg.StreamIdleTimeout, notifier)

	acc.Subscribe(func(stream.Update) {
		c.broadcast()
	})
	session.Subscribe(func(snap auth.Snapshot) {
		if !snap.Authenticated {
			c.clearSelection()
		}
	})
	return c
}

// Subscribe registers a listener fired on every controller state change:
// selection, log mutation, generation transitions, and stream fragments.
func (c *Controller) Subscribe(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Refresh reloads the conversation list from the backend.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.registry.Refresh(ctx)
}

// Conversations returns the cached conversation list.
func (c *Controller) Conversations() []chattypes.Conversation {
	return c.registry.List()
}

// Active returns the currently selected conversation, if any.
func (c *Controller) Active() (chattypes.Conversation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.active == nil {
		return chattypes.Conversation{}, false
	}
	return *c.active, true
}

// Messages returns the active conversation's log, ascending by chat index.
func (c *Controller) Messages() []chattypes.Message {
	return c.log.Snapshot()
}

// GenerationState returns the streaming state machine's current state.
func (c *Controller) GenerationState() chattypes.GenerationState {
	return c.generator.Accumulator().State()
}

// StreamText returns the in-progress assistant reply accumulated so far.
func (c *Controller) StreamText() string {
	return c.generator.Accumulator().Text()
}

// Select makes the given conversation active and reloads its history.
// The previous conversation's messages are discarded, not cached.
func (c *Controller) Select(ctx context.Context, id string) error {
	chat, ok := c.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", conversation.ErrNotFound, id)
	}

	c.mu.Lock()
	c.active = &chat
	c.mu.Unlock()
	c.log.Reset(chat.ID)
	c.broadcast()

	if err := c.log.Load(ctx); err != nil {
		return err
	}
	c.broadcast()
	return nil
}

// Create requests a new conversation. The new conversation is not
// auto-selected.
func (c *Controller) Create(ctx context.Context, name string) (chattypes.Conversation, error) {
	chat, err := c.registry.Create(ctx, name)
	if err != nil {
		return chattypes.Conversation{}, err
	}
	c.broadcast()
	return chat, nil
}

// Rename renames the active conversation and updates the selection with
// the canonical re-fetched record.
func (c *Controller) Rename(ctx context.Context, name string) error {
	active, ok := c.Active()
	if !ok {
		return ErrNoActiveConversation
	}
	chat, err := c.registry.Rename(ctx, active.ID, name)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.active = &chat
	c.mu.Unlock()
	c.broadcast()
	return nil
}

// Delete removes the active conversation and clears the selection.
// Subsequent message operations fail with ErrNoActiveConversation rather
// than operating on the stale id.
func (c *Controller) Delete(ctx context.Context) error {
	active, ok := c.Active()
	if !ok {
		return ErrNoActiveConversation
	}
	if err := c.registry.Delete(ctx, active.ID); err != nil {
		return err
	}
	c.clearSelection()
	return nil
}

// Send persists the user's message, then starts a generation with the full
// ordered conversation including that message. The user message is
// appended only once the server confirms it, so a persist failure leaves
// no local state. Rejected while a generation is in flight.
func (c *Controller) Send(ctx context.Context, content string) error {
	if _, ok := c.Active(); !ok {
		return ErrNoActiveConversation
	}
	if c.GenerationState() != chattypes.GenerationIdle {
		return stream.ErrGenerationActive
	}

	if _, err := c.log.Persist(ctx, chattypes.RoleUser, content); err != nil {
		return err
	}
	c.broadcast()

	return c.generator.Start(ctx, c.log.Turns())
}

// Cancel aborts the in-flight generation, discarding any accumulated text.
func (c *Controller) Cancel() bool {
	return c.generator.Cancel()
}

// Wait blocks until the current generation completes and returns its
// outcome. Intended for non-interactive callers such as the CLI.
func (c *Controller) Wait(ctx context.Context) error {
	return c.generator.Accumulator().Wait(ctx)
}

// finalizeReply persists a completed assistant reply into the log. Called
// by the accumulator on natural stream end with non-empty text.
func (c *Controller) finalizeReply(text string) error {
	// The stream outlives the Send call's context
	_, err := c.log.Persist(context.Background(), chattypes.RoleAssistant, text)
	return err
}

func (c *Controller) clearSelection() {
	c.mu.Lock()
	c.active = nil
	c.mu.Unlock()
	c.log.Reset("")
	logger.Debug("Active conversation cleared")
	c.broadcast()
}

func (c *Controller) broadcast() {
	c.mu.RLock()
	listeners := make([]func(Snapshot), len(c.listeners))
	copy(listeners, c.listeners)
	var active *chattypes.Conversation
	if c.active != nil {
		copied := *c.active
		active = &copied
	}
	c.mu.RUnlock()

	snap := Snapshot{
		Active:       active,
		Generation:   c.GenerationState(),
		StreamText:   c.StreamText(),
		MessageCount: c.log.Len(),
	}
	for _, fn := range listeners {
		fn(snap)
	}
}
