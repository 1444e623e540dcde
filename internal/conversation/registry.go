// Package conversation provides the conversation registry (the cached list
// of chats owned by the current identity) and the message log (ordered
// history for the active conversation).
package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"parley/internal/api"
	"parley/internal/logger"
	"parley/pkg/chattypes"
)

// ErrNotFound is returned when a conversation id is not in the local cache.
var ErrNotFound = errors.New("conversation not found")

// Invalidator is the session store's single mutation entry point. Any
// component observing an unauthorized response reports it here instead of
// mutating identity state itself.
type Invalidator interface {
	Invalidate()
}

// Registry fetches and caches the conversations owned by the current
// identity. Display order is insertion order of fetch/create responses;
// the backend defines no ordering.
type Registry struct {
	mu       sync.RWMutex
	client   *api.Client
	session  Invalidator
	notifier chattypes.Notifier
	chats    []chattypes.Conversation
	log      *log.Logger
}

// NewRegistry creates a registry backed by the given API client.
func NewRegistry(client *api.Client, session Invalidator, notifier chattypes.Notifier) *Registry {
	if notifier == nil {
		notifier = chattypes.NopNotifier{}
	}
	return &Registry{
		client:   client,
		session:  session,
		notifier: notifier,
		log:      logger.NewStyledLogger("Registry"),
	}
}

// Refresh replaces the cache with the backend's conversation list.
func (r *Registry) Refresh(ctx context.Context) error {
	chats, err := r.client.ListChats(ctx)
	if err != nil {
		return r.surface("Error fetching chats", err)
	}
	r.mu.Lock()
	r.chats = chats
	r.mu.Unlock()
	r.log.Debug("Conversation list refreshed", "count", len(chats))
	return nil
}

// List returns a copy of the cached conversations.
func (r *Registry) List() []chattypes.Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]chattypes.Conversation, len(r.chats))
	copy(out, r.chats)
	return out
}

// Get looks up a cached conversation by id.
func (r *Registry) Get(id string) (chattypes.Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.chats {
		if c.ID == id {
			return c, true
		}
	}
	return chattypes.Conversation{}, false
}

// Create requests a new conversation. An empty name gets a suggested
// default; the server assigns the authoritative id, and the returned record
// is appended to the cache.
func (r *Registry) Create(ctx context.Context, name string) (chattypes.Conversation, error) {
	if name == "" {
		name = DefaultName()
	}
	chat, err := r.client.CreateChat(ctx, name)
	if err != nil {
		return chattypes.Conversation{}, r.surface("Error creating chat", err)
	}
	r.mu.Lock()
	r.chats = append(r.chats, chat)
	r.mu.Unlock()
	r.log.Debug("Conversation created", "chat_id", chat.ID, "name", chat.Name)
	return chat, nil
}

// Rename updates a conversation's name, then re-fetches the record for
// canonical state. The backend is the source of truth for the persisted
// name; the optimistic local value is never trusted.
func (r *Registry) Rename(ctx context.Context, id, name string) (chattypes.Conversation, error) {
	if err := r.client.RenameChat(ctx, id, name); err != nil {
		return chattypes.Conversation{}, r.surface("Error renaming chat", err)
	}
	chat, err := r.client.GetChat(ctx, id)
	if err != nil {
		return chattypes.Conversation{}, r.surface("Error renaming chat", err)
	}

	r.mu.Lock()
	for i := range r.chats {
		if r.chats[i].ID == chat.ID {
			r.chats[i] = chat
			break
		}
	}
	r.mu.Unlock()
	r.notifier.Success(fmt.Sprintf("Renamed to '%s'", chat.Name))
	return chat, nil
}

// Delete removes the conversation from the backend and the cache.
func (r *Registry) Delete(ctx context.Context, id string) error {
	chat, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := r.client.DeleteChat(ctx, id); err != nil {
		return r.surface("Error deleting chat", err)
	}

	r.mu.Lock()
	kept := r.chats[:0]
	for _, c := range r.chats {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	r.chats = kept
	r.mu.Unlock()

	if chat.Name == "" {
		r.notifier.Success("Chat deleted")
	} else {
		r.notifier.Success(fmt.Sprintf("Deleted %s", chat.Name))
	}
	return nil
}

// surface reports a failure to the user, invalidating the session first
// when the backend rejected our token. Auth failures are never swallowed.
func (r *Registry) surface(msg string, err error) error {
	if errors.Is(err, api.ErrUnauthorized) && r.session != nil {
		r.session.Invalidate()
	}
	r.notifier.Error(msg)
	return err
}
