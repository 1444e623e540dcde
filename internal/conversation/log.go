package conversation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"parley/internal/api"
	"parley/internal/logger"
	"parley/pkg/chattypes"
)

// ErrNoConversation is returned by log operations when no conversation is
// selected. Callers must not operate on a stale id.
var ErrNoConversation = errors.New("no active conversation")

// maxFetchConcurrency bounds the per-index history fan-out.
const maxFetchConcurrency = 8

// Log holds the ordered message history for the currently active
// conversation only. Switching conversations discards the previous log.
// The snapshot view is always sorted ascending by chat index regardless of
// fetch completion order.
type Log struct {
	mu       sync.RWMutex
	client   *api.Client
	session  Invalidator
	notifier chattypes.Notifier
	failSoft bool
	log      *log.Logger

	chatID   string
	messages []chattypes.Message
}

// NewLog creates a message log. With failSoft set, a failed fetch for one
// index is reported but does not abort loading the others; unauthorized
// responses always abort regardless.
func NewLog(client *api.Client, session Invalidator, notifier chattypes.Notifier, failSoft bool) *Log {
	if notifier == nil {
		notifier = chattypes.NopNotifier{}
	}
	return &Log{
		client:   client,
		session:  session,
		notifier: notifier,
		failSoft: failSoft,
		log:      logger.NewStyledLogger("MessageLog"),
	}
}

// Reset clears the log and binds it to a new conversation id. An empty id
// leaves the log unbound.
func (l *Log) Reset(chatID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.chatID = chatID
	l.messages = nil
}

// ChatID returns the conversation the log is bound to, if any.
func (l *Log) ChatID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chatID
}

// Len returns the number of messages currently held.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Load replaces the log with the full history of the bound conversation.
// The length is fetched first, then each index concurrently; results are
// reassembled by chat index before committing, so arrival order is
// irrelevant.
func (l *Log) Load(ctx context.Context) error {
	chatID := l.ChatID()
	if chatID == "" {
		return ErrNoConversation
	}

	count, err := l.client.MessageCount(ctx, chatID)
	if err != nil {
		return l.surface("Error fetching messages", err)
	}

	fetched := make([]chattypes.Message, count)
	ok := make([]bool, count)
	var okMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxFetchConcurrency)
	for i := 0; i < count; i++ {
		g.Go(func() error {
			msg, err := l.client.GetMessage(gctx, chatID, i)
			if err != nil {
				// A dead token aborts the whole load even in
				// fail-soft mode.
				if !l.failSoft || errors.Is(err, api.ErrUnauthorized) {
					return err
				}
				l.log.Warn("Skipping unreadable message", "chat_id", chatID, "chat_index", i, "error", err)
				l.notifier.Error("Error fetching messages")
				return nil
			}
			okMu.Lock()
			fetched[i] = msg
			ok[i] = true
			okMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return l.surface("Error fetching messages", err)
	}

	loaded := make([]chattypes.Message, 0, count)
	for i := 0; i < count; i++ {
		if ok[i] {
			loaded = append(loaded, fetched[i])
		}
	}
	sort.Slice(loaded, func(a, b int) bool {
		return loaded[a].ChatIndex < loaded[b].ChatIndex
	})

	l.mu.Lock()
	// The active conversation may have changed while fetching
	if l.chatID != chatID {
		l.mu.Unlock()
		return nil
	}
	l.messages = loaded
	l.mu.Unlock()

	l.log.Debug("Message history loaded", "chat_id", chatID, "count", len(loaded))
	return nil
}

// Append adds a server-confirmed message to the in-memory log without a
// network call, keeping the ascending chat-index order. Messages for a
// different conversation are ignored.
func (l *Log) Append(msg chattypes.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.chatID == "" || (msg.ChatID != "" && msg.ChatID != l.chatID) {
		return
	}
	l.messages = append(l.messages, msg)
	sort.Slice(l.messages, func(a, b int) bool {
		return l.messages[a].ChatIndex < l.messages[b].ChatIndex
	})
}

// Persist posts a new message for the bound conversation and appends the
// canonical record returned by the server. User messages are not rendered
// optimistically: they appear only once the server confirms them.
func (l *Log) Persist(ctx context.Context, role chattypes.Role, content string) (chattypes.Message, error) {
	chatID := l.ChatID()
	if chatID == "" {
		return chattypes.Message{}, ErrNoConversation
	}
	msg, err := l.client.PostMessage(ctx, chatID, role, content)
	if err != nil {
		return chattypes.Message{}, l.surface("Error posting message", err)
	}
	l.Append(msg)
	return msg, nil
}

// Snapshot returns a copy of the log, sorted ascending by chat index.
func (l *Log) Snapshot() []chattypes.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]chattypes.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Turns returns the log as the reduced wire form used for generation
// payloads, in chat-index order, with any extra turns appended.
func (l *Log) Turns(extra ...chattypes.Turn) []chattypes.Turn {
	snap := l.Snapshot()
	out := make([]chattypes.Turn, 0, len(snap)+len(extra))
	for _, m := range snap {
		out = append(out, chattypes.Turn{Role: m.Role, Content: m.Content})
	}
	return append(out, extra...)
}

func (l *Log) surface(msg string, err error) error {
	if errors.Is(err, api.ErrUnauthorized) && l.session != nil {
		l.session.Invalidate()
	}
	l.notifier.Error(msg)
	return fmt.Errorf("message log: %w", err)
}
