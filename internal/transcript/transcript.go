// Package transcript renders a conversation's message history into a
// portable YAML document, for archiving or sharing outside the backend.
package transcript

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"parley/pkg/chattypes"
)

// Document is the exported form of one conversation.
type Document struct {
	Chat       ChatInfo `yaml:"chat"`
	ExportedAt string   `yaml:"exported_at"`
	Messages   []Entry  `yaml:"messages"`
}

// ChatInfo identifies the exported conversation.
type ChatInfo struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Entry is one message in the transcript.
type Entry struct {
	Index   int    `yaml:"index"`
	Role    string `yaml:"role"`
	Content string `yaml:"content"`
}

// Export writes the conversation and its messages to w as YAML. Messages
// must already be in ascending chat-index order; the log guarantees this.
func Export(w io.Writer, chat chattypes.Conversation, messages []chattypes.Message) error {
	doc := Document{
		Chat:       ChatInfo{ID: chat.ID, Name: chat.Name},
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Messages:   make([]Entry, 0, len(messages)),
	}
	for _, m := range messages {
		doc.Messages = append(doc.Messages, Entry{
			Index:   m.ChatIndex,
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}
	return enc.Close()
}
