// Package chattypes defines the shared data types for parley conversation
// session clients. These types mirror the backend's wire representations and
// are used across the auth, conversation, stream, and controller packages.
package chattypes

// Role identifies the author of a message. The backend accepts exactly two
// roles: "user" and "assistant".
type Role string

const (
	// RoleUser marks a message written by the authenticated user.
	RoleUser Role = "user"
	// RoleAssistant marks a message produced by the backend's assistant.
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one the backend understands.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Conversation is a chat owned by the authenticated user. The id is assigned
// by the server and stable; an empty name means "unnamed".
type Conversation struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	UserID                string `json:"user_id"`
	AssistantID           string `json:"assistant_id"`
	IsAssistantResponding bool   `json:"is_assistant_responding"`
}

// Message is a persisted conversation entry. ChatIndex is assigned by the
// server, strictly increasing per conversation, and is the sole ordering key.
type Message struct {
	ID        string `json:"id"`
	ChatID    string `json:"chat_id"`
	ChatIndex int    `json:"chat_index"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
}

// Turn is the reduced wire form of a message sent to the generation endpoint:
// role and content only, no identity or ordering metadata.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserProfile is the record returned by GET /user for the authenticated
// identity. SystemChatID is the designated system conversation used by the
// backend for out-of-band messages.
type UserProfile struct {
	ID              string `json:"id"`
	Phone           string `json:"phone"`
	ReferralCode    string `json:"referral_code"`
	IsPhoneVerified bool   `json:"is_phone_verified"`
	SystemChatID    string `json:"twilio_chat_id"`
}

// GenerationState tracks the lifecycle of a streaming generation request.
// Exactly one generation may be active per session controller at a time.
type GenerationState int

const (
	// GenerationIdle means no generation is in flight.
	GenerationIdle GenerationState = iota
	// GenerationActive means a streaming connection is open and fragments
	// are being accumulated.
	GenerationActive
	// GenerationDone means the stream ended and the accumulated reply is
	// being finalized into the message log.
	GenerationDone
)

// String returns the lowercase name of the generation state.
func (s GenerationState) String() string {
	switch s {
	case GenerationIdle:
		return "idle"
	case GenerationActive:
		return "generating"
	case GenerationDone:
		return "done"
	default:
		return "unknown"
	}
}
