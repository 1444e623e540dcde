package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"parley/pkg/chattypes"
)

const (
	// completionAction is the control action requesting a chat completion.
	completionAction = "chat_completion"

	writeTimeout = 10 * time.Second
)

// controlFrame is the single message sent after the connection opens,
// carrying the full ordered conversation.
type controlFrame struct {
	Action  string         `json:"action"`
	Payload controlPayload `json:"payload"`
}

type controlPayload struct {
	Conversation []chattypes.Turn `json:"conversation"`
}

// Transport is one live websocket connection to the generation endpoint.
// The connection is single-use: one control frame out, fragments in, then
// closed.
type Transport struct {
	conn        *websocket.Conn
	idleTimeout time.Duration
}

// Dial opens a websocket connection to the given URL. The URL already
// carries the single-use streaming credential as a query parameter; the
// long-lived identity token never touches this channel.
func Dial(ctx context.Context, url string, idleTimeout time.Duration) (*Transport, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial rejected (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return &Transport{conn: conn, idleTimeout: idleTimeout}, nil
}

// SendChatCompletion transmits the control frame with the ordered
// conversation payload.
func (t *Transport) SendChatCompletion(conversation []chattypes.Turn) error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	frame := controlFrame{
		Action:  completionAction,
		Payload: controlPayload{Conversation: conversation},
	}
	if err := t.conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("failed to send control frame: %w", err)
	}
	return nil
}

// Close shuts the connection down, attempting a clean close handshake
// first. Safe to call from any goroutine and more than once.
func (t *Transport) Close() {
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = t.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = t.conn.Close()
}

// ReadLoop pumps inbound frames into sink as events until the stream ends.
// Each received frame refreshes the idle deadline; a silently dead
// connection therefore surfaces as EventErrored instead of hanging forever.
//
// The server signals completion either with an explicit empty terminal
// frame or, for compatibility, by closing the connection; both produce
// EventClosed. The loop returns after delivering a terminal event.
func (t *Transport) ReadLoop(sink func(Event)) {
	for {
		if t.idleTimeout > 0 {
			_ = t.conn.SetReadDeadline(time.Now().Add(t.idleTimeout))
		}
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived, websocket.CloseGoingAway) {
				sink(Event{Kind: EventClosed})
			} else {
				sink(Event{Kind: EventErrored, Err: err})
			}
			_ = t.conn.Close()
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		text := string(data)
		if text == "" {
			// Explicit terminal sentinel: the backend never emits
			// empty fragments mid-stream.
			sink(Event{Kind: EventClosed})
			t.Close()
			return
		}
		sink(Event{Kind: EventFragment, Text: text})
	}
}
