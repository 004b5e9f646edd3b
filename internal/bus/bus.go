// Package bus pushes session events to the GUI collaborator over a
// websocket. Delivery is best-effort: a dead bus is logged and ignored, the
// conversation never depends on it.
package bus

import (
	"encoding/json"
	log "log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"aria/internal/assistant"
)

type Event struct {
	Kind      string `json:"kind"`
	State     string `json:"state,omitempty"`
	Who       string `json:"who,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

type Bus struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func New(wsURL string) (*Bus, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, err
	}

	log.Info("Connected to UI bus", "url", wsURL)
	return &Bus{conn: conn}, nil
}

func (b *Bus) emit(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		log.Error("Failed to marshal bus event", "err", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Warn("Failed to emit bus event", "kind", e.Kind, "err", err)
	}
}

func (b *Bus) StateChanged(s assistant.State) {
	b.emit(Event{Kind: "state_change", State: s.String()})
}

func (b *Bus) Message(who, text string) {
	b.emit(Event{
		Kind:      "display_message",
		Who:       who,
		Message:   text,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (b *Bus) Deactivated() {
	b.emit(Event{Kind: "deactivate_window"})
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn.Close()
}

// Nop satisfies the notifier contract when no GUI is attached.
type Nop struct{}

func (Nop) StateChanged(assistant.State) {}
func (Nop) Message(string, string) {}
func (Nop) Deactivated() {}
