// Package events publishes dialogue events to a websocket hub so dashboards
// or call recorders can follow a session live.
package events

import (
	"encoding/json"
	log "log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ivr/internal/dialogue"
)

const writeTimeout = 2 * time.Second

type Message struct {
	From    string         `json:"from"`
	Kind    string         `json:"kind"`
	Session string         `json:"session"`
	Event   dialogue.Event `json:"event"`
}

// Bus implements dialogue.Observer. Publishing is best effort: a failed write
// is logged and the dialogue carries on.
type Bus struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	from    string
	session string
}

func NewBus(wsURL, from, session string) (*Bus, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, err
	}

	log.Info("Connected to bus", "url", wsURL)
	return &Bus{conn: conn, from: from, session: session}, nil
}

func (b *Bus) Observe(ev dialogue.Event) {
	if err := b.Write(&Message{From: b.from, Kind: "ivr." + string(ev.Kind), Session: b.session, Event: ev}); err != nil {
		log.Warn("Failed to publish event", "kind", ev.Kind, "err", err)
	}
}

func (b *Bus) Write(m *Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	_ = b.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return b.conn.WriteMessage(websocket.TextMessage, data)
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session over")
	_ = b.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
	return b.conn.Close()
}

var _ dialogue.Observer = (*Bus)(nil)
