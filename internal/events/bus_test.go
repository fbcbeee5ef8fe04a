package events

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ivr/internal/dialogue"
)

func TestBus_PublishesEvents(t *testing.T) {
	received := make(chan []byte, 4)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- msg
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	bus, err := NewBus(wsURL, "ivr", "session-1")
	require.NoError(t, err)

	bus.Observe(dialogue.Event{
		Kind:       dialogue.EventTurn,
		Turn:       1,
		State:      "option_selected",
		Transcript: "quero ver meu saldo",
		OptionID:   "balance",
	})
	bus.Observe(dialogue.Event{Kind: dialogue.EventEnd, Turn: 1, State: "terminated", Reason: dialogue.ReasonExit})

	var got []Message
	for i := 0; i < 2; i++ {
		select {
		case raw := <-received:
			var m Message
			require.NoError(t, json.Unmarshal(raw, &m))
			got = append(got, m)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for event")
		}
	}

	assert.Equal(t, "ivr", got[0].From)
	assert.Equal(t, "session-1", got[0].Session)
	assert.Equal(t, "ivr.turn", got[0].Kind)
	assert.Equal(t, "balance", got[0].Event.OptionID)
	assert.Equal(t, "quero ver meu saldo", got[0].Event.Transcript)

	assert.Equal(t, "ivr.end", got[1].Kind)
	assert.Equal(t, dialogue.ReasonExit, got[1].Event.Reason)

	assert.NoError(t, bus.Close())
}

func TestNewBus_DialError(t *testing.T) {
	_, err := NewBus("ws://127.0.0.1:1/ws", "ivr", "s")
	assert.Error(t, err)

	_, err = NewBus("://bad", "ivr", "s")
	assert.Error(t, err)
}
