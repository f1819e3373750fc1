package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"biblo-chat-be/internal/dto"
	"biblo-chat-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(c *Client) []string {
	var out []string
	for msg := range c.Send {
		out = append(out, string(msg))
	}
	return out
}

func TestHub_NotifySessionEndedClosesClients(t *testing.T) {
	hub := NewHub(nil, nil, logger.NewNopLogger())
	a := newClient(hub, nil, "s-1")
	b := newClient(hub, nil, "s-1")
	other := newClient(hub, nil, "s-2")
	hub.register(a)
	hub.register(b)
	hub.register(other)
	require.Equal(t, 2, hub.ClientCount("s-1"))

	hub.NotifySessionEnded(context.Background(), "s-1")

	for _, c := range []*Client{a, b} {
		msgs := drain(c)
		require.Len(t, msgs, 1)
		var frame dto.StreamFrame
		require.NoError(t, json.Unmarshal([]byte(msgs[0]), &frame))
		assert.Equal(t, dto.FrameSessionStatus, frame.Type)
		assert.Equal(t, dto.SessionStatusEnded, frame.Status)
	}
	assert.Zero(t, hub.ClientCount("s-1"))
	assert.Equal(t, 1, hub.ClientCount("s-2"))
	assert.True(t, other.enqueue([]byte("x")))
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	hub := NewHub(nil, nil, logger.NewNopLogger())
	c := newClient(hub, nil, "s-1")
	hub.register(c)

	hub.unregister(c)
	hub.unregister(c)

	assert.Zero(t, hub.ClientCount("s-1"))
	assert.False(t, c.enqueue([]byte("late")))

	// Ending a session after its socket left must not panic.
	hub.NotifySessionEnded(context.Background(), "s-1")
}

func TestClient_HandleText(t *testing.T) {
	var mu sync.Mutex
	var touched []string
	hub := NewHub(nil, func(id string) bool {
		mu.Lock()
		defer mu.Unlock()
		touched = append(touched, id)
		return true
	}, logger.NewNopLogger())
	c := newClient(hub, nil, "s-1")

	assert.True(t, c.handleText("ping"))
	assert.True(t, c.handleText("hello"))
	c.close()

	assert.Equal(t, []string{"pong"}, drain(c))
	assert.Equal(t, []string{"s-1", "s-1"}, touched)
}

func TestClient_HandleTextOnEndedSession(t *testing.T) {
	hub := NewHub(nil, func(string) bool { return false }, logger.NewNopLogger())
	c := newClient(hub, nil, "s-1")

	assert.False(t, c.handleText("ping"))
	c.close()
	assert.Empty(t, drain(c))
}

func TestHub_ClusterMessage(t *testing.T) {
	hub := NewHub(nil, nil, logger.NewNopLogger())
	frame := json.RawMessage(`{"type":"session_status","status":"ended"}`)

	tests := []struct {
		name      string
		origin    string
		wantClose bool
	}{
		{name: "from another instance", origin: "other", wantClose: true},
		{name: "own echo is ignored", origin: hub.instanceID, wantClose: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(hub, nil, "s-1")
			hub.register(c)
			defer hub.unregister(c)

			raw, err := json.Marshal(clusterMessage{Origin: tt.origin, SessionID: "s-1", Message: frame})
			require.NoError(t, err)
			hub.handleClusterMessage(raw)

			if tt.wantClose {
				assert.Equal(t, []string{string(frame)}, drain(c))
				assert.Zero(t, hub.ClientCount("s-1"))
			} else {
				assert.Equal(t, 1, hub.ClientCount("s-1"))
				assert.Empty(t, c.Send)
			}
		})
	}
}

func TestHub_RunWithoutRedisStopsOnCancel(t *testing.T) {
	hub := NewHub(nil, nil, logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, hub.Run(ctx))
}
