package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paydash/internal/shared/testutil"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(logger, nil)
	hub.Start()
	t.Cleanup(hub.Stop)
	return hub
}

func receive(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		var env Envelope
		require.NoError(t, json.Unmarshal(msg, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return Envelope{}
	}
}

func TestHub_RegisterSendsWelcome(t *testing.T) {
	hub := startHub(t)
	client := NewClient(hub, newMockConnection(), "trace-1", nil)

	require.True(t, hub.Register(client))
	env := receive(t, client)

	assert.Equal(t, TypeConnection, env.Type)
	assert.Equal(t, "trace-1", env.TraceID)
	data := env.Data.(map[string]interface{})
	assert.Equal(t, client.ID(), data["client_id"])
	assert.Equal(t, 1, hub.ClientCount())
	assert.Equal(t, "127.0.0.1:8080", client.remoteAddr)
}

func TestHub_Broadcast(t *testing.T) {
	hub := startHub(t)
	a := NewClient(hub, newMockConnection(), "", nil)
	b := NewClient(hub, newMockConnection(), "", nil)
	require.True(t, hub.Register(a))
	require.True(t, hub.Register(b))
	receive(t, a)
	receive(t, b)

	hub.Broadcast("ledger:refreshed", map[string]interface{}{"rows": 4, "source": "demo"})

	for _, c := range []*Client{a, b} {
		env := receive(t, c)
		assert.Equal(t, "ledger:refreshed", env.Type)
		assert.NotEmpty(t, env.Timestamp)
		assert.Equal(t, "demo", env.Data.(map[string]interface{})["source"])
	}

	assert.Eventually(t, func() bool { return hub.Stats().MessagesSent == 2 }, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 2, hub.Stats().TotalConnections)
}

func TestHub_Unregister(t *testing.T) {
	hub := startHub(t)
	client := NewClient(hub, newMockConnection(), "", nil)
	require.True(t, hub.Register(client))

	hub.Unregister(client)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	// Second unregister is ignored
	hub.Unregister(client)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := startHub(t)
	client := NewClient(hub, newMockConnection(), "", nil)
	require.True(t, hub.Register(client))

	// Welcome message plus a full buffer
	assert.Eventually(t, func() bool { return len(client.send) == 1 }, time.Second, 5*time.Millisecond)
	for len(client.send) < cap(client.send) {
		client.send <- []byte(`{}`)
	}

	hub.Broadcast("ledger:refreshed", nil)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_Stop(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(logger, nil)
	hub.Start()
	hub.Start()

	client := NewClient(hub, newMockConnection(), "", nil)
	require.True(t, hub.Register(client))
	receive(t, client)

	hub.Stop()
	hub.Stop()

	_, ok := <-client.send
	assert.False(t, ok, "stop closes client channels")
	assert.Equal(t, 0, hub.ClientCount())

	assert.False(t, hub.Register(NewClient(hub, newMockConnection(), "", nil)))
	hub.Broadcast("ledger:refreshed", nil)
	hub.Unregister(client)

	assert.NotPanics(t, hub.Start, "a stopped hub stays stopped")
	assert.False(t, hub.Register(NewClient(hub, newMockConnection(), "", nil)))
	hub.Stop()
}

func TestHub_StopBeforeStart(t *testing.T) {
	hub := NewHub(nil, nil)
	hub.Stop()
	hub.Start()

	assert.False(t, hub.Register(NewClient(hub, newMockConnection(), "", nil)))
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_BroadcastDropsWhenQueueFull(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	hub := NewHub(logger, nil)

	for i := 0; i < broadcastBuffer+1; i++ {
		hub.Broadcast("ledger:refreshed", i)
	}

	assert.EqualValues(t, 1, hub.Stats().MessagesDropped)
	assert.True(t, logs.ContainsMessage("Broadcast queue full, dropping message"))
}

func TestClient_Pumps(t *testing.T) {
	hub := startHub(t)
	conn := newMockConnection()
	client := NewClient(hub, conn, "", nil)
	require.True(t, hub.Register(client))

	go client.WritePump()
	go client.ReadPump()

	hub.Broadcast("ledger:refreshed", map[string]int{"rows": 4})

	assert.Eventually(t, func() bool { return len(conn.messages()) == 2 }, time.Second, 5*time.Millisecond)
	var env Envelope
	require.NoError(t, json.Unmarshal(conn.messages()[1].Data, &env))
	assert.Equal(t, "ledger:refreshed", env.Type)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, maxMessageSize, conn.limit())
	assert.True(t, conn.isClosed())
}
