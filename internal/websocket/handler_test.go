package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_ServeHTTP(t *testing.T) {
	hub := startHub(t)
	srv := httptest.NewServer(NewHandler(hub, nil, nil))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var welcome Envelope
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, TypeConnection, welcome.Type)
	assert.Equal(t, 1, hub.ClientCount())

	hub.Broadcast("ledger:refreshed", map[string]string{"fingerprint": "abc"})

	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, "ledger:refreshed", env.Type)
	assert.Equal(t, "abc", env.Data.(map[string]interface{})["fingerprint"])

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_CheckOrigin(t *testing.T) {
	h := NewHandler(nil, []string{"https://dash.example.com"}, nil)

	tests := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{"no origin", "", "localhost:8080", true},
		{"same host", "http://localhost:8080", "localhost:8080", true},
		{"allowed", "https://dash.example.com", "api.internal:8080", true},
		{"foreign", "https://evil.example.com", "localhost:8080", false},
		{"malformed", "://bad", "localhost:8080", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, h.checkOrigin(r))
		})
	}
}

func TestHandler_RejectsForeignOrigin(t *testing.T) {
	hub := startHub(t)
	srv := httptest.NewServer(NewHandler(hub, nil, nil))
	defer srv.Close()

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, hub.ClientCount())
}
