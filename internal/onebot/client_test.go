package onebot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/blockgate/internal/event"
)

// startTestEndpoint runs a WebSocket server whose handler receives
// each upgraded connection, and a client connected to it.
func startTestEndpoint(t *testing.T, handler func(conn *websocket.Conn)) (*Client, chan struct{}) {
	t.Helper()

	connected := make(chan struct{}, 4)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connected <- struct{}{}
		handler(conn)
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client := New(wsURL, "", time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go client.Run(ctx)

	select {
	case <-connected:
	case <-time.After(5 * time.Second):
		t.Fatal("client never connected")
	}
	// The server-side upgrade can finish before the client goroutine
	// stores the connection; wait until the client side is ready too.
	require.Eventually(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.conn != nil
	}, 5*time.Second, time.Millisecond)
	return client, connected
}

func TestClient_DeliversClassifiedEvents(t *testing.T) {
	client, _ := startTestEndpoint(t, func(conn *websocket.Conn) {
		payload := `{"post_type":"message","message_type":"group","self_id":100,"user_id":200,"group_id":300,"raw_message":"hi"}`
		conn.WriteMessage(websocket.TextMessage, []byte(payload))
		// Keep the connection open until the server shuts down.
		conn.ReadMessage()
	})

	select {
	case ev := <-client.Events():
		assert.Equal(t, event.KindGroupMessage, ev.Kind)
		assert.Equal(t, "300", ev.GroupID)
	case <-time.After(5 * time.Second):
		t.Fatal("no event delivered")
	}
}

func TestClient_GroupIDsRoundTrip(t *testing.T) {
	client, _ := startTestEndpoint(t, func(conn *websocket.Conn) {
		for {
			var req apiRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			if req.Action != "get_group_list" {
				continue
			}
			resp := map[string]any{
				"status":  "ok",
				"retcode": 0,
				"data":    []map[string]any{{"group_id": 11}, {"group_id": 12}},
				"echo":    req.Echo,
			}
			conn.WriteJSON(resp)
		}
	})

	ids, err := client.GroupIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"11", "12"}, ids)
}

func TestClient_APIFailureReported(t *testing.T) {
	client, _ := startTestEndpoint(t, func(conn *websocket.Conn) {
		for {
			var req apiRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			conn.WriteJSON(map[string]any{
				"status":  "failed",
				"retcode": 1400,
				"echo":    req.Echo,
			})
		}
	})

	err := client.SendPrivate(context.Background(), "200", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1400")
}

func TestClient_SendPrivateRejectsBadID(t *testing.T) {
	client := New("ws://unused", "", time.Hour, nil)
	err := client.SendPrivate(context.Background(), "not-a-number", "hello")
	assert.Error(t, err)
}

func TestClient_CallWithoutConnection(t *testing.T) {
	client := New("ws://unused", "", time.Hour, nil)
	_, err := client.GroupIDs(context.Background())
	assert.Error(t, err)
}

func TestClient_EventAndResponseInterleave(t *testing.T) {
	client, _ := startTestEndpoint(t, func(conn *websocket.Conn) {
		for {
			var req apiRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			// An unrelated event arrives before the API response.
			conn.WriteMessage(websocket.TextMessage,
				[]byte(`{"post_type":"message","message_type":"private","self_id":100,"user_id":200,"raw_message":"x"}`))
			data, _ := json.Marshal(map[string]any{
				"status":  "ok",
				"retcode": 0,
				"data":    []map[string]any{{"user_id": 21}},
				"echo":    req.Echo,
			})
			conn.WriteMessage(websocket.TextMessage, data)
		}
	})

	ids, err := client.FriendIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"21"}, ids)

	select {
	case ev := <-client.Events():
		assert.Equal(t, event.KindPrivateMessage, ev.Kind)
	case <-time.After(5 * time.Second):
		t.Fatal("interleaved event lost")
	}
}
