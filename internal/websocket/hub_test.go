package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aliaskit/client/internal/domain"
	"aliaskit/client/internal/repository"
)

func newTestHub(t *testing.T) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub([]string{"http://localhost"}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	router := gin.New()
	router.GET("/ws", HandleWebSocket(hub))
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return hub, "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func readSnapshot(t *testing.T, conn *websocket.Conn) repository.Snapshot {
	t.Helper()
	msg := readMessage(t, conn)
	require.Equal(t, MessageTypeSnapshot, msg.Type)
	var snapshot repository.Snapshot
	require.NoError(t, json.Unmarshal(msg.Data, &snapshot))
	return snapshot
}

func TestHub(t *testing.T) {
	t.Run("新连接收到最新快照并接收后续推送", func(t *testing.T) {
		hub, url := newTestHub(t)
		hub.Publish(repository.Snapshot{Cursor: 1, MoreToLoad: true})

		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer conn.Close()

		first := readSnapshot(t, conn)
		assert.Equal(t, 1, first.Cursor)

		hub.Publish(repository.Snapshot{
			Aliases: []domain.Alias{{ID: 7, Email: "a@sl.test"}},
			Cursor:  2,
		})
		second := readSnapshot(t, conn)
		assert.Equal(t, 2, second.Cursor)
		require.Len(t, second.Aliases, 1)
		assert.Equal(t, int64(7), second.Aliases[0].ID)

		assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	})

	t.Run("客户端 ping 得到 pong", func(t *testing.T) {
		_, url := newTestHub(t)

		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.WriteJSON(Message{Type: MessageTypePing}))
		assert.Equal(t, MessageTypePong, readMessage(t, conn).Type)

		require.NoError(t, conn.WriteJSON(Message{Type: "subscribe"}))
		assert.Equal(t, MessageTypeError, readMessage(t, conn).Type)
	})

	t.Run("拒绝未知来源", func(t *testing.T) {
		_, url := newTestHub(t)

		header := map[string][]string{"Origin": {"http://evil.test"}}
		_, resp, err := websocket.DefaultDialer.Dial(url, header)
		assert.Error(t, err)
		if resp != nil {
			assert.Equal(t, 403, resp.StatusCode)
		}
	})

	t.Run("断开后注销", func(t *testing.T) {
		hub, url := newTestHub(t)

		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

		conn.Close()
		assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("转发仓库快照", func(t *testing.T) {
		hub, url := newTestHub(t)
		updates := make(chan repository.Snapshot, 1)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go hub.Forward(ctx, updates)

		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer conn.Close()
		assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

		updates <- repository.Snapshot{Term: "shop"}
		assert.Equal(t, "shop", readSnapshot(t, conn).Term)
	})
}
