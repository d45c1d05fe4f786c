// Package websocket 把别名列表的状态变化推送给本地 UI。
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"aliaskit/client/internal/logger"
	"aliaskit/client/internal/monitoring"
	"aliaskit/client/internal/repository"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	hubPingPeriod  = 30 * time.Second
	sendBufferSize = 16
)

// originChecker 无 Origin 的本地客户端放行，其余按白名单匹配
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// MessageType 定义WebSocket消息类型
type MessageType string

const (
	MessageTypeSnapshot MessageType = "snapshot"
	MessageTypePing     MessageType = "ping"
	MessageTypePong     MessageType = "pong"
	MessageTypeError    MessageType = "error"
)

// Message 定义WebSocket消息结构
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Client 代表一个WebSocket客户端连接
type Client struct {
	ID     string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	log    *zap.Logger
	mu     sync.Mutex
	closed bool
}

// Hub 管理所有WebSocket连接。
//
// 只保留最新一份快照：新连接先收到它，之后每次状态变化推送一次。
type Hub struct {
	clients        map[string]*Client
	register       chan *Client
	unregister     chan *Client
	notify         chan struct{}
	done           chan struct{}
	mu             sync.RWMutex
	latest         []byte
	log            *zap.Logger
	metrics        *monitoring.Metrics
	allowedOrigins []string
}

// NewHub 创建WebSocket Hub
func NewHub(allowedOrigins []string, metrics *monitoring.Metrics, log *zap.Logger) *Hub {
	return &Hub{
		clients:        make(map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		notify:         make(chan struct{}, 1),
		done:           make(chan struct{}),
		log:            logger.OrNop(log).Named("websocket"),
		metrics:        metrics,
		allowedOrigins: allowedOrigins,
	}
}

// Run 启动Hub，直到 ctx 结束
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(hubPingPeriod)
	defer ticker.Stop()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.log.Info("websocket hub stopped")
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			latest := h.latest
			count := len(h.clients)
			h.mu.Unlock()
			if latest != nil {
				client.enqueue(latest)
			}
			h.metrics.UpdateWebSocketClients(count)
			h.log.Info("client registered", zap.String("id", client.ID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				client.close()
				h.log.Info("client unregistered", zap.String("id", client.ID))
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.UpdateWebSocketClients(count)

		case <-h.notify:
			h.mu.RLock()
			data := h.latest
			for _, client := range h.clients {
				client.enqueue(data)
			}
			h.mu.RUnlock()

		case <-ticker.C:
			h.pingAllClients()
		}
	}
}

// Publish 记录最新快照并通知所有客户端，不会阻塞
func (h *Hub) Publish(snapshot repository.Snapshot) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		h.log.Error("failed to marshal snapshot", zap.Error(err))
		return
	}
	msg, err := json.Marshal(&Message{
		Type:      MessageTypeSnapshot,
		Data:      data,
		Timestamp: time.Now(),
	})
	if err != nil {
		h.log.Error("failed to marshal message", zap.Error(err))
		return
	}

	h.mu.Lock()
	h.latest = msg
	h.mu.Unlock()

	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// Forward 把仓库的快照流转发给客户端，直到 ctx 结束或通道关闭
func (h *Hub) Forward(ctx context.Context, updates <-chan repository.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-updates:
			if !ok {
				return
			}
			h.Publish(snapshot)
		}
	}
}

// ClientCount 返回当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// pingAllClients 向所有客户端发送ping
func (h *Hub) pingAllClients() {
	data, err := json.Marshal(&Message{Type: MessageTypePing, Timestamp: time.Now()})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		client.enqueue(data)
	}
}

// closeAllClients 关闭所有客户端连接
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		client.close()
	}
	h.clients = make(map[string]*Client)
	h.metrics.UpdateWebSocketClients(0)
}

// HandleWebSocket 处理WebSocket连接，认证由前置中间件完成
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(hub.allowedOrigins),
	}

	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Warn("failed to upgrade connection",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")))
			return
		}

		client := &Client{
			ID:   uuid.NewString(),
			conn: conn,
			send: make(chan []byte, sendBufferSize),
			hub:  hub,
			log:  hub.log,
		}
		select {
		case hub.register <- client:
		case <-hub.done:
			conn.Close()
			return
		}

		go client.writeLoop()
		go client.readLoop()
	}
}

// enqueue 非阻塞发送，缓冲已满或连接已关闭时丢弃
func (c *Client) enqueue(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.log.Warn("client channel blocked, skipping", zap.String("clientID", c.ID))
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readLoop 读取客户端消息直到连接断开，退出时从 Hub 注销
func (c *Client) readLoop() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	extend := func() { _ = c.conn.SetReadDeadline(time.Now().Add(pongWait)) }
	extend()
	c.conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("unexpected websocket close", zap.String("clientID", c.ID), zap.Error(err))
			}
			return
		}
		extend()
		c.reply(msg)
	}
}

// reply 应答客户端心跳，其余类型一律报错
func (c *Client) reply(msg Message) {
	now := time.Now()
	switch msg.Type {
	case MessageTypePong:
	case MessageTypePing:
		c.sendMessage(&Message{Type: MessageTypePong, Timestamp: now})
	default:
		c.sendMessage(&Message{Type: MessageTypeError, Error: "unknown message type", Timestamp: now})
	}
}

// writeLoop 串行写出队列中的消息，并定期发送协议层 ping
func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.conn.Close()

	write := func(kind int, payload []byte) error {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.conn.WriteMessage(kind, payload)
	}

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				_ = write(websocket.CloseMessage, []byte{})
				return
			}
			if err := write(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendMessage 编码后放入发送队列
func (c *Client) sendMessage(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("failed to marshal message", zap.Error(err))
		return
	}
	c.enqueue(data)
}
