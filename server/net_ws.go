package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 5 * time.Second
	readTimeout  = 60 * time.Second
	maxFrameSize = 1 << 20 // 1MB
)

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	ws     *websocket.Conn
	send   chan []byte
	closed chan struct{}
	once   sync.Once

	metrics *Metrics
}

func NewClientConn(ws *websocket.Conn, queueSize int, metrics *Metrics) *ClientConn {
	if queueSize <= 0 {
		queueSize = 64
	}
	if metrics == nil {
		metrics = &Metrics{}
	}
	return &ClientConn{
		ws:      ws,
		send:    make(chan []byte, queueSize),
		closed:  make(chan struct{}),
		metrics: metrics,
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞）。
// 队列满时丢弃最旧的一条而不是新到的：后来的全量快照总是覆盖先前的，
// 丢最旧能让慢客户端尽量贴近最新状态
func (c *ClientConn) Enqueue(b []byte) {
	for {
		select {
		case <-c.closed:
			return
		default:
		}
		select {
		case c.send <- b:
			return
		default:
		}
		select {
		case <-c.send:
			c.metrics.IncSendDropped()
		default:
		}
	}
}

// Close 关闭底层连接并通知写协程退出；可重复调用
func (c *ClientConn) Close() {
	c.once.Do(func() {
		close(c.closed)
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
}

// writePump 独立协程，负责从 send 队列写出到 WS
func (c *ClientConn) writePump() {
	defer c.Close()
	for {
		select {
		case <-c.closed:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// readPump 读取客户端消息并投递给竞技场；退出时移除对应玩家
func (c *ClientConn) readPump(arena *Arena, id ActorID) {
	defer c.Close()
	defer arena.Leave(id)
	c.ws.SetReadLimit(maxFrameSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(readTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		arena.Deliver(id, payload)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 演示环境：允许所有来源（生产环境需严格限制）
		return true
	},
}

// HandleWS 返回 WebSocket 接入处理器：升级连接、接入竞技场、启动读写协程
func HandleWS(arena *Arena, queueSize int, metrics *Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			Log.Warnf("upgrade error: %v", err)
			return
		}

		client := NewClientConn(ws, queueSize, metrics)
		// 先起写协程，welcome 才能送达
		go client.writePump()

		id, ok := arena.Connect(client)
		if !ok {
			client.Close()
			return
		}
		go client.readPump(arena, id)
	}
}
