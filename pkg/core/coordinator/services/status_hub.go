package services

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// StatusHub websocket实时状态流
// 向所有已连接的监控端广播轮次阶段变化
type StatusHub struct {
	mu       sync.Mutex
	conns    map[*websocket.Conn]bool
	upgrader websocket.Upgrader
}

// NewStatusHub 创建新的状态流中心
func NewStatusHub() *StatusHub {
	return &StatusHub{
		conns: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			// 监控端无需同源校验
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle 将HTTP请求升级为websocket连接并登记
func (h *StatusHub) Handle(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket升级失败: %w", err)
	}

	h.mu.Lock()
	h.conns[conn] = true
	h.mu.Unlock()

	// 读循环只用于感知断开
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.remove(conn)
				return
			}
		}
	}()
	return nil
}

// Broadcast 向所有连接广播一条JSON状态消息
func (h *StatusHub) Broadcast(msg map[string]interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns {
		if err := conn.WriteJSON(msg); err != nil {
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

func (h *StatusHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn.Close()
	delete(h.conns, conn)
}
