package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"medguard-alert/internal/cache"
	"medguard-alert/internal/domain"
)

const (
	// pongWait 超过该时长未收到 pong 即判定连接失效
	pongWait = 60 * time.Second
	// pingInterval 必须小于 pongWait
	pingInterval = 25 * time.Second
)

// Snapshot 活跃报警快照消息
type Snapshot struct {
	Type       string          `json:"type"` // "active_alerts"
	HospitalID string          `json:"hospital_id"`
	Alerts     []*domain.Alert `json:"alerts"`
	Timestamp  int64           `json:"timestamp"`
}

// Hub 活跃报警 WebSocket 推送中心
// 周期性地从缓存读取各医院的活跃报警快照，推送给订阅该医院的连接。
// 客户端通过 ?hospital_id= 查询参数订阅
type Hub struct {
	activeCache *cache.ActiveAlertCache
	logger      *zap.Logger
	interval    time.Duration
	upgrader    websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]string // conn → hospital_id
}

// NewHub 创建推送中心
func NewHub(activeCache *cache.ActiveAlertCache, interval time.Duration, logger *zap.Logger) *Hub {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Hub{
		activeCache: activeCache,
		logger:      logger,
		interval:    interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// 前端部署在独立域名，放行跨域握手
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]string),
	}
}

// ServeHTTP 处理 WebSocket 握手
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	hospitalID := r.URL.Query().Get("hospital_id")
	if hospitalID == "" {
		hospitalID = r.Header.Get("X-Hospital-Id")
	}
	if hospitalID == "" {
		http.Error(w, "hospital_id is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	h.clients[conn] = hospitalID
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("WebSocket client connected",
		zap.String("hospital_id", hospitalID),
		zap.Int("client_count", count),
	)

	// 读循环只用于探测连接关闭和 pong 应答，收到的消息丢弃
	go func() {
		defer h.remove(conn)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Run 启动广播循环（阻塞，ctx 取消后关闭所有连接并返回）
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	pinger := time.NewTicker(pingInterval)
	defer pinger.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.logger.Info("WebSocket hub stopped")
			return
		case <-ticker.C:
			h.broadcast(ctx)
		case <-pinger.C:
			h.pingAll()
		}
	}
}

// pingAll 向所有连接发送 ping，写失败即摘除
func (h *Hub) pingAll() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
			h.remove(conn)
		}
	}
}

// broadcast 向每个连接推送其医院的活跃报警快照
func (h *Hub) broadcast(ctx context.Context) {
	h.mu.Lock()
	byHospital := make(map[string][]*websocket.Conn)
	for conn, hospitalID := range h.clients {
		byHospital[hospitalID] = append(byHospital[hospitalID], conn)
	}
	h.mu.Unlock()

	now := time.Now().Unix()
	for hospitalID, conns := range byHospital {
		alerts, err := h.activeCache.GetActiveAlerts(ctx, hospitalID)
		if err != nil {
			h.logger.Warn("Failed to read active alert snapshot",
				zap.String("hospital_id", hospitalID),
				zap.Error(err),
			)
			continue
		}
		if alerts == nil {
			alerts = []*domain.Alert{}
		}

		snapshot := Snapshot{
			Type:       "active_alerts",
			HospitalID: hospitalID,
			Alerts:     alerts,
			Timestamp:  now,
		}

		for _, conn := range conns {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(snapshot); err != nil {
				h.logger.Debug("WebSocket write failed, dropping client",
					zap.String("hospital_id", hospitalID),
					zap.Error(err),
				)
				h.remove(conn)
			}
		}
	}
}

// remove 注销并关闭连接
func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
	}
	h.mu.Unlock()
	conn.Close()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}
