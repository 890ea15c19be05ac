package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// 案件变更事件类型
const (
	CaseCreated    = "case.created"
	CaseUpdated    = "case.updated"
	CaseDeleted    = "case.deleted"
	CaseFormalized = "case.formalized"
)

const sinkTimeout = 5 * time.Second

// Event represents a Server-Sent Event
type Event struct {
	EventType string `json:"event"`
	Data      string `json:"data"`
}

// CaseEvent 案件变更通知
type CaseEvent struct {
	Type       string    `json:"type"`
	CaseID     string    `json:"case_id"`
	PreviousID string    `json:"previous_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	At         time.Time `json:"at"`
}

// Client represents a connected SSE or WebSocket client
type Client struct {
	ID     string
	UserID string
	Events chan Event
}

// Sink 把事件转发到实例之外（Redis、RabbitMQ）
type Sink interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

// Hub manages all client connections
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	sinks   []Sink
	logger  *zap.Logger
}

// NewHub creates a new Hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// AddSink 注册外部转发
func (h *Hub) AddSink(s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks = append(h.sinks, s)
}

// Register adds a new client to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	h.logger.Debug("client registered",
		zap.String("client_id", client.ID),
		zap.String("user_id", client.UserID),
		zap.Int("total", len(h.clients)))
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Events)
		delete(h.clients, clientID)
		h.logger.Debug("client unregistered",
			zap.String("client_id", clientID),
			zap.Int("total", len(h.clients)))
	}
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event to all connected clients, never blocks
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Events <- event:
		default:
			h.logger.Warn("client buffer full, skipping event", zap.String("client_id", client.ID))
		}
	}
}

// Deliver 只推送给本实例的客户端，用于接收远端实例转来的事件
func (h *Hub) Deliver(ev CaseEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal case event", zap.Error(err))
		return
	}
	h.Broadcast(Event{EventType: ev.Type, Data: string(data)})
}

// PublishCase 推送案件事件并转发到外部
func (h *Hub) PublishCase(ev CaseEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal case event", zap.Error(err))
		return
	}
	h.Broadcast(Event{EventType: ev.Type, Data: string(data)})

	h.mu.RLock()
	sinks := append([]Sink(nil), h.sinks...)
	h.mu.RUnlock()

	for _, s := range sinks {
		go func(s Sink) {
			ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
			defer cancel()
			if err := s.Publish(ctx, ev.Type, data); err != nil {
				h.logger.Warn("forward case event failed",
					zap.String("type", ev.Type),
					zap.String("case_id", ev.CaseID),
					zap.Error(err))
			}
		}(s)
	}
}

// DecodeCaseEvent 解析外部转来的事件
func DecodeCaseEvent(payload []byte) (CaseEvent, error) {
	var ev CaseEvent
	err := json.Unmarshal(payload, &ev)
	return ev, err
}
