package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/wager-royale/backend/internal/auth"
	"github.com/wager-royale/backend/internal/config"
	"github.com/wager-royale/backend/internal/events"
	"go.uber.org/zap"
)

// WSHub forwards wager events to the creator, the joiner and every
// connected operator.
type WSHub struct {
	cfg         *config.Config
	subscriber  events.Subscriber
	log         *zap.Logger
	mu          sync.RWMutex
	connections map[uuid.UUID][]*websocket.Conn
}

func NewWSHub(cfg *config.Config, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		cfg:         cfg,
		subscriber:  subscriber,
		log:         log.Named("ws"),
		connections: make(map[uuid.UUID][]*websocket.Conn),
	}
}

func (h *WSHub) Start(ctx context.Context) error {
	return h.subscriber.Subscribe(ctx, events.StreamWager, h.dispatch)
}

func (h *WSHub) dispatch(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	// exclusive: a websocket.Conn allows one writer at a time
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, userID := range h.recipients(event) {
		for _, conn := range h.connections[userID] {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.log.Debug("ws write failed", zap.String("user_id", userID.String()), zap.Error(err))
			}
		}
	}
}

// recipients must be called with mu held.
func (h *WSHub) recipients(event events.Event) []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	add := func(id uuid.UUID) {
		if id == uuid.Nil || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}

	for _, key := range []string{"creator_id", "joiner_id"} {
		if s, ok := event.Payload[key].(string); ok {
			if id, err := uuid.Parse(s); err == nil {
				add(id)
			}
		}
	}
	for userID := range h.connections {
		if h.cfg.IsOperator(userID) {
			add(userID)
		}
	}
	return out
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) register(userID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	h.connections[userID] = append(h.connections[userID], conn)
	h.mu.Unlock()
}

func (h *WSHub) unregister(userID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.connections[userID]
	for i, c := range conns {
		if c == conn {
			h.connections[userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.connections[userID]) == 0 {
		delete(h.connections, userID)
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	// Токен передаётся в query, браузер не умеет слать заголовки в ws
	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		conn.Close()
		return
	}

	claims, err := auth.ParseJWT(h.cfg.JWTSecret, tokenStr)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		conn.Close()
		return
	}

	userID := claims.UserID
	h.register(userID, conn)
	defer func() {
		h.unregister(userID, conn)
		conn.Close()
	}()

	// Read loop (keep alive / pings)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
