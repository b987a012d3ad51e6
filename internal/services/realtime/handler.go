package realtime

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"securecart/internal/models"
)

const claimsKey = "ws_claims"

// Upgrade authenticates the token query parameter before the websocket
// handshake. It must run in front of Handler.
func (h *Hub) Upgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		token := c.Query("token")
		if token == "" {
			if h.opts.AuthRequired {
				return fiber.NewError(fiber.StatusUnauthorized, "authentication token required")
			}
			return c.Next()
		}
		if h.deps.Auth == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "authentication unavailable")
		}
		claims, err := h.deps.Auth.ValidateToken(c.UserContext(), token)
		if err != nil {
			log.Printf("⚠️ Unauthenticated WebSocket connection attempt from %s", c.IP())
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}
		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

// Handler serves an upgraded connection.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(h.serve, websocket.Config{Origins: h.opts.AllowedOrigins})
}

func (h *Hub) serve(conn *websocket.Conn) {
	claims, _ := conn.Locals(claimsKey).(*models.UserClaims)
	if claims == nil {
		if h.opts.AuthRequired {
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthenticated"))
			_ = conn.Close()
			return
		}
		claims = &models.UserClaims{UserID: "guest_" + uuid.NewString()[:8], Username: "guest", Role: models.RoleUser}
	}
	if h.opts.MaxMessageSize > 0 {
		conn.SetReadLimit(h.opts.MaxMessageSize)
	}

	client := NewClient(uuid.NewString(), claims, h.opts.SendBuffer, h.now())
	conn.SetPongHandler(func(string) error {
		client.touch(h.now())
		return nil
	})
	h.Register(client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// conn goes back to a pool when serve returns, so the writer must be
	// finished by then.
	written := make(chan struct{})
	go func() {
		defer close(written)
		h.writeLoop(conn, client)
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			break
		}
		h.HandleMessage(ctx, client, frame)
	}
	h.Unregister(client)
	<-written
}

// writeLoop is the only writer of conn. It closes conn when the client is
// closed so the read loop ends.
func (h *Hub) writeLoop(conn *websocket.Conn, c *Client) {
	var ping <-chan time.Time
	if h.opts.PingInterval > 0 {
		ticker := time.NewTicker(h.opts.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}
	for {
		select {
		case <-c.Done():
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
			return
		case frame := <-c.Outbound():
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.Close()
				_ = conn.Close()
				return
			}
		case <-ping:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				_ = conn.Close()
				return
			}
		}
	}
}
