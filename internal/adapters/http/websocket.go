package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const pingInterval = 30 * time.Second

// WebSocketUpgrade resolves the caller's identity before the upgrade.
// Anonymous callers may connect and receive, but everything they send is
// dropped by the relay.
func WebSocketUpgrade(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if _, err := resolveUser(c, deps); err != nil {
			LoggerFromCtx(c.UserContext()).Warn("ws identity lookup failed", "error", err)
		}
		return c.Next()
	}
}

// WebSocketHandler relays sync events between this connection, the other
// local connections and, through the relay service, other instances.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		id := uuid.NewString()
		user, _ := c.Locals(localUser).(string)
		log := slog.Default().With("conn", id, "user", user, "remote", c.RemoteAddr().String())
		log.Info("ws client connected")

		send := deps.Hub.Join(id, user)
		defer deps.Hub.Leave(id)

		// Single writer: relayed frames and keep-alive pings.
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(pingInterval)
			defer ticker.Stop()
			for {
				select {
				case frame, ok := <-send:
					if !ok {
						return
					}
					if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
						return
					}
				case <-ticker.C:
					if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			mt, msg, err := c.ReadMessage()
			if err != nil {
				break
			}
			if mt != websocket.TextMessage {
				continue
			}
			if _, err := deps.Relay.Accept(context.Background(), id, user, msg); err != nil {
				log.Debug("dropping sync frame", "error", err)
			}
		}

		close(done)
		log.Info("ws client disconnected")
	}
}
