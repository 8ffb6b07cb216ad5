package stream

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Keepalive mirrors the settings the clients were tuned against.
const (
	pongWait     = 60 * time.Second
	pingInterval = 25 * time.Second
)

func RegisterRoutes(r fiber.Router, hub *Hub, router *Router) {
	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		client := hub.Register()
		metricConnections.Inc()
		defer metricConnections.Dec()

		// Tell the client its connection id; it doubles as the member id
		// in create-session, send-location and disconnect handling.
		hub.Unicast(client, marshalEvent(EventConnected, connectedPayload{ID: client.ID}))

		done := make(chan struct{})
		go func() {
			defer close(done)
			ticker := time.NewTicker(pingInterval)
			defer ticker.Stop()
			for {
				select {
				case msg, ok := <-client.Send:
					if !ok {
						return
					}
					if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
						return
					}
				case <-ticker.C:
					if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
						return
					}
				}
			}
		}()

		_ = c.SetReadDeadline(time.Now().Add(pongWait))
		c.SetPongHandler(func(string) error {
			return c.SetReadDeadline(time.Now().Add(pongWait))
		})

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}
			router.HandleMessage(client, msg)
		}

		router.HandleDisconnect(client)
		<-done
	}))
}
