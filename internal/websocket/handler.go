package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs attaches a liveness socket to a session. initial is written first
// (the session_status frame). Blocks until the socket closes.
func ServeWs(hub *Hub, c *websocket.Conn, sessionID string, initial []byte) {
	client := newClient(hub, c, sessionID)
	hub.register(client)
	if initial != nil {
		client.enqueue(initial)
	}

	go client.writePump()
	client.readPump() // Run readPump in current goroutine (handler)

	// The connection goes back to the pool when the handler returns.
	<-client.done
}
