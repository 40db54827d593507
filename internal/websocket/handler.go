package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs attaches one connection to the hub for the given session.
func ServeWs(hub *Hub, c *websocket.Conn, sessionID string) {
	client := &Client{Hub: hub, Conn: c, SessionID: sessionID, Send: make(chan []byte, 256)}
	client.Hub.register <- client

	go client.writePump()
	client.readPump() // runs on the handler goroutine until disconnect
}
