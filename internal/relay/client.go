package relay

import (
	"context"
	"errors"
	"time"

	"github.com/coder/websocket"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 256
)

// client is one websocket connection to the relay.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// readPump forwards frames to the hub until the connection ends, then
// unregisters the client.
func (c *client) readPump(ctx context.Context) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close(websocket.StatusNormalClosure, "client disconnected")
	}()

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				c.hub.logger.Debug("WebSocket closed", "client_id", c.id)
			} else {
				c.hub.logger.Info("WebSocket read error", "client_id", c.id, "error", err)
			}
			return
		}

		select {
		case c.hub.inbound <- frame{client: c, data: data}:
		case <-c.hub.done:
			return
		}
	}
}

// writePump writes queued frames until the hub closes the send channel.
func (c *client) writePump() {
	defer c.conn.Close(websocket.StatusNormalClosure, "server-side cleanup")

	for message := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		err := c.conn.Write(ctx, websocket.MessageText, message)
		cancel()
		if err != nil {
			c.hub.logger.Info("WebSocket write error", "client_id", c.id, "error", err)
			return
		}
	}
}
