package gateway

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			// Write coalescing: batch queued frames into a single WebSocket
			// message with newline separators
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		log.Println("[gateway] ws client disconnected")
	}()

	c.conn.SetReadLimit(8192)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var cmd clientCommand
		if json.Unmarshal(msg, &cmd) != nil {
			continue
		}
		c.handleCommand(cmd)
	}
}

func (c *Client) handleCommand(cmd clientCommand) {
	if cmd.Ping > 0 {
		pong, _ := json.Marshal(map[string]interface{}{
			"type":      msgPong,
			"ping":      cmd.Ping,
			"server_ts": time.Now().UnixMilli(),
		})
		c.trySend(pong)
		return
	}

	switch cmd.Type {
	case "set_instrument":
		ctrl := c.hub.controlFor(cmd.Panel)
		if ctrl == nil {
			c.sendError("unknown panel: " + cmd.Panel)
			return
		}
		// Runs off the read loop: the fetch can take seconds and stale
		// requests are discarded by the panel's token check.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := ctrl.SetInstrument(ctx, cmd.Market, cmd.Symbol, cmd.Interval); err != nil {
				c.sendError("set_instrument: " + err.Error())
			}
		}()

	case "set_indicators":
		if c.hub.Configs != nil {
			c.hub.Configs.Set(cmd.Panel, cmd.Configs)
			return
		}
		if ctrl := c.hub.controlFor(cmd.Panel); ctrl != nil {
			ctrl.SetIndicators(cmd.Configs)
		}

	case "crosshair":
		if ctrl := c.hub.controlFor(cmd.Panel); ctrl != nil {
			ctrl.PublishCrosshair(cmd.Time, cmd.Price)
		}

	default:
		log.Printf("[gateway] unknown client command %q", cmd.Type)
	}
}

func (c *Client) trySend(payload []byte) {
	select {
	case c.send <- payload:
	default:
	}
}

func (c *Client) sendError(text string) {
	payload, _ := json.Marshal(errorMsg{Type: msgError, Error: text})
	c.trySend(payload)
}
