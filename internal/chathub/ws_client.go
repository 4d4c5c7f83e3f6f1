package chathub

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	// 4000 characters of JSON-escaped UTF-8 plus the envelope.
	maxMessageSize = 32 << 10
	sendBuffer     = 16
)

// WebSocketClient streams snapshots to one connection and, when OnMessage
// is set, feeds the connection's frames back into the service.
type WebSocketClient struct {
	UserID    string
	Conn      *websocket.Conn
	Send      chan Envelope
	OnMessage InboundHandler
	OnError   ErrorFrame
}

func NewWebSocketClient(userID string, conn *websocket.Conn, onMessage InboundHandler) *WebSocketClient {
	return &WebSocketClient{
		UserID:    userID,
		Conn:      conn,
		Send:      make(chan Envelope, sendBuffer),
		OnMessage: onMessage,
		OnError:   defaultErrorFrame,
	}
}

// Serve pumps sub's snapshots to the client until the connection drops or
// ctx ends, then cancels sub.
func Serve[T any](ctx context.Context, c *WebSocketClient, sub *Subscription[T]) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer sub.Cancel()

	go c.writePump(ctx)
	go func() {
		for snap := range sub.C {
			c.push(ctx, Envelope{Type: FrameSnapshot, Data: snap})
		}
	}()

	c.readPump(ctx)
}

func (c *WebSocketClient) push(ctx context.Context, env Envelope) {
	select {
	case c.Send <- env:
	case <-ctx.Done():
	}
}

func (c *WebSocketClient) readPump(ctx context.Context) {
	defer c.Conn.Close()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WARNING: Error reading from client %s: %v", c.UserID, err)
			}
			return
		}

		if c.OnMessage == nil {
			continue
		}

		var in Inbound
		if err := json.Unmarshal(message, &in); err != nil {
			log.Printf("Error decoding JSON from client %s: %v", c.UserID, err)
			c.push(ctx, Envelope{Type: FrameError, Code: "bad_frame", Error: "invalid frame"})
			continue
		}

		if err := c.OnMessage(ctx, in); err != nil {
			onError := c.OnError
			if onError == nil {
				onError = defaultErrorFrame
			}
			c.push(ctx, onError(err))
		}
	}
}

func (c *WebSocketClient) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case env := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteJSON(env); err != nil {
				log.Printf("WARNING: Error writing to client %s: %v", c.UserID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
