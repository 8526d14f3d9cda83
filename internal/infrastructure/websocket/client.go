package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"agrolink/internal/domain/entity"
	"agrolink/pkg/logger"
	"agrolink/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
	inboxSize      = 64
)

// Handler reacts to a connection's lifecycle and inbound frames. Frames from
// one connection are handed over one at a time, in arrival order.
type Handler interface {
	HandleConnect(ctx context.Context, client *Client) error
	HandleClientMessage(ctx context.Context, client *Client, frame []byte)
	// HandleHeartbeat runs when the peer answers a transport ping.
	HandleHeartbeat(ctx context.Context, client *Client)
	HandleDisconnect(ctx context.Context, client *Client)
}

// Client is one authenticated socket.
type Client struct {
	ID       string
	Identity entity.Identity

	conn         *websocket.Conn
	send         chan []byte
	inbox        chan []byte
	heartbeat    chan struct{}
	rooms        map[string]struct{}
	pingInterval time.Duration
	pongWait     time.Duration
	closeOnce    sync.Once
}

func NewClient(conn *websocket.Conn, identity entity.Identity, pingInterval, pingTimeout time.Duration) *Client {
	return &Client{
		ID:           uuid.New().String(),
		Identity:     identity,
		conn:         conn,
		send:         make(chan []byte, sendBufferSize),
		inbox:        make(chan []byte, inboxSize),
		heartbeat:    make(chan struct{}, 1),
		rooms:        make(map[string]struct{}),
		pingInterval: pingInterval,
		pongWait:     pingInterval + pingTimeout,
	}
}

// Serve runs the connection until it closes. It blocks.
func (c *Client) Serve(ctx context.Context, m *Manager, h Handler) {
	m.Register(c)
	go c.WritePump()

	if err := h.HandleConnect(ctx, c); err != nil {
		logger.Error("WebSocket: connect hook for %s failed: %v", c.Identity.UserID, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case frame, ok := <-c.inbox:
				if !ok {
					return
				}
				h.HandleClientMessage(ctx, c, frame)
			case <-c.heartbeat:
				h.HandleHeartbeat(ctx, c)
			}
		}
	}()

	c.ReadPump()

	close(c.inbox)
	<-done
	m.Remove(c)
	h.HandleDisconnect(context.WithoutCancel(ctx), c)
}

// ReadPump reads frames until the peer goes away or stops answering pings.
func (c *Client) ReadPump() {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		select {
		case c.heartbeat <- struct{}{}:
		default:
		}
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket: read error for %s: %v", c.Identity.UserID, err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		c.inbox <- message
	}
}

// WritePump drains the send channel and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn("WebSocket: write error for %s: %v", c.Identity.UserID, err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue never blocks; a client that cannot keep up loses the frame.
func (c *Client) enqueue(frame []byte) {
	select {
	case c.send <- frame:
	default:
		metrics.DroppedFramesTotal.Inc()
		logger.Warn("WebSocket: send buffer full for %s, dropping frame", c.ID)
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

func (c *Client) closeConn(deadline time.Time) {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
	_ = c.conn.Close()
}
