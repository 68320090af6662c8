package main

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	maxMessagesPerSec = 50

	snapshotInterval = 50 * time.Millisecond // 20 snapshots/s
)

// WSClient is one player's websocket connection. The server pushes
// msgpack-encoded snapshots and accepts the same intent and chat payloads the
// HTTP endpoints do.
type WSClient struct {
	reg        *Registry
	limiter    *connLimiter
	conn       *websocket.Conn
	roomID     string
	token      string
	remoteAddr string
	done       chan struct{}

	msgCount   int
	msgResetAt time.Time
}

// NewWSClient creates a client for an already-authorized (room, token) pair.
func NewWSClient(reg *Registry, limiter *connLimiter, conn *websocket.Conn, roomID, token, remoteAddr string) *WSClient {
	return &WSClient{
		reg:        reg,
		limiter:    limiter,
		conn:       conn,
		roomID:     roomID,
		token:      token,
		remoteAddr: remoteAddr,
		done:       make(chan struct{}),
	}
}

// ReadPump consumes intent and chat frames until the connection drops.
func (c *WSClient) ReadPump() {
	defer func() {
		c.limiter.TrackDisconnect(c.remoteAddr)
		close(c.done)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws error: %v", err)
			}
			return
		}

		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			log.Printf("rate limit exceeded for %s, disconnecting", c.remoteAddr)
			return
		}

		c.handleMessage(message, now)
	}
}

func (c *WSClient) handleMessage(message []byte, now time.Time) {
	room := c.reg.Get(c.roomID)
	if room == nil {
		return
	}

	var env WSEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		return
	}

	switch env.T {
	case WSInput:
		var in InputBody
		if err := json.Unmarshal(env.D, &in); err != nil {
			return
		}
		room.ApplyInput(c.token, in, now)
	case WSChat:
		var body struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(env.D, &body); err != nil {
			return
		}
		room.AddChat(c.token, body.Message, now)
	}
}

// WritePump streams snapshots at a fixed rate and keeps the connection alive
// with pings. It stops when the room is torn down or the reader exits.
func (c *WSClient) WritePump() {
	snapshots := time.NewTicker(snapshotInterval)
	pings := time.NewTicker(pingPeriod)
	defer func() {
		snapshots.Stop()
		pings.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-snapshots.C:
			room := c.reg.Get(c.roomID)
			if room == nil {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "room closed"))
				return
			}
			snap, err := room.Snapshot(c.token, time.Now())
			if err != nil {
				return
			}
			data, err := msgpack.Marshal(snap)
			if err != nil {
				log.Printf("snapshot encode: %v", err)
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}

		case <-pings.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}
