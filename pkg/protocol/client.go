package protocol

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// sendBuffer bounds the per-client outbound queue. A nearly full
	// buffer sheds log events rather than blocking the scheduler.
	sendBuffer = 256

	// logReserve is headroom kept free for non-log envelopes. Log
	// events stop enqueueing once only the reserve remains, so a slow
	// reader flooded with test_log still receives its terminal events.
	logReserve = 8

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// client is one WebSocket connection with its outbound queue.
type client struct {
	id     string
	conn   *websocket.Conn
	send   chan Envelope
	ctx    context.Context
	cancel context.CancelFunc
}

func newClient(id string, conn *websocket.Conn) *client {
	ctx, cancel := context.WithCancel(context.Background())
	return &client{
		id:     id,
		conn:   conn,
		send:   make(chan Envelope, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// enqueue queues an envelope for delivery. Returns false when the
// envelope was not queued: log events are shed once the buffer drops
// into the reserve, and anything else only fails when the buffer is
// completely full.
func (c *client) enqueue(env Envelope) bool {
	if env.Type == TypeTestLog && len(c.send) >= sendBuffer-logReserve {
		return false
	}
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

// close tears the client down. Cancelling the context stops writePump;
// closing the connection unblocks readPump, which runs the unregister
// cascade.
func (c *client) close() {
	c.cancel()
	if c.conn != nil {
		c.conn.Close()
	}
}

// writePump drains the send queue onto the connection and keeps the
// connection alive with periodic pings. One writePump per client; all
// writes go through it so the connection never sees concurrent writers.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// readPump reads frames until the connection drops, handing each decoded
// envelope to handle. Malformed JSON is reported as an error envelope on
// the same connection; only transport failures end the loop.
func (s *Server) readPump(c *client) {
	defer func() {
		s.unregister(c)
		c.cancel()
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.log.Warnf("read error on client %s: %v", c.id, err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.enqueue(envelope(TypeError, "", ErrorData{
				Message: "invalid message format",
				Details: err.Error(),
			}))
			continue
		}

		s.handle(c, env)
	}
}
