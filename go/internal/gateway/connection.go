package gateway

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	// ErrSendBufferFull is returned when a client cannot keep up with its
	// outbound queue; the connection is closed as a side effect.
	ErrSendBufferFull = errors.New("send buffer full")

	// ErrConnClosed is returned for sends on a connection that is shutting
	// down.
	ErrConnClosed = errors.New("connection closed")
)

// Conn is one live WebSocket connection. The read pump feeds the handler;
// the write pump drains the send channel and keeps the connection alive
// with pings.
type Conn struct {
	id      string
	ws      *websocket.Conn
	send    chan []byte
	done    chan struct{}
	closed  sync.Once
	config  Config
	handler Handler
}

func newConn(id string, ws *websocket.Conn, config Config, handler Handler) *Conn {
	return &Conn{
		id:      id,
		ws:      ws,
		send:    make(chan []byte, config.SendBufferSize),
		done:    make(chan struct{}),
		config:  config,
		handler: handler,
	}
}

func (c *Conn) ID() string { return c.id }

// Send queues data for delivery without blocking. A client whose buffer is
// full is too slow to keep in the room: letting it linger would mean
// silently dropped protocol events and a desynced member, so the connection
// is closed instead and the normal disconnect cleanup runs.
func (c *Conn) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		log.Warn().Str("connection_id", c.id).Msg("connection send buffer full, closing connection")
		c.close()
		return ErrSendBufferFull
	}
}

// close marks the connection dead. The write pump notices and tears the
// socket down, which in turn unblocks the read pump. Safe to call from any
// goroutine, more than once.
func (c *Conn) close() {
	c.closed.Do(func() { close(c.done) })
}

func (c *Conn) start() {
	go c.writePump()
	go c.readPump()
}

func (c *Conn) readPump() {
	defer func() {
		c.handler.HandleDisconnect(c)
		c.close()
		log.Info().Str("connection_id", c.id).Msg("connection closed")
	}()

	c.ws.SetReadLimit(c.config.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Str("connection_id", c.id).Err(err).Msg("unexpected WebSocket close")
			}
			return
		}
		c.handler.HandleMessage(c, data)
		c.ws.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Str("connection_id", c.id).Err(err).Msg("failed to write message")
				c.close()
				return
			}
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}
