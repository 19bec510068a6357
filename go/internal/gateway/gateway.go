// Package gateway is the WebSocket transport: it upgrades HTTP requests,
// owns the per-connection read/write pumps, and hands inbound frames to the
// protocol engine. Everything protocol-level lives behind the Handler
// interface so the transport knows nothing about rooms or messages.
package gateway

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/micdrop/karaoke-server/go/internal/protocol"
)

// Handler consumes transport events. Implemented by protocol.Engine.
type Handler interface {
	HandleConnect(conn protocol.Sender)
	HandleMessage(conn protocol.Sender, data []byte)
	HandleDisconnect(conn protocol.Sender)
}

// Config holds WebSocket transport settings.
type Config struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBufferSize int
	CheckOrigin    func(r *http.Request) bool
}

// DefaultConfig returns the transport defaults.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 4096,
		SendBufferSize: 256,
		CheckOrigin:    func(r *http.Request) bool { return true },
	}
}

// Gateway upgrades connections and runs their pumps.
type Gateway struct {
	upgrader websocket.Upgrader
	config   Config
	handler  Handler
}

func New(config Config, handler Handler) *Gateway {
	return &Gateway{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     config.CheckOrigin,
		},
		config:  config,
		handler: handler,
	}
}

// ServeHTTP upgrades the request and starts the connection's pumps.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return
	}

	conn := newConn(uuid.New().String(), ws, g.config, g.handler)
	g.handler.HandleConnect(conn)
	conn.start()

	log.Info().Str("connection_id", conn.ID()).Str("remote", r.RemoteAddr).
		Msg("WebSocket connection established")
}
