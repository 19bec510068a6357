package main

import (
	"net/http"

	"github.com/jonboulle/clockwork"

	"github.com/micdrop/karaoke-server/go/internal/auth"
	"github.com/micdrop/karaoke-server/go/internal/catalog"
	"github.com/micdrop/karaoke-server/go/internal/config"
	"github.com/micdrop/karaoke-server/go/internal/gateway"
	"github.com/micdrop/karaoke-server/go/internal/protocol"
	"github.com/micdrop/karaoke-server/go/internal/registry"
	"github.com/micdrop/karaoke-server/go/internal/rooms"
)

type Services struct {
	Registry *registry.Registry
	Rooms    *rooms.Store
	Catalog  *catalog.Store
	Engine   *protocol.Engine
	Gateway  *gateway.Gateway
}

func setupServices(cfg config.Config) *Services {
	// Wiring order mirrors the dependency chain:
	// clock → verifier/stores → protocol engine → transport.
	clock := clockwork.NewRealClock()

	verifier := auth.NewHMACVerifier(cfg.Auth.Secret, clock)
	reg := registry.New()
	roomStore := rooms.NewStore(clock)
	songs := catalog.New(catalog.DefaultSongs())

	engine := protocol.NewEngine(verifier, reg, roomStore, songs, clock)

	gwConfig := gateway.Config{
		WriteTimeout:   cfg.WebSocket.WriteTimeout(),
		ReadTimeout:    cfg.WebSocket.ReadTimeout(),
		PingInterval:   cfg.WebSocket.PingInterval(),
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		SendBufferSize: cfg.WebSocket.SendBufferSize,
		CheckOrigin:    originChecker(cfg.Server.AllowedOrigins),
	}
	gw := gateway.New(gwConfig, engine)

	return &Services{
		Registry: reg,
		Rooms:    roomStore,
		Catalog:  songs,
		Engine:   engine,
		Gateway:  gw,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	for _, origin := range allowed {
		if origin == "*" {
			return func(r *http.Request) bool { return true }
		}
	}
	allowedSet := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		allowedSet[origin] = true
	}
	return func(r *http.Request) bool {
		return allowedSet[r.Header.Get("Origin")]
	}
}
