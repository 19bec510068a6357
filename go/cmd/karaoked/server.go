package main

import (
	"encoding/json"
	"net/http"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/micdrop/karaoke-server/go/internal/config"
)

func setupServer(cfg config.Config, services *Services) *http.Server {
	mux := http.NewServeMux()

	mux.Handle("/ws", services.Gateway)
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/stats", handleStats(services))

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet, http.MethodPost},
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})
	handler := c.Handler(mux)

	return &http.Server{
		Addr:    cfg.Addr(),
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		log.Error().Err(err).Msg("failed to write health response")
	}
}

func handleStats(services *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connections, authenticated := services.Registry.Counts()
		roomCount, memberCount := services.Rooms.Counts()

		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(map[string]int{
			"connections":   connections,
			"authenticated": authenticated,
			"rooms":         roomCount,
			"members":       memberCount,
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to write stats response")
		}
	}
}
