package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
)

func (c *controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Range"},
	}).Handler)

	r.Post("/api/extract", c.extractMedia)
	r.Post("/api/rutube", c.resolveRutube)
	r.Post("/api/vk", c.resolveVK)
	r.Get("/stream", c.streamRedirect)

	r.HandleFunc("/ws", c.webSocket)

	return r
}
