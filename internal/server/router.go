package server

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/ragkit/internal/api/handlers"
	"github.com/cloo-solutions/ragkit/internal/api/middleware"
)

type RouterConfig struct {
	RetrievalHandler *handlers.RetrievalHandler
	// AccessLogger receives one JSON line per request; nil uses the
	// standard logger.
	AccessLogger *log.Logger
	MaxBodyBytes int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = middleware.DefaultMaxBodyBytes
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing)
	r.Use(middleware.AccessLog(cfg.AccessLogger))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	h := cfg.RetrievalHandler
	r.Get("/health", h.Health)
	r.Post("/search", h.Search)
	r.Post("/retrieve", h.Retrieve)
	r.Post("/analyze", h.Analyze)
	r.Post("/ingest", h.Ingest)

	return r
}
