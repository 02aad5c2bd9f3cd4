package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/labface/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	embeddingsHandler := handlers.NewEmbeddingsHandler(s.deps.Coordinator, s.deps.Index, s.deps.Store, s.deps.Encoder, s.deps.Fetcher)
	matchHandler := handlers.NewMatchHandler(s.deps.Matcher, s.deps.Encoder, s.deps.Fetcher, s.config.Matching.Threshold)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)

		r.Post("/match", matchHandler.Match)

		// Embeddings
		r.Post("/embeddings", embeddingsHandler.Create)
		r.Get("/embeddings/count", embeddingsHandler.Count)
		r.Post("/embeddings/reload", embeddingsHandler.Reload)
		r.Delete("/embeddings/{subjectID}", embeddingsHandler.Delete)
	})
}
