package coreplaylist

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	db  DB
	rdb *redis.Client
}

func NewServer(db DB, rdb *redis.Client) *Server {
	return &Server{
		db:  db,
		rdb: rdb,
	}
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	// Health stays outside the auth gate.
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		for _, mw := range middlewares {
			r.Use(mw)
		}

		r.Get("/playlists", s.handleListPlaylists)
		r.Post("/playlists", s.handleCreatePlaylist)
		r.Get("/playlists/{id}", s.handleGetPlaylist)
		r.Patch("/playlists/{id}", s.handlePatchPlaylist)
		r.Delete("/playlists/{id}", s.handleDeletePlaylist)
		r.Post("/playlists/{id}/publish", s.handlePublishPlaylist)
		r.Post("/playlists/{id}/unpublish", s.handleUnpublishPlaylist)

		r.Get("/playlists/{id}/sections", s.handleListSections)
		r.Post("/playlists/{id}/sections", s.handleCreateSection)
		r.Put("/playlists/{id}/sections/order", s.handleReorderSections)
		r.Patch("/sections/{id}", s.handleUpdateSection)
		r.Delete("/sections/{id}", s.handleDeleteSection)

		r.Get("/sections/{id}/medias", s.handleListSectionMedia)
		r.Post("/sections/{id}/medias", s.handleAddMediaToSection)
		r.Put("/sections/{id}/medias/order", s.handleReorderSectionMedia)
		r.Post("/sections/{id}/medias/batch", s.handleBatchAddMedias)
		r.Post("/sections/{id}/medias/batch-remove", s.handleBatchRemoveMedias)
		r.Delete("/section-medias/{id}", s.handleRemoveMedia)

		r.Get("/medias", s.handleListMedias)
		r.Post("/medias", s.handleCreateMedia)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "core-playlist-service",
	})
}
