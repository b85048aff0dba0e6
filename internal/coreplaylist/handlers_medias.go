package coreplaylist

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

func (s *Server) handleListMedias(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rows, err := s.db.Query(ctx, `
		SELECT id, title, source_kind, storage_ref, embed_url, duration_ms, created_at
		FROM medias
		ORDER BY created_at DESC
		LIMIT 500
	`)
	if err != nil {
		log.Printf("core-playlist-service: list medias: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer rows.Close()

	medias := []Media{}
	for rows.Next() {
		var m Media
		if err := rows.Scan(
			&m.ID,
			&m.Title,
			&m.SourceKind,
			&m.StorageRef,
			&m.EmbedURL,
			&m.DurationMs,
			&m.CreatedAt,
		); err != nil {
			log.Printf("core-playlist-service: list medias scan: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		medias = append(medias, m)
	}
	if err := rows.Err(); err != nil {
		log.Printf("core-playlist-service: list medias rows: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, medias)
}

// handleCreateMedia registers a library media item. The source is a tagged
// variant: exactly one of storageRef (kind "stored") or embedUrl (kind
// "embed") must be set.
func (s *Server) handleCreateMedia(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		Title      string `json:"title"`
		SourceKind string `json:"sourceKind"`
		StorageRef string `json:"storageRef"`
		EmbedURL   string `json:"embedUrl"`
		DurationMs int    `json:"durationMs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	body.Title = strings.TrimSpace(body.Title)
	body.SourceKind = strings.TrimSpace(strings.ToLower(body.SourceKind))
	body.StorageRef = strings.TrimSpace(body.StorageRef)
	body.EmbedURL = strings.TrimSpace(body.EmbedURL)

	if body.Title == "" || len(body.Title) > 300 {
		writeError(w, http.StatusBadRequest, "title must be between 1 and 300 characters")
		return
	}
	if !validateMediaSource(body.SourceKind, body.StorageRef, body.EmbedURL) {
		writeError(w, http.StatusBadRequest, `media source must be either {sourceKind:"stored", storageRef} or {sourceKind:"embed", embedUrl}`)
		return
	}
	if body.DurationMs < 0 {
		writeError(w, http.StatusBadRequest, "durationMs must be >= 0")
		return
	}

	var m Media
	err := s.db.QueryRow(ctx, `
		INSERT INTO medias (id, title, source_kind, storage_ref, embed_url, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, title, source_kind, storage_ref, embed_url, duration_ms, created_at
	`, uuid.NewString(), body.Title, body.SourceKind, body.StorageRef, body.EmbedURL, body.DurationMs).Scan(
		&m.ID,
		&m.Title,
		&m.SourceKind,
		&m.StorageRef,
		&m.EmbedURL,
		&m.DurationMs,
		&m.CreatedAt,
	)
	if err != nil {
		log.Printf("core-playlist-service: create media: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusCreated, m)
}
