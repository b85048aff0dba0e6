package coreplaylist

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rows, err := s.db.Query(ctx, `
		SELECT id, title, description, category_id, status, sections_version, created_at, updated_at
		FROM core_playlists
		ORDER BY created_at DESC
		LIMIT 200
	`)
	if err != nil {
		log.Printf("core-playlist-service: list playlists: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer rows.Close()

	playlists := []Playlist{}
	for rows.Next() {
		var pl Playlist
		if err := rows.Scan(
			&pl.ID,
			&pl.Title,
			&pl.Description,
			&pl.CategoryID,
			&pl.Status,
			&pl.SectionsVersion,
			&pl.CreatedAt,
			&pl.UpdatedAt,
		); err != nil {
			log.Printf("core-playlist-service: list playlists scan: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		playlists = append(playlists, pl)
	}

	if err := rows.Err(); err != nil {
		log.Printf("core-playlist-service: list playlists rows: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, playlists)
}

// handleCreatePlaylist creates a new playlist. Playlists always start in draft.
func (s *Server) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		CategoryID  string `json:"categoryId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	body.Title = strings.TrimSpace(body.Title)
	body.Description = strings.TrimSpace(body.Description)
	body.CategoryID = strings.TrimSpace(body.CategoryID)

	if body.Title == "" || len(body.Title) > 200 {
		writeError(w, http.StatusBadRequest, "title must be between 1 and 200 characters")
		return
	}
	if len(body.Description) > 1000 {
		writeError(w, http.StatusBadRequest, "description is too long")
		return
	}

	var pl Playlist
	err := s.db.QueryRow(ctx, `
		INSERT INTO core_playlists (id, title, description, category_id, status)
		VALUES ($1,$2,$3,$4,'draft')
		RETURNING id, title, description, category_id, status, sections_version, created_at, updated_at
	`, uuid.NewString(), body.Title, body.Description, body.CategoryID).Scan(
		&pl.ID,
		&pl.Title,
		&pl.Description,
		&pl.CategoryID,
		&pl.Status,
		&pl.SectionsVersion,
		&pl.CreatedAt,
		&pl.UpdatedAt,
	)
	if err != nil {
		log.Printf("core-playlist-service: create playlist: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	event := map[string]any{
		"type": "playlist.created",
		"payload": map[string]any{
			"playlist": pl,
		},
	}
	s.publishEvent(ctx, event)

	writeJSON(w, http.StatusCreated, pl)
}

func (s *Server) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	playlistID := chi.URLParam(r, "id")
	if playlistID == "" {
		writeError(w, http.StatusBadRequest, "missing playlist id")
		return
	}

	var pl Playlist
	err := s.db.QueryRow(ctx, `
		SELECT id, title, description, category_id, status, sections_version, created_at, updated_at
		FROM core_playlists
		WHERE id = $1
	`, playlistID).Scan(
		&pl.ID,
		&pl.Title,
		&pl.Description,
		&pl.CategoryID,
		&pl.Status,
		&pl.SectionsVersion,
		&pl.CreatedAt,
		&pl.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		writeAdmissionError(w, ErrNotFound)
		return
	}
	if err != nil {
		log.Printf("core-playlist-service: get playlist: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	sections, err := s.fetchSections(ctx, playlistID)
	if err != nil {
		log.Printf("core-playlist-service: get playlist sections: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"playlist": pl,
		"sections": sections,
	})
}

// handlePatchPlaylist updates playlist metadata. Metadata is part of the
// publish-lock surface: a published playlist must be reverted to draft first.
func (s *Server) handlePatchPlaylist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	playlistID := chi.URLParam(r, "id")
	if playlistID == "" {
		writeError(w, http.StatusBadRequest, "missing playlist id")
		return
	}

	var body struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		CategoryID  *string `json:"categoryId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Printf("core-playlist-service: patch playlist begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer tx.Rollback(ctx)

	var existing Playlist
	err = tx.QueryRow(ctx, `
		SELECT id, title, description, category_id, status, sections_version, created_at, updated_at
		FROM core_playlists
		WHERE id = $1
		FOR UPDATE
	`, playlistID).Scan(
		&existing.ID,
		&existing.Title,
		&existing.Description,
		&existing.CategoryID,
		&existing.Status,
		&existing.SectionsVersion,
		&existing.CreatedAt,
		&existing.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		writeAdmissionError(w, ErrNotFound)
		return
	}
	if err != nil {
		log.Printf("core-playlist-service: patch playlist fetch: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := requireDraft(existing.Status); err != nil {
		writeAdmissionError(w, err)
		return
	}

	if body.Title != nil {
		title := strings.TrimSpace(*body.Title)
		if title == "" || len(title) > 200 {
			writeError(w, http.StatusBadRequest, "title must be between 1 and 200 characters")
			return
		}
		existing.Title = title
	}
	if body.Description != nil {
		desc := strings.TrimSpace(*body.Description)
		if len(desc) > 1000 {
			writeError(w, http.StatusBadRequest, "description is too long")
			return
		}
		existing.Description = desc
	}
	if body.CategoryID != nil {
		existing.CategoryID = strings.TrimSpace(*body.CategoryID)
	}

	_, err = tx.Exec(ctx, `
		UPDATE core_playlists
		SET title = $2,
			description = $3,
			category_id = $4,
			updated_at = now()
		WHERE id = $1
	`, existing.ID, existing.Title, existing.Description, existing.CategoryID)
	if err != nil {
		log.Printf("core-playlist-service: patch playlist update: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("core-playlist-service: patch playlist commit: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	event := map[string]any{
		"type": "playlist.updated",
		"payload": map[string]any{
			"playlist": existing,
		},
	}
	s.publishEvent(ctx, event)

	writeJSON(w, http.StatusOK, existing)
}

// handlePublishPlaylist flips a draft playlist to published, locking its
// structure. Publishing an already-published playlist is a no-op.
func (s *Server) handlePublishPlaylist(w http.ResponseWriter, r *http.Request) {
	s.setPlaylistStatus(w, r, statusPublished, "playlist.published")
}

// handleUnpublishPlaylist reverts a playlist to draft, re-enabling structural
// mutations on its subtree.
func (s *Server) handleUnpublishPlaylist(w http.ResponseWriter, r *http.Request) {
	s.setPlaylistStatus(w, r, statusDraft, "playlist.unpublished")
}

func (s *Server) setPlaylistStatus(w http.ResponseWriter, r *http.Request, status, eventType string) {
	ctx := r.Context()
	playlistID := chi.URLParam(r, "id")
	if playlistID == "" {
		writeError(w, http.StatusBadRequest, "missing playlist id")
		return
	}

	var pl Playlist
	err := s.db.QueryRow(ctx, `
		UPDATE core_playlists
		SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING id, title, description, category_id, status, sections_version, created_at, updated_at
	`, playlistID, status).Scan(
		&pl.ID,
		&pl.Title,
		&pl.Description,
		&pl.CategoryID,
		&pl.Status,
		&pl.SectionsVersion,
		&pl.CreatedAt,
		&pl.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		writeAdmissionError(w, ErrNotFound)
		return
	}
	if err != nil {
		log.Printf("core-playlist-service: set playlist status: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	event := map[string]any{
		"type":    eventType,
		"payload": map[string]any{"playlistId": playlistID, "status": pl.Status},
	}
	s.publishEvent(ctx, event)

	writeJSON(w, http.StatusOK, pl)
}

// handleDeletePlaylist deletes a playlist and, via FK cascade, its whole
// section/media subtree. Deleting is allowed in any status; it is the
// structural edits under a published playlist that are locked, not removal of
// the playlist itself.
func (s *Server) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	playlistID := chi.URLParam(r, "id")
	if playlistID == "" {
		writeError(w, http.StatusBadRequest, "missing playlist id")
		return
	}

	tag, err := s.db.Exec(ctx, "DELETE FROM core_playlists WHERE id = $1", playlistID)
	if err != nil {
		log.Printf("core-playlist-service: delete playlist: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if tag.RowsAffected() == 0 {
		writeAdmissionError(w, ErrNotFound)
		return
	}

	event := map[string]any{
		"type":    "playlist.deleted",
		"payload": map[string]any{"playlistId": playlistID},
	}
	s.publishEvent(ctx, event)

	w.WriteHeader(http.StatusNoContent)
}
