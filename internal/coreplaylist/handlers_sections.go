package coreplaylist

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s *Server) fetchSections(ctx context.Context, playlistID string) ([]Section, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, playlist_id, title, description, section_type,
		       min_select_media, max_select_media, position, medias_version, created_at
		FROM sections
		WHERE playlist_id = $1
		ORDER BY position ASC
	`, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sections := []Section{}
	for rows.Next() {
		var sec Section
		if err := rows.Scan(
			&sec.ID,
			&sec.PlaylistID,
			&sec.Title,
			&sec.Description,
			&sec.SectionType,
			&sec.MinSelectMedia,
			&sec.MaxSelectMedia,
			&sec.Order,
			&sec.MediasVersion,
			&sec.CreatedAt,
		); err != nil {
			return nil, err
		}
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}

// handleListSections returns the playlist's sections sorted by order. Reads
// are never gated by the publish-lock.
func (s *Server) handleListSections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	playlistID := chi.URLParam(r, "id")
	if playlistID == "" {
		writeError(w, http.StatusBadRequest, "missing playlist id")
		return
	}

	var status string
	err := s.db.QueryRow(ctx, `
		SELECT status FROM core_playlists WHERE id = $1
	`, playlistID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		writeAdmissionError(w, ErrNotFound)
		return
	}
	if err != nil {
		log.Printf("core-playlist-service: list sections playlist: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	sections, err := s.fetchSections(ctx, playlistID)
	if err != nil {
		log.Printf("core-playlist-service: list sections: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, sections)
}

func (s *Server) handleCreateSection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	playlistID := chi.URLParam(r, "id")
	if playlistID == "" {
		writeError(w, http.StatusBadRequest, "missing playlist id")
		return
	}

	var body struct {
		Title          string `json:"title"`
		Description    string `json:"description"`
		SectionType    string `json:"sectionType"`
		MinSelectMedia int    `json:"minSelectMedia"`
		MaxSelectMedia int    `json:"maxSelectMedia"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	body.Title = strings.TrimSpace(body.Title)
	body.Description = strings.TrimSpace(body.Description)
	body.SectionType = strings.TrimSpace(strings.ToLower(body.SectionType))
	if body.SectionType == "" {
		body.SectionType = sectionTypeBase
	}

	if body.Title == "" || len(body.Title) > 200 {
		writeError(w, http.StatusBadRequest, "title must be between 1 and 200 characters")
		return
	}
	if !validSectionType(body.SectionType) {
		writeError(w, http.StatusBadRequest, `invalid sectionType (must be "base" or "loop")`)
		return
	}
	if err := validateSelectionBounds(body.MinSelectMedia, body.MaxSelectMedia); err != nil {
		writeAdmissionError(w, err)
		return
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Printf("core-playlist-service: create section begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx, `
		SELECT status FROM core_playlists WHERE id = $1 FOR UPDATE
	`, playlistID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		writeAdmissionError(w, ErrNotFound)
		return
	}
	if err != nil {
		log.Printf("core-playlist-service: create section fetch playlist: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := requireDraft(status); err != nil {
		writeAdmissionError(w, err)
		return
	}

	var sec Section
	err = tx.QueryRow(ctx, `
		INSERT INTO sections (
			id, playlist_id, title, description, section_type,
			min_select_media, max_select_media, position
		)
		VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			COALESCE(
				(SELECT MAX(position)+1 FROM sections WHERE playlist_id = $2),
				1
			)
		)
		RETURNING id, playlist_id, title, description, section_type,
		          min_select_media, max_select_media, position, medias_version, created_at
	`,
		uuid.NewString(),
		playlistID,
		body.Title,
		body.Description,
		body.SectionType,
		body.MinSelectMedia,
		body.MaxSelectMedia,
	).Scan(
		&sec.ID,
		&sec.PlaylistID,
		&sec.Title,
		&sec.Description,
		&sec.SectionType,
		&sec.MinSelectMedia,
		&sec.MaxSelectMedia,
		&sec.Order,
		&sec.MediasVersion,
		&sec.CreatedAt,
	)
	if err != nil {
		log.Printf("core-playlist-service: create section insert: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := s.bumpSectionsVersion(ctx, tx, playlistID); err != nil {
		log.Printf("core-playlist-service: create section bump version: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("core-playlist-service: create section commit: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	event := map[string]any{
		"type": "section.created",
		"payload": map[string]any{
			"playlistId": playlistID,
			"section":    sec,
		},
	}
	s.publishEvent(ctx, event)

	writeJSON(w, http.StatusCreated, sec)
}

func (s *Server) handleUpdateSection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sectionID := chi.URLParam(r, "id")
	if sectionID == "" {
		writeError(w, http.StatusBadRequest, "missing section id")
		return
	}

	var body struct {
		Title          *string `json:"title"`
		Description    *string `json:"description"`
		SectionType    *string `json:"sectionType"`
		MinSelectMedia *int    `json:"minSelectMedia"`
		MaxSelectMedia *int    `json:"maxSelectMedia"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Printf("core-playlist-service: update section begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer tx.Rollback(ctx)

	var sec Section
	var playlistStatus string
	err = tx.QueryRow(ctx, `
		SELECT s.id, s.playlist_id, s.title, s.description, s.section_type,
		       s.min_select_media, s.max_select_media, s.position, s.medias_version, s.created_at,
		       p.status
		FROM sections s
		JOIN core_playlists p ON p.id = s.playlist_id
		WHERE s.id = $1
		FOR UPDATE OF s
	`, sectionID).Scan(
		&sec.ID,
		&sec.PlaylistID,
		&sec.Title,
		&sec.Description,
		&sec.SectionType,
		&sec.MinSelectMedia,
		&sec.MaxSelectMedia,
		&sec.Order,
		&sec.MediasVersion,
		&sec.CreatedAt,
		&playlistStatus,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		writeAdmissionError(w, ErrNotFound)
		return
	}
	if err != nil {
		log.Printf("core-playlist-service: update section fetch: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := requireDraft(playlistStatus); err != nil {
		writeAdmissionError(w, err)
		return
	}

	if body.Title != nil {
		title := strings.TrimSpace(*body.Title)
		if title == "" || len(title) > 200 {
			writeError(w, http.StatusBadRequest, "title must be between 1 and 200 characters")
			return
		}
		sec.Title = title
	}
	if body.Description != nil {
		sec.Description = strings.TrimSpace(*body.Description)
	}
	if body.SectionType != nil {
		st := strings.TrimSpace(strings.ToLower(*body.SectionType))
		if !validSectionType(st) {
			writeError(w, http.StatusBadRequest, `invalid sectionType (must be "base" or "loop")`)
			return
		}
		sec.SectionType = st
	}
	if body.MinSelectMedia != nil {
		sec.MinSelectMedia = *body.MinSelectMedia
	}
	if body.MaxSelectMedia != nil {
		sec.MaxSelectMedia = *body.MaxSelectMedia
	}

	if err := validateSelectionBounds(sec.MinSelectMedia, sec.MaxSelectMedia); err != nil {
		writeAdmissionError(w, err)
		return
	}

	_, err = tx.Exec(ctx, `
		UPDATE sections
		SET title = $2,
			description = $3,
			section_type = $4,
			min_select_media = $5,
			max_select_media = $6
		WHERE id = $1
	`, sec.ID, sec.Title, sec.Description, sec.SectionType, sec.MinSelectMedia, sec.MaxSelectMedia)
	if err != nil {
		log.Printf("core-playlist-service: update section: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("core-playlist-service: update section commit: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	event := map[string]any{
		"type": "section.updated",
		"payload": map[string]any{
			"playlistId": sec.PlaylistID,
			"section":    sec,
		},
	}
	s.publishEvent(ctx, event)

	writeJSON(w, http.StatusOK, sec)
}

// handleDeleteSection removes a section and its media rows, then renumbers
// the remaining siblings in the same transaction so the sequence stays dense.
func (s *Server) handleDeleteSection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sectionID := chi.URLParam(r, "id")
	if sectionID == "" {
		writeError(w, http.StatusBadRequest, "missing section id")
		return
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Printf("core-playlist-service: delete section begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer tx.Rollback(ctx)

	var playlistID, playlistStatus string
	var pos int
	err = tx.QueryRow(ctx, `
		SELECT s.playlist_id, s.position, p.status
		FROM sections s
		JOIN core_playlists p ON p.id = s.playlist_id
		WHERE s.id = $1
		FOR UPDATE OF s
	`, sectionID).Scan(&playlistID, &pos, &playlistStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		writeAdmissionError(w, ErrNotFound)
		return
	}
	if err != nil {
		log.Printf("core-playlist-service: delete section fetch: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := requireDraft(playlistStatus); err != nil {
		writeAdmissionError(w, err)
		return
	}

	// FK cascade removes the section_medias rows.
	if _, err := tx.Exec(ctx, `
		DELETE FROM sections
		WHERE id = $1
	`, sectionID); err != nil {
		log.Printf("core-playlist-service: delete section delete: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if _, err := tx.Exec(ctx, `
		UPDATE sections
		SET position = position - 1
		WHERE playlist_id = $1 AND position > $2
	`, playlistID, pos); err != nil {
		log.Printf("core-playlist-service: delete section compact: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := s.bumpSectionsVersion(ctx, tx, playlistID); err != nil {
		log.Printf("core-playlist-service: delete section bump version: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("core-playlist-service: delete section commit: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	event := map[string]any{
		"type": "section.deleted",
		"payload": map[string]any{
			"playlistId": playlistID,
			"sectionId":  sectionID,
			"position":   pos,
		},
	}
	s.publishEvent(ctx, event)

	w.WriteHeader(http.StatusNoContent)
}

// handleReorderSections applies a full drag-and-drop arrangement of a
// playlist's sections as one atomic batch.
func (s *Server) handleReorderSections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	playlistID := chi.URLParam(r, "id")
	if playlistID == "" {
		writeError(w, http.StatusBadRequest, "missing playlist id")
		return
	}

	var body struct {
		SectionOrders []OrderPair `json:"sectionOrders"`
		BaseVersion   int64       `json:"baseVersion"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(body.SectionOrders) == 0 {
		writeError(w, http.StatusBadRequest, "sectionOrders must not be empty")
		return
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Printf("core-playlist-service: reorder sections begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer tx.Rollback(ctx)

	var status string
	var version int64
	err = tx.QueryRow(ctx, `
		SELECT status, sections_version
		FROM core_playlists
		WHERE id = $1
		FOR UPDATE
	`, playlistID).Scan(&status, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		writeAdmissionError(w, ErrNotFound)
		return
	}
	if err != nil {
		log.Printf("core-playlist-service: reorder sections fetch playlist: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	siblingIDs, err := orderedIDs(ctx, tx, `
		SELECT id FROM sections
		WHERE playlist_id = $1
		ORDER BY position ASC
	`, playlistID)
	if err != nil {
		log.Printf("core-playlist-service: reorder sections fetch siblings: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := validateReorder(status, version, body.BaseVersion, siblingIDs, body.SectionOrders); err != nil {
		writeAdmissionError(w, err)
		return
	}

	pairs := Renumber(SequenceFromRequested(body.SectionOrders))

	// Park current positions out of the way of the unique index, then assign
	// the canonical 1..N values.
	if _, err := tx.Exec(ctx, `
		UPDATE sections
		SET position = -position
		WHERE playlist_id = $1
	`, playlistID); err != nil {
		log.Printf("core-playlist-service: reorder sections park: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	for _, p := range pairs {
		if _, err := tx.Exec(ctx, `
			UPDATE sections
			SET position = $3
			WHERE id = $2 AND playlist_id = $1
		`, playlistID, p.ID, p.Order); err != nil {
			log.Printf("core-playlist-service: reorder sections set position: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
	}

	newVersion := version + 1
	if _, err := tx.Exec(ctx, `
		UPDATE core_playlists
		SET sections_version = $2, updated_at = now()
		WHERE id = $1
	`, playlistID, newVersion); err != nil {
		log.Printf("core-playlist-service: reorder sections bump version: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("core-playlist-service: reorder sections commit: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	event := map[string]any{
		"type": "sections.reordered",
		"payload": map[string]any{
			"playlistId":      playlistID,
			"sectionOrders":   pairs,
			"sectionsVersion": newVersion,
		},
	}
	s.publishEvent(ctx, event)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"sectionsVersion": newVersion,
	})
}

func (s *Server) bumpSectionsVersion(ctx context.Context, tx pgx.Tx, playlistID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE core_playlists
		SET sections_version = sections_version + 1, updated_at = now()
		WHERE id = $1
	`, playlistID)
	return err
}

func orderedIDs(ctx context.Context, tx pgx.Tx, sql string, args ...any) ([]string, error) {
	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
