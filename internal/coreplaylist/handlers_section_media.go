package coreplaylist

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// sectionForUpdate locks the section row and returns what the admission rules
// need: the owning playlist's id and status plus the media concurrency token.
func sectionForUpdate(ctx context.Context, tx pgx.Tx, sectionID string) (playlistID, playlistStatus string, mediasVersion int64, err error) {
	err = tx.QueryRow(ctx, `
		SELECT s.playlist_id, p.status, s.medias_version
		FROM sections s
		JOIN core_playlists p ON p.id = s.playlist_id
		WHERE s.id = $1
		FOR UPDATE OF s
	`, sectionID).Scan(&playlistID, &playlistStatus, &mediasVersion)
	return
}

func (s *Server) handleListSectionMedia(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sectionID := chi.URLParam(r, "id")
	if sectionID == "" {
		writeError(w, http.StatusBadRequest, "missing section id")
		return
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM sections WHERE id = $1)
	`, sectionID).Scan(&exists); err != nil {
		log.Printf("core-playlist-service: list section media exists: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if !exists {
		writeAdmissionError(w, ErrNotFound)
		return
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, section_id, media_id, position,
		       is_required, is_optional, default_selected, created_at
		FROM section_medias
		WHERE section_id = $1
		ORDER BY position ASC
	`, sectionID)
	if err != nil {
		log.Printf("core-playlist-service: list section media: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer rows.Close()

	items := []SectionMedia{}
	for rows.Next() {
		var sm SectionMedia
		if err := rows.Scan(
			&sm.ID,
			&sm.SectionID,
			&sm.MediaID,
			&sm.Order,
			&sm.IsRequired,
			&sm.IsOptional,
			&sm.DefaultSelected,
			&sm.CreatedAt,
		); err != nil {
			log.Printf("core-playlist-service: list section media scan: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		items = append(items, sm)
	}
	if err := rows.Err(); err != nil {
		log.Printf("core-playlist-service: list section media rows: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleAddMediaToSection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sectionID := chi.URLParam(r, "id")
	if sectionID == "" {
		writeError(w, http.StatusBadRequest, "missing section id")
		return
	}

	var body struct {
		MediaID         string `json:"mediaId"`
		IsRequired      bool   `json:"isRequired"`
		DefaultSelected bool   `json:"defaultSelected"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.MediaID == "" {
		writeError(w, http.StatusBadRequest, "missing mediaId")
		return
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Printf("core-playlist-service: add media begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer tx.Rollback(ctx)

	playlistID, playlistStatus, _, err := sectionForUpdate(ctx, tx, sectionID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeAdmissionError(w, ErrNotFound)
		return
	}
	if err != nil {
		log.Printf("core-playlist-service: add media fetch section: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	members, err := orderedIDs(ctx, tx, `
		SELECT media_id FROM section_medias
		WHERE section_id = $1
		ORDER BY position ASC
	`, sectionID)
	if err != nil {
		log.Printf("core-playlist-service: add media fetch members: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	var mediaExists bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM medias WHERE id = $1)
	`, body.MediaID).Scan(&mediaExists); err != nil {
		log.Printf("core-playlist-service: add media exists check: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	snap := sectionSnapshot{
		ID:             sectionID,
		PlaylistStatus: playlistStatus,
		MemberMediaIDs: members,
	}
	if err := validateAddMedia(snap, body.MediaID, mediaExists); err != nil {
		writeAdmissionError(w, err)
		return
	}

	var sm SectionMedia
	err = tx.QueryRow(ctx, `
		INSERT INTO section_medias (
			id, section_id, media_id, position,
			is_required, is_optional, default_selected
		)
		VALUES (
			$1, $2, $3,
			COALESCE(
				(SELECT MAX(position)+1 FROM section_medias WHERE section_id = $2),
				1
			),
			$4, $5, $6
		)
		RETURNING id, section_id, media_id, position,
		          is_required, is_optional, default_selected, created_at
	`,
		uuid.NewString(),
		sectionID,
		body.MediaID,
		body.IsRequired,
		!body.IsRequired,
		body.DefaultSelected,
	).Scan(
		&sm.ID,
		&sm.SectionID,
		&sm.MediaID,
		&sm.Order,
		&sm.IsRequired,
		&sm.IsOptional,
		&sm.DefaultSelected,
		&sm.CreatedAt,
	)
	if err != nil {
		log.Printf("core-playlist-service: add media insert: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := bumpMediasVersion(ctx, tx, sectionID); err != nil {
		log.Printf("core-playlist-service: add media bump version: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("core-playlist-service: add media commit: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	event := map[string]any{
		"type": "sectionMedia.added",
		"payload": map[string]any{
			"playlistId":   playlistID,
			"sectionId":    sectionID,
			"sectionMedia": sm,
		},
	}
	s.publishEvent(ctx, event)

	writeJSON(w, http.StatusCreated, sm)
}

// handleRemoveMedia deletes one membership row and renumbers the remaining
// siblings in the same transaction, so the order sequence never holds a gap
// between reads.
func (s *Server) handleRemoveMedia(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing section media id")
		return
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Printf("core-playlist-service: remove media begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer tx.Rollback(ctx)

	var sectionID, playlistID, playlistStatus string
	var pos int
	err = tx.QueryRow(ctx, `
		SELECT sm.section_id, sm.position, s.playlist_id, p.status
		FROM section_medias sm
		JOIN sections s ON s.id = sm.section_id
		JOIN core_playlists p ON p.id = s.playlist_id
		WHERE sm.id = $1
		FOR UPDATE OF sm, s
	`, id).Scan(&sectionID, &pos, &playlistID, &playlistStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		writeAdmissionError(w, ErrNotFound)
		return
	}
	if err != nil {
		log.Printf("core-playlist-service: remove media fetch: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := requireDraft(playlistStatus); err != nil {
		writeAdmissionError(w, err)
		return
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM section_medias
		WHERE id = $1
	`, id); err != nil {
		log.Printf("core-playlist-service: remove media delete: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if _, err := tx.Exec(ctx, `
		UPDATE section_medias
		SET position = position - 1
		WHERE section_id = $1 AND position > $2
	`, sectionID, pos); err != nil {
		log.Printf("core-playlist-service: remove media compact: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := bumpMediasVersion(ctx, tx, sectionID); err != nil {
		log.Printf("core-playlist-service: remove media bump version: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("core-playlist-service: remove media commit: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	event := map[string]any{
		"type": "sectionMedia.removed",
		"payload": map[string]any{
			"playlistId":     playlistID,
			"sectionId":      sectionID,
			"sectionMediaId": id,
			"position":       pos,
		},
	}
	s.publishEvent(ctx, event)

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleReorderSectionMedia applies a full arrangement of one section's media
// rows as one atomic batch, same contract as section reorder.
func (s *Server) handleReorderSectionMedia(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sectionID := chi.URLParam(r, "id")
	if sectionID == "" {
		writeError(w, http.StatusBadRequest, "missing section id")
		return
	}

	var body struct {
		ReorderedItems []OrderPair `json:"reorderedItems"`
		BaseVersion    int64       `json:"baseVersion"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(body.ReorderedItems) == 0 {
		writeError(w, http.StatusBadRequest, "reorderedItems must not be empty")
		return
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Printf("core-playlist-service: reorder media begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer tx.Rollback(ctx)

	playlistID, playlistStatus, version, err := sectionForUpdate(ctx, tx, sectionID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeAdmissionError(w, ErrNotFound)
		return
	}
	if err != nil {
		log.Printf("core-playlist-service: reorder media fetch section: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	siblingIDs, err := orderedIDs(ctx, tx, `
		SELECT id FROM section_medias
		WHERE section_id = $1
		ORDER BY position ASC
	`, sectionID)
	if err != nil {
		log.Printf("core-playlist-service: reorder media fetch siblings: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := validateReorder(playlistStatus, version, body.BaseVersion, siblingIDs, body.ReorderedItems); err != nil {
		writeAdmissionError(w, err)
		return
	}

	pairs := Renumber(SequenceFromRequested(body.ReorderedItems))

	if _, err := tx.Exec(ctx, `
		UPDATE section_medias
		SET position = -position
		WHERE section_id = $1
	`, sectionID); err != nil {
		log.Printf("core-playlist-service: reorder media park: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	for _, p := range pairs {
		if _, err := tx.Exec(ctx, `
			UPDATE section_medias
			SET position = $3
			WHERE id = $2 AND section_id = $1
		`, sectionID, p.ID, p.Order); err != nil {
			log.Printf("core-playlist-service: reorder media set position: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
	}

	newVersion := version + 1
	if _, err := tx.Exec(ctx, `
		UPDATE sections
		SET medias_version = $2
		WHERE id = $1
	`, sectionID, newVersion); err != nil {
		log.Printf("core-playlist-service: reorder media bump version: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("core-playlist-service: reorder media commit: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	event := map[string]any{
		"type": "sectionMedia.reordered",
		"payload": map[string]any{
			"playlistId":    playlistID,
			"sectionId":     sectionID,
			"mediaOrders":   pairs,
			"mediasVersion": newVersion,
		},
	}
	s.publishEvent(ctx, event)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"mediasVersion": newVersion,
	})
}

// handleBatchAddMedias attaches several medias in one call. Ids that are
// already members or that reference no known media are skipped, not failed;
// the caller gets counts back.
func (s *Server) handleBatchAddMedias(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sectionID := chi.URLParam(r, "id")
	if sectionID == "" {
		writeError(w, http.StatusBadRequest, "missing section id")
		return
	}

	var body struct {
		MediaIDs        []string `json:"mediaIds"`
		StartOrder      int      `json:"startOrder"`
		IsRequired      bool     `json:"isRequired"`
		DefaultSelected bool     `json:"defaultSelected"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(body.MediaIDs) == 0 {
		writeError(w, http.StatusBadRequest, "mediaIds must not be empty")
		return
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Printf("core-playlist-service: batch add begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer tx.Rollback(ctx)

	playlistID, playlistStatus, _, err := sectionForUpdate(ctx, tx, sectionID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeAdmissionError(w, ErrNotFound)
		return
	}
	if err != nil {
		log.Printf("core-playlist-service: batch add fetch section: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := requireDraft(playlistStatus); err != nil {
		writeAdmissionError(w, err)
		return
	}

	members, err := orderedIDs(ctx, tx, `
		SELECT media_id FROM section_medias
		WHERE section_id = $1
		ORDER BY position ASC
	`, sectionID)
	if err != nil {
		log.Printf("core-playlist-service: batch add fetch members: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	known, err := orderedIDs(ctx, tx, `
		SELECT id FROM medias WHERE id = ANY($1)
	`, body.MediaIDs)
	if err != nil {
		log.Printf("core-playlist-service: batch add fetch medias: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	memberSet := make(map[string]bool, len(members))
	for _, m := range members {
		memberSet[m] = true
	}
	knownSet := make(map[string]bool, len(known))
	for _, m := range known {
		knownSet[m] = true
	}

	var toAdd []string
	skipped := 0
	for _, mediaID := range body.MediaIDs {
		if memberSet[mediaID] || !knownSet[mediaID] {
			skipped++
			continue
		}
		memberSet[mediaID] = true
		toAdd = append(toAdd, mediaID)
	}

	if len(toAdd) > 0 {
		currentIDs, err := orderedIDs(ctx, tx, `
			SELECT id FROM section_medias
			WHERE section_id = $1
			ORDER BY position ASC
		`, sectionID)
		if err != nil {
			log.Printf("core-playlist-service: batch add fetch siblings: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}

		newRowIDs := make([]string, len(toAdd))
		rowMedia := make(map[string]string, len(toAdd))
		for i, mediaID := range toAdd {
			rowID := uuid.NewString()
			newRowIDs[i] = rowID
			rowMedia[rowID] = mediaID
		}

		pairs := Renumber(InsertIDs(currentIDs, newRowIDs, body.StartOrder))

		if _, err := tx.Exec(ctx, `
			UPDATE section_medias
			SET position = -position
			WHERE section_id = $1
		`, sectionID); err != nil {
			log.Printf("core-playlist-service: batch add park: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		for _, p := range pairs {
			if mediaID, ok := rowMedia[p.ID]; ok {
				if _, err := tx.Exec(ctx, `
					INSERT INTO section_medias (
						id, section_id, media_id, position,
						is_required, is_optional, default_selected
					)
					VALUES ($1, $2, $3, $4, $5, $6, $7)
				`, p.ID, sectionID, mediaID, p.Order,
					body.IsRequired, !body.IsRequired, body.DefaultSelected); err != nil {
					log.Printf("core-playlist-service: batch add insert: %v", err)
					writeError(w, http.StatusInternalServerError, "database error")
					return
				}
				continue
			}
			if _, err := tx.Exec(ctx, `
				UPDATE section_medias
				SET position = $3
				WHERE id = $2 AND section_id = $1
			`, sectionID, p.ID, p.Order); err != nil {
				log.Printf("core-playlist-service: batch add set position: %v", err)
				writeError(w, http.StatusInternalServerError, "database error")
				return
			}
		}

		if err := bumpMediasVersion(ctx, tx, sectionID); err != nil {
			log.Printf("core-playlist-service: batch add bump version: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("core-playlist-service: batch add commit: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if len(toAdd) > 0 {
		event := map[string]any{
			"type": "sectionMedia.batchAdded",
			"payload": map[string]any{
				"playlistId": playlistID,
				"sectionId":  sectionID,
				"mediaIds":   toAdd,
			},
		}
		s.publishEvent(ctx, event)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"addedCount":   len(toAdd),
		"skippedCount": skipped,
	})
}

// handleBatchRemoveMedias detaches several medias in one call. Unknown ids
// are silently ignored; remaining siblings are renumbered.
func (s *Server) handleBatchRemoveMedias(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sectionID := chi.URLParam(r, "id")
	if sectionID == "" {
		writeError(w, http.StatusBadRequest, "missing section id")
		return
	}

	var body struct {
		MediaIDs []string `json:"mediaIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(body.MediaIDs) == 0 {
		writeError(w, http.StatusBadRequest, "mediaIds must not be empty")
		return
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Printf("core-playlist-service: batch remove begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer tx.Rollback(ctx)

	playlistID, playlistStatus, _, err := sectionForUpdate(ctx, tx, sectionID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeAdmissionError(w, ErrNotFound)
		return
	}
	if err != nil {
		log.Printf("core-playlist-service: batch remove fetch section: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := requireDraft(playlistStatus); err != nil {
		writeAdmissionError(w, err)
		return
	}

	tag, err := tx.Exec(ctx, `
		DELETE FROM section_medias
		WHERE section_id = $1 AND media_id = ANY($2)
	`, sectionID, body.MediaIDs)
	if err != nil {
		log.Printf("core-playlist-service: batch remove delete: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	removed := int(tag.RowsAffected())

	if removed > 0 {
		remaining, err := orderedIDs(ctx, tx, `
			SELECT id FROM section_medias
			WHERE section_id = $1
			ORDER BY position ASC
		`, sectionID)
		if err != nil {
			log.Printf("core-playlist-service: batch remove fetch remaining: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}

		if _, err := tx.Exec(ctx, `
			UPDATE section_medias
			SET position = -position
			WHERE section_id = $1
		`, sectionID); err != nil {
			log.Printf("core-playlist-service: batch remove park: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		for _, p := range Renumber(remaining) {
			if _, err := tx.Exec(ctx, `
				UPDATE section_medias
				SET position = $3
				WHERE id = $2 AND section_id = $1
			`, sectionID, p.ID, p.Order); err != nil {
				log.Printf("core-playlist-service: batch remove set position: %v", err)
				writeError(w, http.StatusInternalServerError, "database error")
				return
			}
		}

		if err := bumpMediasVersion(ctx, tx, sectionID); err != nil {
			log.Printf("core-playlist-service: batch remove bump version: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("core-playlist-service: batch remove commit: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if removed > 0 {
		event := map[string]any{
			"type": "sectionMedia.batchRemoved",
			"payload": map[string]any{
				"playlistId": playlistID,
				"sectionId":  sectionID,
				"mediaIds":   body.MediaIDs,
			},
		}
		s.publishEvent(ctx, event)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"removedCount": removed,
	})
}

func bumpMediasVersion(ctx context.Context, tx pgx.Tx, sectionID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE sections
		SET medias_version = medias_version + 1
		WHERE id = $1
	`, sectionID)
	return err
}
