package coreplaylist

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
)

// StartOrderAudit starts a background worker that looks for sibling sets
// whose positions are no longer a dense 1..N run (rows written before gap
// closing became synchronous) and repairs them.
func (s *Server) StartOrderAudit(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				s.repairOrderGaps(ctx)
			}
		}
	}()
}

func (s *Server) repairOrderGaps(ctx context.Context) {
	// A dense 1..N run has MIN=1 and MAX=COUNT. Only draft playlists are
	// touched; published subtrees are immutable.
	rows, err := s.db.Query(ctx, `
		SELECT sm.section_id
		FROM section_medias sm
		JOIN sections s ON s.id = sm.section_id
		JOIN core_playlists p ON p.id = s.playlist_id
		WHERE p.status = 'draft'
		GROUP BY sm.section_id
		HAVING MIN(sm.position) <> 1 OR MAX(sm.position) <> COUNT(*)
	`)
	if err != nil {
		log.Printf("core-playlist-service: order audit query: %v", err)
		return
	}
	defer rows.Close()

	var sectionIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			log.Printf("core-playlist-service: order audit scan: %v", err)
			continue
		}
		sectionIDs = append(sectionIDs, id)
	}

	for _, id := range sectionIDs {
		if err := s.renumberSectionMedia(ctx, id); err != nil {
			log.Printf("core-playlist-service: order audit repair %s: %v", id, err)
			continue
		}
		log.Printf("core-playlist-service: order audit repaired section %s", id)
	}
}

func (s *Server) renumberSectionMedia(ctx context.Context, sectionID string) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ids, err := orderedIDs(ctx, tx, `
		SELECT id FROM section_medias
		WHERE section_id = $1
		ORDER BY position ASC
		FOR UPDATE
	`, sectionID)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE section_medias
		SET position = -position
		WHERE section_id = $1
	`, sectionID); err != nil {
		return err
	}
	for _, p := range Renumber(ids) {
		if _, err := tx.Exec(ctx, `
			UPDATE section_medias
			SET position = $3
			WHERE id = $2 AND section_id = $1
		`, sectionID, p.ID, p.Order); err != nil {
			return err
		}
	}

	if err := bumpMediasVersion(ctx, tx, sectionID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
