package coreplaylist

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

func AutoMigrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS core_playlists (
          id          uuid PRIMARY KEY,
          title       TEXT NOT NULL,
          description TEXT NOT NULL DEFAULT '',
          category_id TEXT NOT NULL DEFAULT '',
          status      TEXT NOT NULL DEFAULT 'draft',
          created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
          updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `)
	if err != nil {
		log.Printf("migrate core-playlist-service: %v", err)
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS medias (
          id          uuid PRIMARY KEY,
          title       TEXT NOT NULL,
          source_kind TEXT NOT NULL,
          storage_ref TEXT NOT NULL DEFAULT '',
          embed_url   TEXT NOT NULL DEFAULT '',
          duration_ms INT NOT NULL DEFAULT 0,
          created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS sections (
          id               uuid PRIMARY KEY,
          playlist_id      uuid NOT NULL REFERENCES core_playlists(id) ON DELETE CASCADE,
          title            TEXT NOT NULL,
          description      TEXT NOT NULL DEFAULT '',
          section_type     TEXT NOT NULL DEFAULT 'base',
          min_select_media INT NOT NULL DEFAULT 0,
          max_select_media INT NOT NULL DEFAULT 1,
          position         INT NOT NULL,
          created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS section_medias (
          id               uuid PRIMARY KEY,
          section_id       uuid NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
          media_id         uuid NOT NULL REFERENCES medias(id),
          position         INT NOT NULL,
          is_required      BOOLEAN NOT NULL DEFAULT FALSE,
          is_optional      BOOLEAN NOT NULL DEFAULT TRUE,
          default_selected BOOLEAN NOT NULL DEFAULT FALSE,
          created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		return err
	}

	// --- Migrations for reorder concurrency tokens ---

	if _, err := pool.Exec(ctx, `
		ALTER TABLE core_playlists ADD COLUMN IF NOT EXISTS sections_version BIGINT NOT NULL DEFAULT 1;
		ALTER TABLE sections ADD COLUMN IF NOT EXISTS medias_version BIGINT NOT NULL DEFAULT 1;
	`); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE UNIQUE INDEX IF NOT EXISTS idx_sections_playlist_position
      ON sections(playlist_id, position)
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE UNIQUE INDEX IF NOT EXISTS idx_section_medias_section_position
      ON section_medias(section_id, position)
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE UNIQUE INDEX IF NOT EXISTS idx_section_medias_membership
      ON section_medias(section_id, media_id)
    `); err != nil {
		return err
	}

	return nil
}
