package playlist

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AutoMigrate creates the base playlist tables. The live package adds its
// session columns on top of playlists, so this one runs first.
func AutoMigrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS playlists (
          id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          user_id     TEXT NOT NULL,
          name        TEXT NOT NULL,
          description TEXT NOT NULL DEFAULT '',
          is_public   BOOLEAN NOT NULL DEFAULT TRUE,
          hash        TEXT NOT NULL UNIQUE,
          created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `)
	if err != nil {
		log.Printf("playlist: migrate playlists: %v", err)
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS videos (
          id            uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          youtube_id    TEXT NOT NULL UNIQUE,
          title         TEXT NOT NULL,
          thumbnail_url TEXT NOT NULL DEFAULT '',
          duration_s    INT NOT NULL DEFAULT 0,
          created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS playlist_videos (
          playlist_id uuid NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
          video_id    uuid NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
          position    INT NOT NULL,
          created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
          PRIMARY KEY (playlist_id, video_id)
      )
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE INDEX IF NOT EXISTS idx_playlist_videos_position
      ON playlist_videos(playlist_id, position)
    `); err != nil {
		return err
	}

	return nil
}
