package live

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AutoMigrate adds the live-session columns to playlists. The base playlists
// and videos tables are owned by the playlist package; run its migration
// first.
func AutoMigrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `
		ALTER TABLE playlists ADD COLUMN IF NOT EXISTS status TEXT NOT NULL DEFAULT 'stopped';
		ALTER TABLE playlists ADD COLUMN IF NOT EXISTS share_code TEXT;
		ALTER TABLE playlists ADD COLUMN IF NOT EXISTS host_code TEXT;
		ALTER TABLE playlists ADD COLUMN IF NOT EXISTS state JSONB;
		ALTER TABLE playlists ADD COLUMN IF NOT EXISTS queue JSONB;
		ALTER TABLE playlists ADD COLUMN IF NOT EXISTS likes JSONB;
	`); err != nil {
		log.Printf("live: migrate playlists live columns: %v", err)
		return err
	}

	// Codes only need to be unique among currently-live sessions.
	if _, err := pool.Exec(ctx, `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_playlists_share_code_live
		ON playlists(share_code) WHERE status = 'live'
	`); err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_playlists_host_code_live
		ON playlists(host_code) WHERE status = 'live'
	`); err != nil {
		return err
	}

	return nil
}
