package channel

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

func AutoMigrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS channels (
          id                  uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          user_id             TEXT NOT NULL UNIQUE,
          hash                TEXT UNIQUE,
          broadcast_code      TEXT,
          is_broadcasting     BOOLEAN NOT NULL DEFAULT FALSE,
          current_playlist_id uuid,
          state               JSONB,
          created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `)
	if err != nil {
		log.Printf("channel: migrate channels: %v", err)
		return err
	}

	// The 4-digit code only needs to be unique among currently-broadcasting
	// channels.
	if _, err := pool.Exec(ctx, `
      CREATE UNIQUE INDEX IF NOT EXISTS idx_channels_broadcast_code_active
      ON channels(broadcast_code) WHERE is_broadcasting = TRUE
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS live_stats (
          channel_id   uuid NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
          viewer_id    TEXT NOT NULL,
          last_seen_at TIMESTAMPTZ NOT NULL DEFAULT now(),
          PRIMARY KEY (channel_id, viewer_id)
      )
    `); err != nil {
		return err
	}

	return nil
}
