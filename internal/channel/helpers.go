package channel

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5"
)

const viewerStaleAfter = "1 minute"

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": msg,
	})
}

func (s *Server) hashExists(ctx context.Context, hash string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM channels WHERE hash = $1)
	`, hash).Scan(&exists)
	return exists, err
}

func (s *Server) broadcastCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM channels WHERE broadcast_code = $1 AND is_broadcasting = TRUE)
	`, code).Scan(&exists)
	return exists, err
}

func scanChannel(row pgx.Row) (*Channel, error) {
	var ch Channel
	// hash is briefly NULL between the insert and the post-insert mint.
	var hash, code *string
	var state []byte
	err := row.Scan(
		&ch.ID, &ch.UserID, &hash, &code,
		&ch.IsBroadcasting, &ch.CurrentPlaylistID, &state, &ch.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if hash != nil {
		ch.Hash = *hash
	}
	if code != nil {
		ch.BroadcastCode = *code
	}
	ch.State = json.RawMessage(state)
	return &ch, nil
}

const channelColumns = `id, user_id, hash, broadcast_code, is_broadcasting, current_playlist_id, state, created_at`

func (s *Server) loadByUserID(ctx context.Context, userID string) (*Channel, error) {
	return scanChannel(s.db.QueryRow(ctx, `
		SELECT `+channelColumns+` FROM channels WHERE user_id = $1
	`, userID))
}

func (s *Server) loadByHash(ctx context.Context, hash string) (*Channel, error) {
	return scanChannel(s.db.QueryRow(ctx, `
		SELECT `+channelColumns+` FROM channels WHERE hash = $1
	`, hash))
}

// activeViewers counts viewers seen within the staleness window.
func (s *Server) activeViewers(ctx context.Context, channelID string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM live_stats
		WHERE channel_id = $1 AND last_seen_at > now() - INTERVAL '`+viewerStaleAfter+`'
	`, channelID).Scan(&count)
	return count, err
}

// publishChannel pushes an event to the channel's topic. Fire-and-forget;
// viewers that miss it re-fetch via the watch endpoint.
func (s *Server) publishChannel(ctx context.Context, hash, eventType string, payload any) {
	if s.rdb == nil {
		return
	}
	data, err := json.Marshal(map[string]any{
		"type":    eventType,
		"payload": payload,
	})
	if err != nil {
		log.Printf("channel: marshal event: %v", err)
		return
	}
	if err := s.rdb.Publish(ctx, "channel."+hash, string(data)).Err(); err != nil {
		log.Printf("channel: publish event: %v", err)
	}
}

// publishView loads the current watch view and publishes it.
func (s *Server) publishView(ctx context.Context, hash, eventType string) {
	if s.rdb == nil {
		return
	}
	ch, err := s.loadByHash(ctx, hash)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			log.Printf("channel: publish view load: %v", err)
		}
		return
	}
	s.publishChannel(ctx, hash, eventType, map[string]any{"channel": ch.watchView()})
}
