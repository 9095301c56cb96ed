package channel

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

// handleWatch resolves a permanent hash to the viewer's picture of a channel.
// The hash resolves even when the channel is idle; the client shows an
// offline screen until a broadcast starts.
// GET /channels/watch/{hash}
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hash := chi.URLParam(r, "hash")

	ch, err := s.loadByHash(ctx, hash)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "channel not found")
		return
	}
	if err != nil {
		log.Printf("channel: watch fetch: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	viewers, err := s.activeViewers(ctx, ch.ID)
	if err != nil {
		log.Printf("channel: watch viewers: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"channel": ch.watchView(),
		"viewers": viewers,
	})
}

// handleViewerPing records presence for a viewer and prunes entries that have
// gone quiet. Clients ping on an interval well under the staleness window.
// POST /channels/watch/{hash}/ping
func (s *Server) handleViewerPing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hash := chi.URLParam(r, "hash")

	var body struct {
		ViewerID string `json:"viewerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	body.ViewerID = strings.TrimSpace(body.ViewerID)
	if body.ViewerID == "" {
		writeError(w, http.StatusBadRequest, "viewerId is required")
		return
	}

	var channelID string
	err := s.db.QueryRow(ctx, `
		SELECT id FROM channels WHERE hash = $1
	`, hash).Scan(&channelID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "channel not found")
		return
	}
	if err != nil {
		log.Printf("channel: ping fetch: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if _, err := s.db.Exec(ctx, `
		INSERT INTO live_stats (channel_id, viewer_id, last_seen_at)
		VALUES ($1, $2, now())
		ON CONFLICT (channel_id, viewer_id) DO UPDATE SET last_seen_at = now()
	`, channelID, body.ViewerID); err != nil {
		log.Printf("channel: ping upsert: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	// Piggyback pruning on pings so dead rows never need a background job.
	if _, err := s.db.Exec(ctx, `
		DELETE FROM live_stats
		WHERE channel_id = $1 AND last_seen_at <= now() - INTERVAL '`+viewerStaleAfter+`'
	`, channelID); err != nil {
		log.Printf("channel: ping prune: %v", err)
	}

	count, err := s.activeViewers(ctx, channelID)
	if err != nil {
		log.Printf("channel: ping count: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"viewers": count})
}

// handleViewerLeave drops a viewer's presence row immediately instead of
// waiting for it to go stale.
// POST /channels/watch/{hash}/leave
func (s *Server) handleViewerLeave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hash := chi.URLParam(r, "hash")

	var body struct {
		ViewerID string `json:"viewerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.ViewerID == "" {
		writeError(w, http.StatusBadRequest, "viewerId is required")
		return
	}

	if _, err := s.db.Exec(ctx, `
		DELETE FROM live_stats
		USING channels
		WHERE live_stats.channel_id = channels.id
		  AND channels.hash = $1
		  AND live_stats.viewer_id = $2
	`, hash, body.ViewerID); err != nil {
		log.Printf("channel: leave delete: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleCodeLookup resolves a 4-digit broadcast code to the channel hash.
// Only broadcasting channels resolve; a code from a finished broadcast is as
// good as unknown.
// GET /channels/code/{code}
func (s *Server) handleCodeLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := strings.TrimSpace(chi.URLParam(r, "code"))

	var hash string
	err := s.db.QueryRow(ctx, `
		SELECT hash FROM channels WHERE broadcast_code = $1 AND is_broadcasting = TRUE
	`, code).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "no broadcast for this code")
		return
	}
	if err != nil {
		log.Printf("channel: code lookup: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"hash": hash})
}

// handleLiveChannels lists channels currently on air.
// GET /channels/live
func (s *Server) handleLiveChannels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, hash, current_playlist_id, created_at
		FROM channels
		WHERE is_broadcasting = TRUE
		ORDER BY created_at DESC
	`)
	if err != nil {
		log.Printf("channel: live channels query: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer rows.Close()

	channels := []Channel{}
	for rows.Next() {
		var ch Channel
		if err := rows.Scan(&ch.ID, &ch.UserID, &ch.Hash, &ch.CurrentPlaylistID, &ch.CreatedAt); err != nil {
			log.Printf("channel: live channels scan: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		ch.IsBroadcasting = true
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		log.Printf("channel: live channels rows: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, channels)
}
