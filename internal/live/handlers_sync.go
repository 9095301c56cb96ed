package live

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

// handleSyncState overwrites the session's player state. Host-only,
// last-write-wins: no version check, the newest sync simply replaces the
// blob.
// POST /live/{code}/sync
func (s *Server) handleSyncState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hostCode := normalizeCode(chi.URLParam(r, "code"))

	var state map[string]any
	if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	stateJSON, err := json.Marshal(state)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid state")
		return
	}

	var shareCode string
	err = s.db.QueryRow(ctx, `
		UPDATE playlists
		SET state = $2
		WHERE host_code = $1 AND status = 'live'
		RETURNING share_code
	`, hostCode, stateJSON).Scan(&shareCode)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "no live session for this code")
		return
	}
	if err != nil {
		log.Printf("live: sync state update: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishView(ctx, shareCode, "state", nil)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"state":   json.RawMessage(stateJSON),
	})
}

// handleQueueSong appends a guest song request. The append is a single SQL
// statement against the stored jsonb array, so concurrent guests cannot lose
// each other's entries.
// POST /live/{code}/queue
func (s *Server) handleQueueSong(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shareCode := normalizeCode(chi.URLParam(r, "code"))

	var body struct {
		VideoID     string `json:"videoId"`
		RequestedBy string `json:"requestedBy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.VideoID == "" {
		writeError(w, http.StatusBadRequest, "videoId is required")
		return
	}

	item := QueueItem{
		VideoID:     body.VideoID,
		RequestedBy: body.RequestedBy,
		RequestedAt: time.Now().UTC(),
	}
	err := s.db.QueryRow(ctx, `
		SELECT youtube_id, title, thumbnail_url FROM videos WHERE id = $1
	`, body.VideoID).Scan(&item.YoutubeID, &item.Title, &item.ThumbnailURL)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "video not found")
		return
	}
	if err != nil {
		log.Printf("live: queue song fetch video: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	itemJSON, err := json.Marshal(item)
	if err != nil {
		log.Printf("live: queue song marshal: %v", err)
		writeError(w, http.StatusInternalServerError, "encode error")
		return
	}

	var queueRaw []byte
	err = s.db.QueryRow(ctx, `
		UPDATE playlists
		SET queue = COALESCE(queue, '[]'::jsonb) || $2::jsonb
		WHERE share_code = $1 AND status = 'live'
		RETURNING queue
	`, shareCode, itemJSON).Scan(&queueRaw)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "no live session for this code")
		return
	}
	if err != nil {
		log.Printf("live: queue song append: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	queue, err := decodeQueue(queueRaw)
	if err != nil {
		log.Printf("live: queue song decode: %v", err)
		writeError(w, http.StatusInternalServerError, "decode error")
		return
	}

	s.publishView(ctx, shareCode, "queue", nil)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"queue":   queue,
	})
}

// handleLikeVideo increments the like counter for a video. The increment
// happens inside one UPDATE on the stored aggregate, so two guests liking at
// the same instant are both counted.
// POST /live/{code}/like
func (s *Server) handleLikeVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shareCode := normalizeCode(chi.URLParam(r, "code"))

	var body struct {
		VideoID string `json:"videoId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.VideoID == "" {
		writeError(w, http.StatusBadRequest, "videoId is required")
		return
	}

	var newCount int
	var likesRaw []byte
	err := s.db.QueryRow(ctx, `
		UPDATE playlists
		SET likes = jsonb_set(
			COALESCE(likes, '{}'::jsonb),
			ARRAY[$2::text],
			to_jsonb(COALESCE((likes ->> $2::text)::int, 0) + 1)
		)
		WHERE share_code = $1 AND status = 'live'
		RETURNING (likes ->> $2::text)::int, likes
	`, shareCode, body.VideoID).Scan(&newCount, &likesRaw)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "no live session for this code")
		return
	}
	if err != nil {
		log.Printf("live: like video update: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	likes, err := decodeLikes(likesRaw)
	if err != nil {
		log.Printf("live: like video decode: %v", err)
		writeError(w, http.StatusInternalServerError, "decode error")
		return
	}

	s.publishView(ctx, shareCode, "likes", nil)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   newCount,
		"likes":   likes,
	})
}

// handleApprove removes a queue entry and hands the video to the playlist's
// permanent list. Splice and insert run in one transaction; a queue index
// already consumed by a concurrent approve comes back as out-of-range.
// POST /live/{code}/approve
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hostCode := normalizeCode(chi.URLParam(r, "code"))

	var body struct {
		QueueIndex *int `json:"queueIndex"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.QueueIndex == nil || *body.QueueIndex < 0 {
		writeError(w, http.StatusBadRequest, "queueIndex is required")
		return
	}
	index := *body.QueueIndex

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Printf("live: approve begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer tx.Rollback(ctx)

	var playlistID, shareCode string
	var queueRaw []byte
	err = tx.QueryRow(ctx, `
		SELECT id, share_code, queue
		FROM playlists
		WHERE host_code = $1 AND status = 'live'
		FOR UPDATE
	`, hostCode).Scan(&playlistID, &shareCode, &queueRaw)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "no live session for this code")
		return
	}
	if err != nil {
		log.Printf("live: approve fetch: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	queue, err := decodeQueue(queueRaw)
	if err != nil {
		log.Printf("live: approve decode queue: %v", err)
		writeError(w, http.StatusInternalServerError, "decode error")
		return
	}
	if index >= len(queue) {
		writeLiveError(w, errOutOfRange("invalid queue index"))
		return
	}

	approved := queue[index]
	queue = append(queue[:index], queue[index+1:]...)

	queueJSON, err := json.Marshal(queue)
	if err != nil {
		log.Printf("live: approve marshal queue: %v", err)
		writeError(w, http.StatusInternalServerError, "encode error")
		return
	}
	if _, err := tx.Exec(ctx, `
		UPDATE playlists SET queue = $2 WHERE id = $1
	`, playlistID, queueJSON); err != nil {
		log.Printf("live: approve update queue: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	// Handoff into the permanent video list, at the tail.
	if _, err := tx.Exec(ctx, `
		INSERT INTO playlist_videos (playlist_id, video_id, position)
		SELECT $1, $2, COALESCE(MAX(position) + 1, 0)
		FROM playlist_videos
		WHERE playlist_id = $1
		ON CONFLICT (playlist_id, video_id) DO NOTHING
	`, playlistID, approved.VideoID); err != nil {
		log.Printf("live: approve insert video: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("live: approve commit: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishView(ctx, shareCode, "queue", map[string]any{"approved": approved})

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"approved": approved,
		"queue":    queue,
	})
}
