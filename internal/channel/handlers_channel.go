package channel

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/holoduke/youtube-party-playlist-sub001/internal/codes"
)

// requireSelf checks that the authenticated caller owns the {userId} route.
func requireSelf(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return "", false
	}
	if userID != chi.URLParam(r, "userId") {
		writeError(w, http.StatusForbidden, "forbidden")
		return "", false
	}
	return userID, true
}

// handleGetOrCreate returns the caller's channel, creating it on first use.
// The permanent hash is minted after the insert so the row id exists before
// any code is tied to it.
// GET /channels/{userId}
func (s *Server) handleGetOrCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireSelf(w, r)
	if !ok {
		return
	}

	ch, err := s.loadByUserID(ctx, userID)
	if err == nil {
		writeJSON(w, http.StatusOK, ch)
		return
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		log.Printf("channel: get channel: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	// Two concurrent first calls race on user_id; the loser reloads.
	var channelID string
	err = s.db.QueryRow(ctx, `
		INSERT INTO channels (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING id
	`, userID).Scan(&channelID)
	if errors.Is(err, pgx.ErrNoRows) {
		ch, err = s.loadByUserID(ctx, userID)
		if err != nil {
			log.Printf("channel: reload after insert race: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		writeJSON(w, http.StatusOK, ch)
		return
	}
	if err != nil {
		log.Printf("channel: create channel: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	hash, err := codes.Generate(ctx, codes.KindHash, s.hashExists)
	if err != nil {
		if errors.Is(err, codes.ErrExhausted) {
			writeError(w, http.StatusConflict, "could not allocate a unique hash, retry")
			return
		}
		log.Printf("channel: generate hash: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if _, err := s.db.Exec(ctx, `
		UPDATE channels SET hash = $2 WHERE id = $1
	`, channelID, hash); err != nil {
		log.Printf("channel: assign hash: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	ch, err = s.loadByUserID(ctx, userID)
	if err != nil {
		log.Printf("channel: reload after create: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

// handleStartBroadcast turns broadcasting on and re-rolls the 4-digit code.
// A channel already broadcasting just gets a fresh code; old codes stop
// resolving immediately.
// POST /channels/{userId}/start-broadcast
func (s *Server) handleStartBroadcast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireSelf(w, r)
	if !ok {
		return
	}

	var body struct {
		PlaylistID *string `json:"playlistId"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	ch, err := s.loadByUserID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "channel not found")
		return
	}
	if err != nil {
		log.Printf("channel: start broadcast fetch: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	code, err := codes.Generate(ctx, codes.KindBroadcast, s.broadcastCodeExists)
	if err != nil {
		if errors.Is(err, codes.ErrExhausted) {
			writeError(w, http.StatusConflict, "could not allocate a broadcast code, retry")
			return
		}
		log.Printf("channel: generate broadcast code: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if _, err := s.db.Exec(ctx, `
		UPDATE channels
		SET is_broadcasting = TRUE,
		    broadcast_code = $2,
		    current_playlist_id = $3,
		    state = COALESCE(state, '{}'::jsonb)
		WHERE id = $1
	`, ch.ID, code, body.PlaylistID); err != nil {
		log.Printf("channel: start broadcast update: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	ch, err = s.loadByUserID(ctx, userID)
	if err != nil {
		log.Printf("channel: start broadcast reload: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishView(ctx, ch.Hash, "broadcast.started")

	writeJSON(w, http.StatusOK, ch)
}

// handleStopBroadcast turns broadcasting off and clears the ephemeral fields.
// POST /channels/{userId}/stop-broadcast
func (s *Server) handleStopBroadcast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireSelf(w, r)
	if !ok {
		return
	}

	var hash *string
	err := s.db.QueryRow(ctx, `
		UPDATE channels
		SET is_broadcasting = FALSE,
		    broadcast_code = NULL,
		    current_playlist_id = NULL,
		    state = NULL
		WHERE user_id = $1
		RETURNING hash
	`, userID).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "channel not found")
		return
	}
	if err != nil {
		log.Printf("channel: stop broadcast: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if hash != nil {
		s.publishChannel(ctx, *hash, "broadcast.ended", nil)
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleSyncState overwrites the channel's player state. Last-write-wins,
// same contract as the live-session sync.
// POST /channels/{userId}/sync
func (s *Server) handleSyncState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireSelf(w, r)
	if !ok {
		return
	}

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

	var hash string
	err = s.db.QueryRow(ctx, `
		UPDATE channels
		SET state = $2
		WHERE user_id = $1 AND is_broadcasting = TRUE
		RETURNING hash
	`, userID, stateJSON).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "channel is not broadcasting")
		return
	}
	if err != nil {
		log.Printf("channel: sync state: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishView(ctx, hash, "state")

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"state":   json.RawMessage(stateJSON),
	})
}

// handleViewerCount reports the broadcaster's active audience size.
// GET /channels/{userId}/viewers
func (s *Server) handleViewerCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireSelf(w, r)
	if !ok {
		return
	}

	ch, err := s.loadByUserID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "channel not found")
		return
	}
	if err != nil {
		log.Printf("channel: viewer count fetch: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	count, err := s.activeViewers(ctx, ch.ID)
	if err != nil {
		log.Printf("channel: viewer count: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"viewers": count})
}
