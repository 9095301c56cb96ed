package live

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/holoduke/youtube-party-playlist-sub001/internal/codes"
)

// handleGoLive starts a live session for a playlist the caller owns.
// POST /playlists/{id}/go-live
//
// Fresh share/host codes are minted on every call; any codes from a previous
// session become invalid the moment the update lands.
func (s *Server) handleGoLive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	playlistID := chi.URLParam(r, "id")
	if playlistID == "" {
		writeError(w, http.StatusBadRequest, "missing playlist id")
		return
	}

	var ownerID, name string
	err := s.db.QueryRow(ctx, `
		SELECT user_id, name FROM playlists WHERE id = $1
	`, playlistID).Scan(&ownerID, &name)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	if err != nil {
		log.Printf("live: go live fetch playlist: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if ownerID != userID {
		writeLiveError(w, errForbidden("only the owner can go live"))
		return
	}

	videos, err := s.loadVideos(ctx, playlistID)
	if err != nil {
		log.Printf("live: go live load videos: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	shareCode, err := codes.Generate(ctx, codes.KindShare, s.shareCodeExists)
	if err != nil {
		writeLiveError(w, err)
		return
	}
	hostCode, err := codes.Generate(ctx, codes.KindHost, s.hostCodeExists)
	if err != nil {
		writeLiveError(w, err)
		return
	}

	// Snapshot: first two videos preloaded into the player slots, crossfade
	// neutral, paused, index 0.
	snapshot := playerState{CrossfadeValue: 0, PlaylistIndex: 0, IsPlaying: false}
	if len(videos) > 0 {
		snapshot.Player1Video = &videos[0]
	}
	if len(videos) > 1 {
		snapshot.Player2Video = &videos[1]
	}
	stateJSON, err := json.Marshal(snapshot)
	if err != nil {
		log.Printf("live: go live marshal state: %v", err)
		writeError(w, http.StatusInternalServerError, "encode error")
		return
	}

	if _, err := s.db.Exec(ctx, `
		UPDATE playlists
		SET status = 'live',
		    share_code = $2,
		    host_code = $3,
		    state = $4,
		    queue = '[]'::jsonb,
		    likes = '{}'::jsonb
		WHERE id = $1
	`, playlistID, shareCode, hostCode, stateJSON); err != nil {
		log.Printf("live: go live update: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	session := Session{
		ID:        playlistID,
		UserID:    ownerID,
		Name:      name,
		Status:    statusLive,
		ShareCode: shareCode,
		HostCode:  hostCode,
		State:     stateJSON,
		Queue:     []QueueItem{},
		Likes:     map[string]int{},
		Videos:    videos,
	}

	s.publishView(ctx, shareCode, "state", nil)

	writeJSON(w, http.StatusOK, map[string]any{
		"playlist":  session,
		"shareCode": shareCode,
		"hostCode":  hostCode,
	})
}

// handleStopLive ends a live session. Host-only: the path code must match the
// current host code.
// POST /live/{code}/stop
func (s *Server) handleStopLive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hostCode := normalizeCode(chi.URLParam(r, "code"))
	if hostCode == "" {
		writeError(w, http.StatusBadRequest, "missing host code")
		return
	}

	var playlistID, shareCode string
	err := s.db.QueryRow(ctx, `
		SELECT id, share_code FROM playlists WHERE host_code = $1 AND status = 'live'
	`, hostCode).Scan(&playlistID, &shareCode)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "no live session for this code")
		return
	}
	if err != nil {
		log.Printf("live: stop live fetch: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	// Clearing the codes also kills the topic: stale subscribers hang on a
	// channel nothing publishes to anymore.
	if _, err := s.db.Exec(ctx, `
		UPDATE playlists
		SET status = 'stopped',
		    share_code = NULL,
		    host_code = NULL,
		    state = NULL,
		    queue = NULL,
		    likes = NULL
		WHERE id = $1
	`, playlistID); err != nil {
		log.Printf("live: stop live update: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishSession(ctx, shareCode, "ended", nil)

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleJoin resolves a share code to the guest view of a session.
// GET /live/join/{shareCode}
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shareCode := normalizeCode(chi.URLParam(r, "shareCode"))

	sess, err := s.loadLiveSession(ctx, false, shareCode)
	if err != nil {
		writeLiveError(w, err)
		return
	}
	sess.Videos, err = s.loadVideos(ctx, sess.ID)
	if err != nil {
		log.Printf("live: join load videos: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"playlist": sess.guestView(),
		"isHost":   false,
	})
}

// handleJoinAsHost resolves a host code to the full session view.
// GET /live/host/{hostCode}
func (s *Server) handleJoinAsHost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hostCode := normalizeCode(chi.URLParam(r, "hostCode"))

	sess, err := s.loadLiveSession(ctx, true, hostCode)
	if err != nil {
		writeLiveError(w, err)
		return
	}
	sess.Videos, err = s.loadVideos(ctx, sess.ID)
	if err != nil {
		log.Printf("live: join as host load videos: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"playlist": sess,
		"isHost":   true,
	})
}

// handleLiveIndex lists currently-live sessions.
// GET /live
func (s *Server) handleLiveIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, name, share_code
		FROM playlists
		WHERE status = 'live'
		ORDER BY name ASC
	`)
	if err != nil {
		log.Printf("live: live index query: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var sess Session
		var shareCode *string
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.Name, &shareCode); err != nil {
			log.Printf("live: live index scan: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		sess.Status = statusLive
		if shareCode != nil {
			sess.ShareCode = *shareCode
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		log.Printf("live: live index rows: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, sessions)
}

// loadLiveSession fetches a session by share or host code. Only rows with
// status='live' resolve; anything else is NotFound, so stale codes die the
// moment a session stops or re-mints.
func (s *Server) loadLiveSession(ctx context.Context, byHostCode bool, code string) (*Session, error) {
	query := `
		SELECT id, user_id, name, status, share_code, host_code, state, queue, likes
		FROM playlists
		WHERE share_code = $1 AND status = 'live'
	`
	if byHostCode {
		query = `
			SELECT id, user_id, name, status, share_code, host_code, state, queue, likes
			FROM playlists
			WHERE host_code = $1 AND status = 'live'
		`
	}

	var sess Session
	var shareCode, hostCode *string
	var state, queue, likes []byte
	err := s.db.QueryRow(ctx, query, code).Scan(
		&sess.ID, &sess.UserID, &sess.Name, &sess.Status,
		&shareCode, &hostCode, &state, &queue, &likes,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errNotFound("no live session for this code")
	}
	if err != nil {
		return nil, err
	}

	if shareCode != nil {
		sess.ShareCode = *shareCode
	}
	if hostCode != nil {
		sess.HostCode = *hostCode
	}
	sess.State = json.RawMessage(state)
	if sess.Queue, err = decodeQueue(queue); err != nil {
		return nil, err
	}
	if sess.Likes, err = decodeLikes(likes); err != nil {
		return nil, err
	}
	return &sess, nil
}

// guestView strips host-only fields.
func (sess *Session) guestView() Session {
	v := *sess
	v.HostCode = ""
	return v
}

// publishView loads the current guest view and publishes it with the given
// event type. extra is merged into the payload (e.g. the approved queue
// item). Skipped entirely when no event bus is wired.
func (s *Server) publishView(ctx context.Context, shareCode, eventType string, extra map[string]any) {
	if s.rdb == nil {
		return
	}
	sess, err := s.loadLiveSession(ctx, false, shareCode)
	if err != nil {
		log.Printf("live: publish view load: %v", err)
		return
	}
	payload := map[string]any{"session": sess.guestView()}
	for k, v := range extra {
		payload[k] = v
	}
	s.publishSession(ctx, shareCode, eventType, payload)
}
