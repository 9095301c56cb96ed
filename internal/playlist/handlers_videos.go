package playlist

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

// handleAddVideo links a video to the playlist at the tail. Video rows are
// shared across playlists, so the upsert is keyed on the YouTube id.
func (s *Server) handleAddVideo(w http.ResponseWriter, r *http.Request) {
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

	var body struct {
		YoutubeID    string `json:"youtubeId"`
		Title        string `json:"title"`
		ThumbnailURL string `json:"thumbnailUrl"`
		DurationS    int    `json:"durationS"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	body.YoutubeID = strings.TrimSpace(body.YoutubeID)
	body.Title = strings.TrimSpace(body.Title)
	body.ThumbnailURL = strings.TrimSpace(body.ThumbnailURL)

	if body.YoutubeID == "" {
		writeError(w, http.StatusBadRequest, "youtubeId is required")
		return
	}
	if body.Title == "" || len(body.Title) > 300 {
		writeError(w, http.StatusBadRequest, "title must be between 1 and 300 characters")
		return
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Printf("playlist: add video begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer tx.Rollback(ctx)

	var ownerID, hash string
	err = tx.QueryRow(ctx, `
		SELECT user_id, hash FROM playlists WHERE id = $1
	`, playlistID).Scan(&ownerID, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	if err != nil {
		log.Printf("playlist: add video fetch playlist: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if ownerID != userID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var v Video
	err = tx.QueryRow(ctx, `
		INSERT INTO videos (youtube_id, title, thumbnail_url, duration_s)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (youtube_id) DO UPDATE
		SET title = EXCLUDED.title,
		    thumbnail_url = EXCLUDED.thumbnail_url,
		    duration_s = EXCLUDED.duration_s
		RETURNING id, youtube_id, title, thumbnail_url, duration_s
	`, body.YoutubeID, body.Title, body.ThumbnailURL, body.DurationS).Scan(
		&v.ID, &v.YoutubeID, &v.Title, &v.ThumbnailURL, &v.DurationS,
	)
	if err != nil {
		log.Printf("playlist: add video upsert: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO playlist_videos (playlist_id, video_id, position)
		SELECT $1, $2, COALESCE(MAX(position) + 1, 0)
		FROM playlist_videos
		WHERE playlist_id = $1
		ON CONFLICT (playlist_id, video_id) DO UPDATE SET position = playlist_videos.position
		RETURNING position
	`, playlistID, v.ID).Scan(&v.Position)
	if err != nil {
		log.Printf("playlist: add video link: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("playlist: add video commit: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(ctx, hash, "video.added", map[string]any{"video": v})

	writeJSON(w, http.StatusCreated, v)
}

// handleRemoveVideo unlinks a video and closes the position gap.
func (s *Server) handleRemoveVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	playlistID := chi.URLParam(r, "id")
	videoID := chi.URLParam(r, "videoId")

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Printf("playlist: remove video begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer tx.Rollback(ctx)

	var ownerID, hash string
	err = tx.QueryRow(ctx, `
		SELECT user_id, hash FROM playlists WHERE id = $1
	`, playlistID).Scan(&ownerID, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	if err != nil {
		log.Printf("playlist: remove video fetch playlist: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if ownerID != userID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var removedPos int
	err = tx.QueryRow(ctx, `
		DELETE FROM playlist_videos
		WHERE playlist_id = $1 AND video_id = $2
		RETURNING position
	`, playlistID, videoID).Scan(&removedPos)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "video not in playlist")
		return
	}
	if err != nil {
		log.Printf("playlist: remove video delete: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if _, err := tx.Exec(ctx, `
		UPDATE playlist_videos
		SET position = position - 1
		WHERE playlist_id = $1 AND position > $2
	`, playlistID, removedPos); err != nil {
		log.Printf("playlist: remove video reindex: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("playlist: remove video commit: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(ctx, hash, "video.removed", map[string]any{"videoId": videoID})

	w.WriteHeader(http.StatusNoContent)
}

// handleReorderVideos rewrites the full order. The body lists every video id
// in its new position; partial lists are rejected.
func (s *Server) handleReorderVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	playlistID := chi.URLParam(r, "id")

	var body struct {
		VideoIDs []string `json:"videoIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Printf("playlist: reorder begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer tx.Rollback(ctx)

	var ownerID, hash string
	err = tx.QueryRow(ctx, `
		SELECT user_id, hash FROM playlists WHERE id = $1
	`, playlistID).Scan(&ownerID, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	if err != nil {
		log.Printf("playlist: reorder fetch playlist: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if ownerID != userID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var count int
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM playlist_videos WHERE playlist_id = $1
	`, playlistID).Scan(&count); err != nil {
		log.Printf("playlist: reorder count: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if count != len(body.VideoIDs) {
		writeError(w, http.StatusBadRequest, "videoIds must list every video in the playlist")
		return
	}

	for pos, videoID := range body.VideoIDs {
		tag, err := tx.Exec(ctx, `
			UPDATE playlist_videos
			SET position = $3
			WHERE playlist_id = $1 AND video_id = $2
		`, playlistID, videoID, pos)
		if err != nil {
			log.Printf("playlist: reorder update: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		if tag.RowsAffected() == 0 {
			writeError(w, http.StatusBadRequest, "unknown video id in videoIds")
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("playlist: reorder commit: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(ctx, hash, "videos.reordered", map[string]any{"videoIds": body.VideoIDs})

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
