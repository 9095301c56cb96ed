package live

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/holoduke/youtube-party-playlist-sub001/internal/codes"
)

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

func writeLiveError(w http.ResponseWriter, err error) {
	var le *liveError
	if errors.As(err, &le) {
		writeError(w, le.status, le.msg)
		return
	}
	if errors.Is(err, codes.ErrExhausted) {
		writeError(w, http.StatusConflict, "could not allocate a unique code, retry")
		return
	}
	log.Printf("live: %v", err)
	writeError(w, http.StatusInternalServerError, "database error")
}

// normalizeCode uppercases human-entered share/host codes so comparison is
// case-insensitive.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// publishSession pushes an event to the session's topic. Fire-and-forget:
// viewers that miss it re-fetch via the join endpoints.
func (s *Server) publishSession(ctx context.Context, shareCode, eventType string, payload any) {
	if s.rdb == nil {
		return
	}
	data, err := json.Marshal(map[string]any{
		"type":    eventType,
		"payload": payload,
	})
	if err != nil {
		log.Printf("live: marshal event: %v", err)
		return
	}
	if err := s.rdb.Publish(ctx, "live."+shareCode, string(data)).Err(); err != nil {
		log.Printf("live: publish event: %v", err)
	}
}

func (s *Server) shareCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM playlists WHERE share_code = $1 AND status = 'live')
	`, code).Scan(&exists)
	return exists, err
}

func (s *Server) hostCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM playlists WHERE host_code = $1 AND status = 'live')
	`, code).Scan(&exists)
	return exists, err
}

// loadVideos returns the playlist's permanent video list in position order.
func (s *Server) loadVideos(ctx context.Context, playlistID string) ([]Video, error) {
	rows, err := s.db.Query(ctx, `
		SELECT v.id, v.youtube_id, v.title, v.thumbnail_url, v.duration_s, pv.position
		FROM playlist_videos pv
		JOIN videos v ON v.id = pv.video_id
		WHERE pv.playlist_id = $1
		ORDER BY pv.position ASC
	`, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	videos := []Video{}
	for rows.Next() {
		var v Video
		if err := rows.Scan(&v.ID, &v.YoutubeID, &v.Title, &v.ThumbnailURL, &v.DurationS, &v.Position); err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return videos, nil
}

func decodeQueue(raw []byte) ([]QueueItem, error) {
	queue := []QueueItem{}
	if len(raw) == 0 {
		return queue, nil
	}
	if err := json.Unmarshal(raw, &queue); err != nil {
		return nil, err
	}
	return queue, nil
}

func decodeLikes(raw []byte) (map[string]int, error) {
	likes := map[string]int{}
	if len(raw) == 0 {
		return likes, nil
	}
	if err := json.Unmarshal(raw, &likes); err != nil {
		return nil, err
	}
	return likes, nil
}
