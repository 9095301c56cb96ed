package playlist

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
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

func (s *Server) hashExists(ctx context.Context, hash string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM playlists WHERE hash = $1)
	`, hash).Scan(&exists)
	return exists, err
}

// loadVideos returns the playlist's videos in position order.
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

// publishEvent notifies listeners on the playlist topic (best-effort).
func (s *Server) publishEvent(ctx context.Context, playlistHash, eventType string, payload any) {
	if s.rdb == nil {
		return
	}
	data, err := json.Marshal(map[string]any{
		"type":    eventType,
		"payload": payload,
	})
	if err != nil {
		log.Printf("playlist: marshal event: %v", err)
		return
	}
	if err := s.rdb.Publish(ctx, "playlist."+playlistHash, string(data)).Err(); err != nil {
		log.Printf("playlist: publish event: %v", err)
	}
}
