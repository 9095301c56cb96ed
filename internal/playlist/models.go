package playlist

import (
	"time"
)

// Playlist holds metadata and the permanent hash used for stable links. The
// live-session columns on the same table belong to the live package.
type Playlist struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsPublic    bool      `json:"isPublic"`
	Hash        string    `json:"hash"`
	CreatedAt   time.Time `json:"createdAt"`

	Videos []Video `json:"videos,omitempty"`
}

// Video is a YouTube reference shared across playlists; membership and order
// live in playlist_videos.
type Video struct {
	ID           string `json:"id"`
	YoutubeID    string `json:"youtubeId"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	DurationS    int    `json:"durationS"`
	Position     int    `json:"position"`
}
