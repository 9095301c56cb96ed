package live

import (
	"encoding/json"
	"time"
)

// Session is the live view of a playlist. HostCode is only populated for
// host-authorized responses; guest views never carry it.
type Session struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Name      string          `json:"name"`
	Status    string          `json:"status"`
	ShareCode string          `json:"shareCode,omitempty"`
	HostCode  string          `json:"hostCode,omitempty"`
	State     json.RawMessage `json:"state,omitempty"`
	Queue     []QueueItem     `json:"queue"`
	Likes     map[string]int  `json:"likes"`
	Videos    []Video         `json:"videos,omitempty"`
}

// QueueItem is a guest song request awaiting host approval. Appended in
// arrival order; duplicates are allowed.
type QueueItem struct {
	VideoID      string    `json:"videoId"`
	Title        string    `json:"title,omitempty"`
	YoutubeID    string    `json:"youtubeId,omitempty"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	RequestedBy  string    `json:"requestedBy,omitempty"`
	RequestedAt  time.Time `json:"requestedAt"`
}

type Video struct {
	ID           string `json:"id"`
	YoutubeID    string `json:"youtubeId"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	DurationS    int    `json:"durationS"`
	Position     int    `json:"position"`
}

// playerState is the snapshot written at go-live time. After that the host
// overwrites the blob wholesale on every sync, so it stays opaque elsewhere.
type playerState struct {
	Player1Video   *Video  `json:"player1Video"`
	Player2Video   *Video  `json:"player2Video"`
	CrossfadeValue float64 `json:"crossfadeValue"`
	PlaylistIndex  int     `json:"playlistIndex"`
	IsPlaying      bool    `json:"isPlaying"`
}

const statusLive = "live"
