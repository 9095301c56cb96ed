package channel

import (
	"encoding/json"
	"time"
)

// Channel is a per-user broadcast endpoint. The hash is permanent; the
// 4-digit broadcast code exists only while broadcasting and is re-rolled on
// every start.
type Channel struct {
	ID                string          `json:"id"`
	UserID            string          `json:"userId"`
	Hash              string          `json:"hash"`
	BroadcastCode     string          `json:"broadcastCode,omitempty"`
	IsBroadcasting    bool            `json:"isBroadcasting"`
	CurrentPlaylistID *string         `json:"currentPlaylistId,omitempty"`
	State             json.RawMessage `json:"state,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// watchView strips the broadcast code. Viewer responses never carry it.
func (c *Channel) watchView() Channel {
	v := *c
	v.BroadcastCode = ""
	return v
}
