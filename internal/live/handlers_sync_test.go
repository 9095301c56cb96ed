package live

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/holoduke/youtube-party-playlist-sub001/internal/pgtest"
)

func TestHandleSyncState_LastWriteWins(t *testing.T) {
	mockDB := &pgtest.MockDB{}
	srv := NewServer(mockDB, nil)
	r := newTestRouter(srv)

	var storedStates [][]byte
	mockDB.QueryRowFunc = func(ctx context.Context, sql string, args ...any) pgx.Row {
		if !strings.Contains(sql, "SET state = $2") {
			t.Errorf("unexpected query: %s", sql)
		}
		storedStates = append(storedStates, args[1].([]byte))
		return &pgtest.MockRow{ScanFunc: func(dest ...any) error {
			*dest[0].(*string) = "SHARE1"
			return nil
		}}
	}

	sync := func(state map[string]any) *httptest.ResponseRecorder {
		body, _ := json.Marshal(state)
		req := httptest.NewRequest("POST", "/live/HOSTHOSTHOST/sync", bytes.NewReader(body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	// Two syncs: the blob is overwritten wholesale, no merge with s1.
	s1 := map[string]any{"crossfadeValue": 10.0, "isPlaying": true}
	s2 := map[string]any{"crossfadeValue": 90.0}

	if w := sync(s1); w.Code != http.StatusOK {
		t.Fatalf("first sync: %d %s", w.Code, w.Body.String())
	}
	w := sync(s2)
	if w.Code != http.StatusOK {
		t.Fatalf("second sync: %d %s", w.Code, w.Body.String())
	}

	if len(storedStates) != 2 {
		t.Fatalf("expected 2 state writes, got %d", len(storedStates))
	}
	var final map[string]any
	if err := json.Unmarshal(storedStates[1], &final); err != nil {
		t.Fatalf("decode stored state: %v", err)
	}
	if _, merged := final["isPlaying"]; merged {
		t.Error("second sync must replace the blob, not merge with the first")
	}
	if final["crossfadeValue"] != 90.0 {
		t.Errorf("crossfadeValue = %v, want 90", final["crossfadeValue"])
	}
}

func TestHandleSyncState_NotFound(t *testing.T) {
	mockDB := &pgtest.MockDB{}
	mockDB.QueryRowFunc = func(ctx context.Context, sql string, args ...any) pgx.Row {
		return &pgtest.MockRow{ScanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
	}
	srv := NewServer(mockDB, nil)
	r := newTestRouter(srv)

	req := httptest.NewRequest("POST", "/live/STALE0000000/sync", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandleQueueSong(t *testing.T) {
	mockDB := &pgtest.MockDB{}
	srv := NewServer(mockDB, nil)
	r := newTestRouter(srv)

	mockDB.QueryRowFunc = func(ctx context.Context, sql string, args ...any) pgx.Row {
		switch {
		case strings.Contains(sql, "FROM videos"):
			return &pgtest.MockRow{ScanFunc: func(dest ...any) error {
				*dest[0].(*string) = "yt1"
				*dest[1].(*string) = "Track One"
				*dest[2].(*string) = "thumb1"
				return nil
			}}
		case strings.Contains(sql, "SET queue = COALESCE"):
			// echo back a queue holding the appended item
			item := args[1].([]byte)
			return &pgtest.MockRow{ScanFunc: func(dest ...any) error {
				*dest[0].(*[]byte) = []byte("[" + string(item) + "]")
				return nil
			}}
		}
		t.Errorf("unexpected query: %s", sql)
		return &pgtest.MockRow{}
	}

	body, _ := json.Marshal(map[string]any{"videoId": "vid-1", "requestedBy": "dave"})
	req := httptest.NewRequest("POST", "/live/share1/queue", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success bool        `json:"success"`
		Queue   []QueueItem `json:"queue"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Queue) != 1 {
		t.Fatalf("queue length = %d, want 1", len(resp.Queue))
	}
	got := resp.Queue[0]
	if got.VideoID != "vid-1" || got.Title != "Track One" || got.RequestedBy != "dave" {
		t.Errorf("queue item = %+v", got)
	}
}

func TestHandleQueueSong_Errors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		mockSetup func(*pgtest.MockDB)
		wantCode  int
	}{
		{
			name:     "Invalid Body",
			body:     "{",
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "Missing VideoId",
			body:     `{}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name: "Video Not Found",
			body: `{"videoId":"nope"}`,
			mockSetup: func(m *pgtest.MockDB) {
				m.QueryRowFunc = func(ctx context.Context, sql string, args ...any) pgx.Row {
					return &pgtest.MockRow{ScanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
				}
			},
			wantCode: http.StatusNotFound,
		},
		{
			name: "Session Not Live",
			body: `{"videoId":"vid-1"}`,
			mockSetup: func(m *pgtest.MockDB) {
				m.QueryRowFunc = func(ctx context.Context, sql string, args ...any) pgx.Row {
					if strings.Contains(sql, "FROM videos") {
						return &pgtest.MockRow{ScanFunc: func(dest ...any) error {
							*dest[0].(*string) = "yt1"
							*dest[1].(*string) = "Track One"
							*dest[2].(*string) = "thumb1"
							return nil
						}}
					}
					return &pgtest.MockRow{ScanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
				}
			},
			wantCode: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockDB := &pgtest.MockDB{}
			if tt.mockSetup != nil {
				tt.mockSetup(mockDB)
			}
			srv := NewServer(mockDB, nil)
			r := newTestRouter(srv)

			req := httptest.NewRequest("POST", "/live/SHARE1/queue", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.wantCode {
				t.Errorf("expected %d, got %d: %s", tt.wantCode, w.Code, w.Body.String())
			}
		})
	}
}

func TestHandleLikeVideo(t *testing.T) {
	mockDB := &pgtest.MockDB{}
	srv := NewServer(mockDB, nil)
	r := newTestRouter(srv)

	mockDB.QueryRowFunc = func(ctx context.Context, sql string, args ...any) pgx.Row {
		if !strings.Contains(sql, "jsonb_set") {
			t.Errorf("like must increment on the stored aggregate, sql: %s", sql)
		}
		return &pgtest.MockRow{ScanFunc: func(dest ...any) error {
			*dest[0].(*int) = 2
			*dest[1].(*[]byte) = []byte(`{"vid-1":2}`)
			return nil
		}}
	}

	req := httptest.NewRequest("POST", "/live/SHARE1/like", strings.NewReader(`{"videoId":"vid-1"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Count int            `json:"count"`
		Likes map[string]int `json:"likes"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 2 || resp.Likes["vid-1"] != 2 {
		t.Errorf("count=%d likes=%v, want 2", resp.Count, resp.Likes)
	}
}

func TestHandleLikeVideo_NotFound(t *testing.T) {
	mockDB := &pgtest.MockDB{}
	mockDB.QueryRowFunc = func(ctx context.Context, sql string, args ...any) pgx.Row {
		return &pgtest.MockRow{ScanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
	}
	srv := NewServer(mockDB, nil)
	r := newTestRouter(srv)

	req := httptest.NewRequest("POST", "/live/GONE99/like", strings.NewReader(`{"videoId":"vid-1"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandleApprove(t *testing.T) {
	queueJSON := `[
		{"videoId":"vid-1","title":"Track One","requestedAt":"2026-01-01T00:00:00Z"},
		{"videoId":"vid-2","title":"Track Two","requestedAt":"2026-01-01T00:01:00Z"}
	]`

	mockDB := &pgtest.MockDB{}
	var insertedVideo string
	mockDB.BeginTxFunc = func(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
		return &pgtest.MockTx{
			QueryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
				return &pgtest.MockRow{ScanFunc: func(dest ...any) error {
					*dest[0].(*string) = "pl-1"
					*dest[1].(*string) = "SHARE1"
					*dest[2].(*[]byte) = []byte(queueJSON)
					return nil
				}}
			},
			ExecFunc: func(ctx context.Context, sql string, args ...any) (tag pgconn.CommandTag, err error) {
				if strings.Contains(sql, "INSERT INTO playlist_videos") {
					insertedVideo = args[1].(string)
				}
				return tag, nil
			},
		}, nil
	}
	srv := NewServer(mockDB, nil)
	r := newTestRouter(srv)

	req := httptest.NewRequest("POST", "/live/HOSTHOSTHOST/approve", strings.NewReader(`{"queueIndex":0}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Approved QueueItem   `json:"approved"`
		Queue    []QueueItem `json:"queue"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Approved.VideoID != "vid-1" {
		t.Errorf("approved %q, want vid-1", resp.Approved.VideoID)
	}
	if len(resp.Queue) != 1 || resp.Queue[0].VideoID != "vid-2" {
		t.Errorf("remaining queue = %+v, want [vid-2]", resp.Queue)
	}
	if insertedVideo != "vid-1" {
		t.Errorf("approve handed off %q to the playlist, want vid-1", insertedVideo)
	}
}

func TestHandleApprove_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		queue    string
		noRows   bool
		wantCode int
	}{
		{
			name:     "Empty Queue Is Out Of Range",
			body:     `{"queueIndex":0}`,
			queue:    `[]`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "Index Past End",
			body:     `{"queueIndex":5}`,
			queue:    `[{"videoId":"vid-1"}]`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "Missing Index",
			body:     `{}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "Negative Index",
			body:     `{"queueIndex":-1}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "Stale Host Code",
			body:     `{"queueIndex":0}`,
			noRows:   true,
			wantCode: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockDB := &pgtest.MockDB{}
			mockDB.BeginTxFunc = func(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
				return &pgtest.MockTx{
					QueryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
						return &pgtest.MockRow{ScanFunc: func(dest ...any) error {
							if tt.noRows {
								return pgx.ErrNoRows
							}
							*dest[0].(*string) = "pl-1"
							*dest[1].(*string) = "SHARE1"
							*dest[2].(*[]byte) = []byte(tt.queue)
							return nil
						}}
					},
				}, nil
			}
			srv := NewServer(mockDB, nil)
			r := newTestRouter(srv)

			req := httptest.NewRequest("POST", "/live/HOSTHOSTHOST/approve", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.wantCode {
				t.Errorf("expected %d, got %d: %s", tt.wantCode, w.Code, w.Body.String())
			}
		})
	}
}
