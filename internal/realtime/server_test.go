package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

func TestServer_HandleHealth(t *testing.T) {
	s := &Server{}
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	s.handleHealth(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("Expected status OK, got %v", w.Result().Status)
	}
}

func TestServer_HandleWS_TopicValidation(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	s := NewServer(hub, nil, context.Background())

	server := httptest.NewServer(http.HandlerFunc(s.handleWS))
	defer server.Close()

	tests := []struct {
		name  string
		query string
		ok    bool
	}{
		{"Live Topic", "?topic=live.ABC123", true},
		{"Channel Topic", "?topic=channel.abcdefghijk", true},
		{"Missing Topic", "", false},
		{"Bare Prefix", "?topic=live.", false},
		{"Unknown Namespace", "?topic=admin.everything", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := "ws" + strings.TrimPrefix(server.URL, "http") + tt.query
			ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
			if tt.ok {
				if err != nil {
					t.Fatalf("Failed to dial: %v", err)
				}
				ws.Close()
				return
			}
			if err == nil {
				ws.Close()
				t.Fatal("expected handshake to fail")
			}
			if resp == nil || resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %+v", resp)
			}
		})
	}
}

func TestServer_HandleWS_Welcome(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	s := NewServer(hub, nil, context.Background())

	server := httptest.NewServer(http.HandlerFunc(s.handleWS))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?topic=live.ABC123"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer ws.Close()

	ws.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read welcome: %v", err)
	}
	var welcome struct {
		Type  string `json:"type"`
		Topic string `json:"topic"`
	}
	if err := json.Unmarshal(msg, &welcome); err != nil {
		t.Fatalf("decode welcome: %v", err)
	}
	if welcome.Type != "welcome" || welcome.Topic != "live.ABC123" {
		t.Errorf("welcome = %+v", welcome)
	}
}

func TestIntegration_RedisBridge(t *testing.T) {
	// Publish -> Redis -> RunRedisSubscriber -> Hub -> websocket client.
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	hub := NewHub()
	go hub.Run()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewServer(hub, rdb, ctx)
	go s.RunRedisSubscriber()
	time.Sleep(50 * time.Millisecond)

	server := httptest.NewServer(http.HandlerFunc(s.handleWS))
	defer server.Close()

	dial := func(topic string) *websocket.Conn {
		url := "ws" + strings.TrimPrefix(server.URL, "http") + "?topic=" + topic
		ws, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("Failed to dial %s: %v", topic, err)
		}
		// Drain the welcome frame.
		ws.SetReadDeadline(time.Now().Add(time.Second))
		if _, _, err := ws.ReadMessage(); err != nil {
			t.Fatalf("Failed to read welcome: %v", err)
		}
		return ws
	}

	wsLive := dial("live.ABC123")
	defer wsLive.Close()
	wsOther := dial("live.ZZZ999")
	defer wsOther.Close()
	time.Sleep(20 * time.Millisecond)

	payload := `{"type":"likes","payload":{"count":2}}`
	if err := rdb.Publish(ctx, "live.ABC123", payload).Err(); err != nil {
		t.Fatalf("publish: %v", err)
	}

	wsLive.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := wsLive.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read bridged message: %v", err)
	}
	if string(msg) != payload {
		t.Errorf("Expected %s, got %s", payload, msg)
	}

	wsOther.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, stray, err := wsOther.ReadMessage(); err == nil {
		t.Errorf("other topic received %q", stray)
	}
}

func TestServer_Router(t *testing.T) {
	s := NewServer(nil, nil, context.Background())
	r := s.Router()

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Result().StatusCode == http.StatusNotFound {
		t.Error("expected /health to be registered")
	}
}
