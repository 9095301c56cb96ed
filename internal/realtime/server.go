package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// topic prefixes bridged from Redis. Anything else is rejected at subscribe
// time.
var topicPrefixes = []string{"live.", "channel.", "playlist."}

type Server struct {
	hub *Hub
	rdb *redis.Client
	ctx context.Context
}

func NewServer(hub *Hub, rdb *redis.Client, ctx context.Context) *Server {
	return &Server{
		hub: hub,
		rdb: rdb,
		ctx: ctx,
	}
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWS)

	return r
}

// RunRedisSubscriber bridges published mutation events into the hub. The
// pattern subscription covers every topic namespace; the hub fans each
// message out to that topic's subscribers only.
func (s *Server) RunRedisSubscriber() {
	patterns := make([]string, len(topicPrefixes))
	for i, p := range topicPrefixes {
		patterns[i] = p + "*"
	}
	sub := s.rdb.PSubscribe(s.ctx, patterns...)
	defer sub.Close()

	ch := sub.Channel()
	for msg := range ch {
		s.hub.Publish(msg.Channel, []byte(msg.Payload))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"service": "liveparty",
	})
}

func validTopic(topic string) bool {
	for _, p := range topicPrefixes {
		if strings.HasPrefix(topic, p) && len(topic) > len(p) {
			return true
		}
	}
	return false
}

// handleWS subscribes the connection to exactly one topic.
// GET /ws?topic=live.{shareCode}
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if !validTopic(topic) {
		http.Error(w, "invalid topic", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("realtime: ws upgrade: %v", err)
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	s.hub.register <- subscription{client: client, topic: topic}

	welcome := map[string]any{
		"type":  "welcome",
		"topic": topic,
		"now":   time.Now().UTC().Format(time.RFC3339Nano),
	}
	if b, err := json.Marshal(welcome); err == nil {
		client.send <- b
	}

	go client.writePump()
	go client.readPump()
}
