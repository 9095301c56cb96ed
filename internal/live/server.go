package live

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

// DB is the slice of pgxpool.Pool the handlers need. The pgtest fakes
// implement it for handler tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type Server struct {
	db  DB
	rdb *redis.Client
}

func NewServer(db DB, rdb *redis.Client) *Server {
	return &Server{
		db:  db,
		rdb: rdb,
	}
}

// Router holds the live-session routes, mounted under /live. Host routes are
// keyed by host code, guest routes by share code; neither needs a logged-in
// user. Going live is the exception: only the playlist owner may start a
// session, so the caller must run GoLiveHandler behind the auth middleware.
func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/", s.handleLiveIndex)
	r.Get("/join/{shareCode}", s.handleJoin)
	r.Get("/host/{hostCode}", s.handleJoinAsHost)

	// Mutations share one {code} segment; the handler decides whether the
	// code must resolve as host or guest.
	r.Post("/{code}/stop", s.handleStopLive)
	r.Post("/{code}/sync", s.handleSyncState)
	r.Post("/{code}/approve", s.handleApprove)
	r.Post("/{code}/queue", s.handleQueueSong)
	r.Post("/{code}/like", s.handleLikeVideo)

	return r
}

// GoLiveHandler is mounted separately under the authenticated playlist
// routes (POST /playlists/{id}/go-live).
func (s *Server) GoLiveHandler() http.HandlerFunc {
	return s.handleGoLive
}
