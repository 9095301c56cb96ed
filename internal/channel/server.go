package channel

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

// Router holds the channel routes, mounted under /channels. Watch routes are
// open (the hash is the capability); the {userId} routes expect the auth
// middleware and check that the caller matches.
func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/live", s.handleLiveChannels)
	r.Get("/code/{code}", s.handleCodeLookup)
	r.Get("/watch/{hash}", s.handleWatch)
	r.Post("/watch/{hash}/ping", s.handleViewerPing)
	r.Post("/watch/{hash}/leave", s.handleViewerLeave)

	r.Get("/{userId}", s.handleGetOrCreate)
	r.Post("/{userId}/start-broadcast", s.handleStartBroadcast)
	r.Post("/{userId}/stop-broadcast", s.handleStopBroadcast)
	r.Post("/{userId}/sync", s.handleSyncState)
	r.Get("/{userId}/viewers", s.handleViewerCount)

	return r
}
