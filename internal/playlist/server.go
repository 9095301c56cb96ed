package playlist

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

// Router holds the playlist routes, mounted under /playlists. Reads are open;
// mutations expect the auth middleware to have set X-User-Id.
func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/", s.handleListPlaylists)
	r.Post("/", s.handleCreatePlaylist)
	r.Get("/{id}", s.handleGetPlaylist)
	r.Put("/{id}", s.handleUpdatePlaylist)
	r.Delete("/{id}", s.handleDeletePlaylist)
	r.Get("/hash/{hash}", s.handleGetPlaylistByHash)

	r.Post("/{id}/videos", s.handleAddVideo)
	r.Delete("/{id}/videos/{videoId}", s.handleRemoveVideo)
	r.Put("/{id}/videos/order", s.handleReorderVideos)

	return r
}
