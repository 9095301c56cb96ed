package playlist

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/holoduke/youtube-party-playlist-sub001/internal/codes"
)

// handleListPlaylists returns public playlists plus the caller's own.
// Supports ?q= name search.
func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	q := strings.TrimSpace(r.URL.Query().Get("q"))

	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, name, description, is_public, hash, created_at
		FROM playlists
		WHERE (is_public = TRUE OR ($1 <> '' AND user_id = $1))
		  AND ($2 = '' OR name ILIKE '%' || $2 || '%')
		ORDER BY created_at DESC
		LIMIT 200
	`, userID, q)
	if err != nil {
		log.Printf("playlist: list playlists: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer rows.Close()

	playlists := []Playlist{}
	for rows.Next() {
		var pl Playlist
		if err := rows.Scan(
			&pl.ID,
			&pl.UserID,
			&pl.Name,
			&pl.Description,
			&pl.IsPublic,
			&pl.Hash,
			&pl.CreatedAt,
		); err != nil {
			log.Printf("playlist: list playlists scan: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		playlists = append(playlists, pl)
	}
	if err := rows.Err(); err != nil {
		log.Printf("playlist: list playlists rows: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, playlists)
}

// handleCreatePlaylist creates a playlist owned by the current user. The
// permanent hash is minted here and never changes afterwards.
func (s *Server) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		IsPublic    *bool  `json:"isPublic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	body.Name = strings.TrimSpace(body.Name)
	body.Description = strings.TrimSpace(body.Description)

	if body.Name == "" || len(body.Name) > 200 {
		writeError(w, http.StatusBadRequest, "name must be between 1 and 200 characters")
		return
	}
	if len(body.Description) > 1000 {
		writeError(w, http.StatusBadRequest, "description is too long")
		return
	}

	isPublic := true
	if body.IsPublic != nil {
		isPublic = *body.IsPublic
	}

	hash, err := codes.Generate(ctx, codes.KindHash, s.hashExists)
	if err != nil {
		if errors.Is(err, codes.ErrExhausted) {
			writeError(w, http.StatusConflict, "could not allocate a unique hash, retry")
			return
		}
		log.Printf("playlist: create playlist hash: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	var pl Playlist
	err = s.db.QueryRow(ctx, `
		INSERT INTO playlists (user_id, name, description, is_public, hash)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, user_id, name, description, is_public, hash, created_at
	`, userID, body.Name, body.Description, isPublic, hash).Scan(
		&pl.ID,
		&pl.UserID,
		&pl.Name,
		&pl.Description,
		&pl.IsPublic,
		&pl.Hash,
		&pl.CreatedAt,
	)
	if err != nil {
		log.Printf("playlist: create playlist: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	pl.Videos = []Video{}

	writeJSON(w, http.StatusCreated, pl)
}

func (s *Server) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	playlistID := chi.URLParam(r, "id")
	if playlistID == "" {
		writeError(w, http.StatusBadRequest, "missing playlist id")
		return
	}

	var pl Playlist
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, name, description, is_public, hash, created_at
		FROM playlists
		WHERE id = $1
	`, playlistID).Scan(
		&pl.ID,
		&pl.UserID,
		&pl.Name,
		&pl.Description,
		&pl.IsPublic,
		&pl.Hash,
		&pl.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	if err != nil {
		log.Printf("playlist: get playlist: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if !pl.IsPublic && userID != pl.UserID {
		writeError(w, http.StatusForbidden, "playlist is private")
		return
	}

	pl.Videos, err = s.loadVideos(ctx, pl.ID)
	if err != nil {
		log.Printf("playlist: get playlist videos: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, pl)
}

// handleGetPlaylistByHash resolves the permanent hash. Same visibility rules
// as lookup by id.
func (s *Server) handleGetPlaylistByHash(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	hash := chi.URLParam(r, "hash")

	var pl Playlist
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, name, description, is_public, hash, created_at
		FROM playlists
		WHERE hash = $1
	`, hash).Scan(
		&pl.ID,
		&pl.UserID,
		&pl.Name,
		&pl.Description,
		&pl.IsPublic,
		&pl.Hash,
		&pl.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	if err != nil {
		log.Printf("playlist: get playlist by hash: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if !pl.IsPublic && userID != pl.UserID {
		writeError(w, http.StatusForbidden, "playlist is private")
		return
	}

	pl.Videos, err = s.loadVideos(ctx, pl.ID)
	if err != nil {
		log.Printf("playlist: get playlist by hash videos: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, pl)
}

// handleUpdatePlaylist renames a playlist or changes its description or
// visibility. Absent fields keep their current value; the hash never changes.
func (s *Server) handleUpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	playlistID := chi.URLParam(r, "id")
	if playlistID == "" {
		writeError(w, http.StatusBadRequest, "missing playlist id")
		return
	}

	var body struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		IsPublic    *bool   `json:"isPublic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if body.Name != nil {
		*body.Name = strings.TrimSpace(*body.Name)
		if *body.Name == "" || len(*body.Name) > 200 {
			writeError(w, http.StatusBadRequest, "name must be between 1 and 200 characters")
			return
		}
	}
	if body.Description != nil {
		*body.Description = strings.TrimSpace(*body.Description)
		if len(*body.Description) > 1000 {
			writeError(w, http.StatusBadRequest, "description is too long")
			return
		}
	}

	var ownerID string
	err := s.db.QueryRow(ctx, "SELECT user_id FROM playlists WHERE id = $1", playlistID).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	if err != nil {
		log.Printf("playlist: update playlist fetch: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if ownerID != userID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var pl Playlist
	err = s.db.QueryRow(ctx, `
		UPDATE playlists
		SET name        = COALESCE($2, name),
		    description = COALESCE($3, description),
		    is_public   = COALESCE($4, is_public)
		WHERE id = $1
		RETURNING id, user_id, name, description, is_public, hash, created_at
	`, playlistID, body.Name, body.Description, body.IsPublic).Scan(
		&pl.ID,
		&pl.UserID,
		&pl.Name,
		&pl.Description,
		&pl.IsPublic,
		&pl.Hash,
		&pl.CreatedAt,
	)
	if err != nil {
		log.Printf("playlist: update playlist: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	pl.Videos, err = s.loadVideos(ctx, pl.ID)
	if err != nil {
		log.Printf("playlist: update playlist videos: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(ctx, pl.Hash, "playlist.updated", pl)

	writeJSON(w, http.StatusOK, pl)
}

// handleDeletePlaylist deletes a playlist. Only the owner can delete.
func (s *Server) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	playlistID := chi.URLParam(r, "id")
	if playlistID == "" {
		writeError(w, http.StatusBadRequest, "missing playlist id")
		return
	}

	var ownerID string
	err := s.db.QueryRow(ctx, "SELECT user_id FROM playlists WHERE id = $1", playlistID).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	if err != nil {
		log.Printf("playlist: delete playlist fetch: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if ownerID != userID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	if _, err := s.db.Exec(ctx, "DELETE FROM playlists WHERE id = $1", playlistID); err != nil {
		log.Printf("playlist: delete playlist exec: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
