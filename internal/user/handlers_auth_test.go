package user

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/holoduke/youtube-party-playlist-sub001/internal/pgtest"
)

var testSecret = []byte("test-secret")

func newTestRouter(srv *Server) chi.Router {
	r := chi.NewRouter()
	r.Mount("/auth", srv.Router())
	return r
}

func TestHandleRegister(t *testing.T) {
	mockDB := &pgtest.MockDB{}
	mockDB.QueryRowFunc = func(ctx context.Context, sql string, args ...any) pgx.Row {
		return &pgtest.MockRow{ScanFunc: func(dest ...any) error {
			*dest[0].(*string) = "user-1"
			*dest[1].(*string) = args[0].(string)
			*dest[2].(*string) = args[1].(string)
			*dest[3].(*time.Time) = time.Now()
			return nil
		}}
	}
	srv := NewServer(mockDB, testSecret)
	r := newTestRouter(srv)

	req := httptest.NewRequest("POST", "/auth/register", strings.NewReader(
		`{"email":"Party@Example.com","password":"secret1","name":"DJ"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		User   User       `json:"user"`
		Tokens AuthTokens `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "party@example.com", resp.User.Email, "email should be normalized")
	require.NotEmpty(t, resp.Tokens.AccessToken)

	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(resp.Tokens.AccessToken, claims, func(t *jwt.Token) (interface{}, error) {
		return testSecret, nil
	})
	require.NoError(t, err)
	assert.True(t, token.Valid)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "access", claims.TokenType)
}

func TestHandleRegister_Duplicate(t *testing.T) {
	mockDB := &pgtest.MockDB{}
	mockDB.QueryRowFunc = func(ctx context.Context, sql string, args ...any) pgx.Row {
		return &pgtest.MockRow{ScanFunc: func(dest ...any) error {
			return errors.New(`ERROR: duplicate key value violates unique constraint "users_email_key"`)
		}}
	}
	srv := NewServer(mockDB, testSecret)
	r := newTestRouter(srv)

	req := httptest.NewRequest("POST", "/auth/register", strings.NewReader(
		`{"email":"party@example.com","password":"secret1"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandleLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)

	mockDB := &pgtest.MockDB{}
	mockDB.QueryRowFunc = func(ctx context.Context, sql string, args ...any) pgx.Row {
		return &pgtest.MockRow{ScanFunc: func(dest ...any) error {
			*dest[0].(*string) = "user-1"
			*dest[1].(*string) = "party@example.com"
			*dest[2].(*string) = "DJ"
			*dest[3].(*string) = string(hash)
			*dest[4].(*time.Time) = time.Now()
			return nil
		}}
	}
	srv := NewServer(mockDB, testSecret)
	r := newTestRouter(srv)

	t.Run("Correct Password", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/auth/login", strings.NewReader(
			`{"email":"party@example.com","password":"secret1"}`))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})

	t.Run("Wrong Password", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/auth/login", strings.NewReader(
			`{"email":"party@example.com","password":"nope"}`))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestHandleLogin_UnknownEmail(t *testing.T) {
	mockDB := &pgtest.MockDB{}
	mockDB.QueryRowFunc = func(ctx context.Context, sql string, args ...any) pgx.Row {
		return &pgtest.MockRow{ScanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
	}
	srv := NewServer(mockDB, testSecret)
	r := newTestRouter(srv)

	req := httptest.NewRequest("POST", "/auth/login", strings.NewReader(
		`{"email":"who@example.com","password":"secret1"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware(t *testing.T) {
	srv := NewServer(&pgtest.MockDB{}, testSecret)

	tokens, err := srv.issueTokens(User{ID: "user-1", Email: "party@example.com"})
	require.NoError(t, err)

	var seenUserID string
	handler := srv.AuthMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUserID = r.Header.Get("X-User-Id")
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("Valid Token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
		req.Header.Set("X-User-Id", "spoofed")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user-1", seenUserID, "X-User-Id must come from the token, not the caller")
	})

	t.Run("Refresh Token Rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+tokens.RefreshToken)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Missing Header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Garbage Token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer not.a.jwt")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestHandleRefresh(t *testing.T) {
	mockDB := &pgtest.MockDB{}
	mockDB.QueryRowFunc = func(ctx context.Context, sql string, args ...any) pgx.Row {
		return &pgtest.MockRow{ScanFunc: func(dest ...any) error {
			*dest[0].(*string) = "user-1"
			*dest[1].(*string) = "party@example.com"
			*dest[2].(*string) = "DJ"
			*dest[3].(*string) = "x"
			*dest[4].(*time.Time) = time.Now()
			return nil
		}}
	}
	srv := NewServer(mockDB, testSecret)
	r := newTestRouter(srv)

	tokens, err := srv.issueTokens(User{ID: "user-1", Email: "party@example.com"})
	require.NoError(t, err)

	t.Run("Valid Refresh", func(t *testing.T) {
		body := `{"refreshToken":"` + tokens.RefreshToken + `"}`
		req := httptest.NewRequest("POST", "/auth/refresh", strings.NewReader(body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})

	t.Run("Access Token Rejected", func(t *testing.T) {
		body := `{"refreshToken":"` + tokens.AccessToken + `"}`
		req := httptest.NewRequest("POST", "/auth/refresh", strings.NewReader(body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
