package user

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func (s *Server) issueTokens(u User) (AuthTokens, error) {
	now := time.Now()

	accessClaims := &TokenClaims{
		UserID:    u.ID,
		Email:     u.Email,
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	accessStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString(s.jwtSecret)
	if err != nil {
		return AuthTokens{}, err
	}

	refreshClaims := &TokenClaims{
		UserID:    u.ID,
		Email:     u.Email,
		TokenType: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
		},
	}
	refreshStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString(s.jwtSecret)
	if err != nil {
		return AuthTokens{}, err
	}

	return AuthTokens{
		AccessToken:  accessStr,
		RefreshToken: refreshStr,
	}, nil
}
