// Package codes generates the bearer codes used by live sessions and
// broadcast channels. Codes are capabilities: whoever holds one gets the
// matching privilege level, so all entropy comes from crypto/rand.
package codes

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

type Kind int

const (
	// KindHash is the permanent 11-character channel/playlist hash
	// (URL-safe, YouTube style). Globally unique, assigned once.
	KindHash Kind = iota
	// KindShare is the 6-character guest code of a live session.
	KindShare
	// KindHost is the 12-character host code of a live session.
	KindHost
	// KindBroadcast is the 4-digit viewer code of a broadcasting channel.
	KindBroadcast
)

const (
	hashAlphabet  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-_"
	upperAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	hashLength  = 11
	shareLength = 6
	hostLength  = 12

	// Retry budgets before giving up with ErrExhausted. The 4-digit
	// namespace is tiny, so it gets a larger budget.
	maxAttempts          = 25
	maxBroadcastAttempts = 50
)

// ErrExhausted is returned when the retry budget runs out without finding a
// free code. Callers surface it as a retryable conflict.
var ErrExhausted = errors.New("codes: could not generate a unique code")

// ExistsFunc reports whether a candidate code is already taken within the
// kind's uniqueness scope (all rows for hashes, currently live/broadcasting
// rows for the ephemeral kinds).
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// Generate draws fresh random codes of the given kind until one passes the
// exists check or the attempt budget is exhausted.
func Generate(ctx context.Context, kind Kind, exists ExistsFunc) (string, error) {
	attempts := maxAttempts
	if kind == KindBroadcast {
		attempts = maxBroadcastAttempts
	}

	for i := 0; i < attempts; i++ {
		code, err := draw(kind)
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrExhausted
}

func draw(kind Kind) (string, error) {
	switch kind {
	case KindHash:
		return randomString(hashAlphabet, hashLength)
	case KindShare:
		return randomString(upperAlphabet, shareLength)
	case KindHost:
		return randomString(upperAlphabet, hostLength)
	case KindBroadcast:
		return randomDigits()
	default:
		return "", fmt.Errorf("codes: unknown kind %d", kind)
	}
}

// randomString draws each character with rand.Int so every alphabet entry is
// equally likely; a plain byte mod len(alphabet) would skew towards the low
// end for non-power-of-two alphabets.
func randomString(alphabet string, length int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}

func randomDigits() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}
