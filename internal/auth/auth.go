package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Errors surfaced by identity verification.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

// Identity is the verified caller of a request.
type Identity struct {
	UserID  int64
	IsAdmin bool
}

// Verifier turns an opaque bearer token into an identity. Token mechanics
// (issuance, signing, expiry) live behind this boundary, not in the core.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// StaticVerifier resolves tokens from an in-memory table. It backs local
// development and tests; production deployments plug in a real verifier.
type StaticVerifier struct {
	mu     sync.RWMutex
	tokens map[string]Identity
}

func NewStaticVerifier() *StaticVerifier {
	return &StaticVerifier{tokens: make(map[string]Identity)}
}

// Register associates a token with an identity.
func (v *StaticVerifier) Register(token string, id Identity) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tokens[token] = id
}

func (v *StaticVerifier) Verify(_ context.Context, token string) (Identity, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	id, ok := v.tokens[token]
	if !ok {
		return Identity{}, ErrUnauthenticated
	}
	return id, nil
}

// ParseBearer extracts the token from an Authorization header value.
func ParseBearer(header string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) || len(header) == len(prefix) {
		return "", ErrUnauthenticated
	}
	return header[len(prefix):], nil
}
