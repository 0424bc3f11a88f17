package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBearer(t *testing.T) {
	token, err := ParseBearer("Bearer abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)

	_, err = ParseBearer("")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = ParseBearer("Bearer ")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = ParseBearer("Basic dXNlcjpwYXNz")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = ParseBearer("bearer abc123")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestStaticVerifier(t *testing.T) {
	v := NewStaticVerifier()
	v.Register("user-token", Identity{UserID: 7})
	v.Register("admin-token", Identity{UserID: 1, IsAdmin: true})

	ctx := context.Background()

	id, err := v.Verify(ctx, "user-token")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id.UserID)
	assert.False(t, id.IsAdmin)

	id, err = v.Verify(ctx, "admin-token")
	require.NoError(t, err)
	assert.True(t, id.IsAdmin)

	_, err = v.Verify(ctx, "unknown")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
