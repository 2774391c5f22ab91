package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignParse_RoundTrip(t *testing.T) {
	t.Parallel()

	secret := []byte("test-jwt-secret")
	raw, err := Sign(42, "alice", "admin", secret)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	claims, err := Parse(raw, secret)
	require.NoError(t, err)

	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "admin", claims.Role)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(TTL), claims.ExpiresAt.Time, time.Minute)
}

func TestParse_WrongSecret(t *testing.T) {
	t.Parallel()

	raw, err := Sign(1, "alice", "user", []byte("right-secret"))
	require.NoError(t, err)

	_, err = Parse(raw, []byte("wrong-secret"))
	require.Error(t, err)
}

func TestParse_Garbage(t *testing.T) {
	t.Parallel()

	_, err := Parse("not-a-token", []byte("secret"))
	require.Error(t, err)
}
