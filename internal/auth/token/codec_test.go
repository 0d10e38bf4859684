package token

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/identity-backend/internal/pkg/apperr"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	cd := NewCodec("test-secret")
	userID := uuid.New()

	raw, err := cd.Issue(userID, "alice", "alice@example.com", time.Hour)
	require.NoError(t, err)

	claims, err := cd.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "alice@example.com", claims.Email)

	got, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestVerifyExpired(t *testing.T) {
	cd := NewCodec("test-secret")

	raw, err := cd.Issue(uuid.New(), "alice", "alice@example.com", -time.Minute)
	require.NoError(t, err)

	_, err = cd.Verify(raw)
	assert.True(t, errors.Is(err, apperr.ErrTokenExpired))
	assert.False(t, errors.Is(err, apperr.ErrTokenMalformed))
}

func TestVerifyMalformed(t *testing.T) {
	cd := NewCodec("test-secret")

	_, err := cd.Verify("not-a-token")
	assert.True(t, errors.Is(err, apperr.ErrTokenMalformed))

	raw, err := cd.Issue(uuid.New(), "alice", "alice@example.com", time.Hour)
	require.NoError(t, err)
	_, err = cd.Verify(raw + "tampered")
	assert.True(t, errors.Is(err, apperr.ErrTokenMalformed))
}

func TestVerifyWrongSecret(t *testing.T) {
	raw, err := NewCodec("secret-a").Issue(uuid.New(), "alice", "a@example.com", time.Hour)
	require.NoError(t, err)

	_, err = NewCodec("secret-b").Verify(raw)
	assert.True(t, errors.Is(err, apperr.ErrTokenMalformed))
}
