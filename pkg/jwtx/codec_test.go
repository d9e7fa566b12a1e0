package jwtx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testCodec() *Codec {
	return NewCodec([]byte("test-secret"), "scheduler-test", time.Minute, time.Hour)
}

func TestIssueAndVerifyAccessToken(t *testing.T) {
	c := testCodec()
	now := time.Now()

	tok, err := c.IssueAccessToken("user-1", "dev@example.com", now)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	claims, err := c.Verify(tok, KindAccess)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "dev@example.com", claims.Email)
	require.Equal(t, KindAccess, claims.Kind)
}

func TestIssueRefreshTokensAreUnique(t *testing.T) {
	c := testCodec()
	now := time.Now()

	a, err := c.IssueRefreshToken("user-1", now)
	require.NoError(t, err)
	b, err := c.IssueRefreshToken("user-1", now)
	require.NoError(t, err)

	// Same subject, same instant - the jti must still make them distinct.
	require.NotEqual(t, a, b)
}

func TestVerifyRejectsKindMismatch(t *testing.T) {
	c := testCodec()
	now := time.Now()

	refresh, err := c.IssueRefreshToken("user-1", now)
	require.NoError(t, err)

	_, err = c.Verify(refresh, KindAccess)
	require.ErrorIs(t, err, ErrKindMismatch)

	access, err := c.IssueAccessToken("user-1", "", now)
	require.NoError(t, err)

	_, err = c.Verify(access, KindRefresh)
	require.ErrorIs(t, err, ErrKindMismatch)
}

func TestVerifyExpiredIsDistinctFromForged(t *testing.T) {
	c := testCodec()

	t.Run("expired token", func(t *testing.T) {
		tok, err := c.IssueAccessToken("user-1", "", time.Now().Add(-2*time.Hour))
		require.NoError(t, err)

		_, err = c.Verify(tok, KindAccess)
		require.ErrorIs(t, err, ErrExpired)
	})

	t.Run("forged signature", func(t *testing.T) {
		other := NewCodec([]byte("different-secret"), "scheduler-test", time.Minute, time.Hour)
		tok, err := other.IssueAccessToken("user-1", "", time.Now())
		require.NoError(t, err)

		_, err = c.Verify(tok, KindAccess)
		require.ErrorIs(t, err, ErrInvalidSig)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := c.Verify("not.a.jwt", KindAccess)
		require.ErrorIs(t, err, ErrMalformed)
	})
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	other := NewCodec([]byte("test-secret"), "someone-else", time.Minute, time.Hour)
	tok, err := other.IssueAccessToken("user-1", "", time.Now())
	require.NoError(t, err)

	_, err = testCodec().Verify(tok, KindAccess)
	require.ErrorIs(t, err, ErrIssuer)
}

func TestNewCodecAppliesDefaultTTLs(t *testing.T) {
	c := NewCodec([]byte("s"), "iss", 0, 0)
	require.Equal(t, DefaultAccessTokenTTL, c.AccessTTL())
	require.Equal(t, DefaultRefreshTokenTTL, c.RefreshTTL())
}
