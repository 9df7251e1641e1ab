package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/remiges-tech/batchsched/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyCredentials(t *testing.T) {
	store := auth.NewStaticCredentialStore(map[string]string{
		"alice": "correct-horse",
	})

	t.Run("valid pair", func(t *testing.T) {
		p, err := auth.VerifyCredentials(store, "alice", "correct-horse")
		require.NoError(t, err)
		assert.Equal(t, "alice", p.Username)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := auth.VerifyCredentials(store, "alice", "wrong")
		assert.ErrorIs(t, err, auth.ErrUnauthorized)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := auth.VerifyCredentials(store, "bob", "anything")
		assert.ErrorIs(t, err, auth.ErrUnauthorized)
	})
}

func TestIssueAndVerifyToken(t *testing.T) {
	issuer, err := auth.NewIssuer("test-secret", "HS256", 30)
	require.NoError(t, err)

	token, err := issuer.Issue(auth.Principal{Username: "alice"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	p, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	issuer, err := auth.NewIssuer("test-secret", "HS256", 30)
	require.NoError(t, err)

	token, err := issuer.Issue(auth.Principal{Username: "alice"})
	require.NoError(t, err)

	_, err = issuer.Verify(token + "x")
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issuer, err := auth.NewIssuer("test-secret", "HS256", 30)
	require.NoError(t, err)

	// Hand-craft a token that expired well past the ±30s clock skew
	// allowance, rather than waiting for a live token to age out.
	now := time.Now()
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
		ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
	})
	token, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}

func TestVerifyRejectsDifferentSecret(t *testing.T) {
	issuerA, err := auth.NewIssuer("secret-a", "HS256", 30)
	require.NoError(t, err)
	issuerB, err := auth.NewIssuer("secret-b", "HS256", 30)
	require.NoError(t, err)

	token, err := issuerA.Issue(auth.Principal{Username: "alice"})
	require.NoError(t, err)

	_, err = issuerB.Verify(token)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}

func TestNewIssuerRejectsUnsupportedAlgorithm(t *testing.T) {
	_, err := auth.NewIssuer("secret", "RS256", 30)
	assert.Error(t, err)
}
