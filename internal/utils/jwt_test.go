package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/videotube-api/internal/model"
)

var testUser = model.User{
	ID:       "65f0c0ffee0000000000beef",
	Username: "alice",
	Email:    "alice@example.com",
	FullName: "Alice Liddell",
}

func TestAccessToken_RoundTrip(t *testing.T) {
	tok, err := NewAccessToken("access", testUser, 15*time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), tok.Exp, 5*time.Second)

	claims, err := ParseAccessToken("access", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, testUser.ID, claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "Alice Liddell", claims.FullName)
}

func TestRefreshToken_CarriesOnlyIdentity(t *testing.T) {
	tok, err := NewRefreshToken("refresh", testUser.ID, time.Hour)
	require.NoError(t, err)

	claims, err := ParseRefreshToken("refresh", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, testUser.ID, claims.Subject)
	assert.NotEmpty(t, claims.ID)

	// profile fields must not leak into the refresh token
	parsed, _, err := jwt.NewParser().ParseUnverified(tok.Token, jwt.MapClaims{})
	require.NoError(t, err)
	mc := parsed.Claims.(jwt.MapClaims)
	_, hasEmail := mc["email"]
	assert.False(t, hasEmail)
}

func TestRefreshToken_UniquePerIssue(t *testing.T) {
	a, err := NewRefreshToken("refresh", testUser.ID, time.Hour)
	require.NoError(t, err)
	b, err := NewRefreshToken("refresh", testUser.ID, time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, a.Token, b.Token)
	assert.NotEqual(t, HashRefreshToken(a.Token), HashRefreshToken(b.Token))
}

func TestParse_Errors(t *testing.T) {
	valid, err := NewRefreshToken("refresh", testUser.ID, time.Hour)
	require.NoError(t, err)
	expired, err := NewRefreshToken("refresh", testUser.ID, -time.Minute)
	require.NoError(t, err)
	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": testUser.ID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		raw    string
		want   error
	}{
		{"empty", "refresh", "   ", ErrMalformedToken},
		{"garbage", "refresh", "not-a-token", ErrMalformedToken},
		{"bad segments", "refresh", "a.b.c", ErrMalformedToken},
		{"wrong secret", "other", valid.Token, ErrInvalidToken},
		{"expired", "refresh", expired.Token, ErrInvalidToken},
		{"none alg", "refresh", noneAlg, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRefreshToken(tt.secret, tt.raw)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParse_AccessTokenRejectedAsRefresh(t *testing.T) {
	tok, err := NewAccessToken("access", testUser, time.Hour)
	require.NoError(t, err)

	_, err = ParseRefreshToken("refresh", tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHashRefreshToken(t *testing.T) {
	h := HashRefreshToken("abc")
	assert.Len(t, h, 64)
	assert.Equal(t, strings.ToLower(h), h)
	assert.True(t, SameTokenHash(h, HashRefreshToken("abc")))
	assert.False(t, SameTokenHash(h, HashRefreshToken("abd")))
	assert.False(t, SameTokenHash("", ""))
}
