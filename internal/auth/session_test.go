package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": "u1"}
	if !expiresAt.IsZero() {
		claims["exp"] = expiresAt.Unix()
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}

func TestSessionTokenLifecycle(t *testing.T) {
	s := NewSession()

	_, err := s.Token()
	require.ErrorIs(t, err, ErrNoCredential)
	require.False(t, s.Valid())

	token := signedToken(t, time.Now().Add(time.Hour))
	require.NoError(t, s.SetToken(token))

	got, err := s.Token()
	require.NoError(t, err)
	require.Equal(t, token, got)
	require.True(t, s.Valid())
}

func TestSessionLocalExpiry(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.SetToken(signedToken(t, time.Now().Add(-time.Minute))))

	fired := 0
	s.OnExpired(func() { fired++ })

	_, err := s.Token()
	require.ErrorIs(t, err, ErrExpired)
	require.Equal(t, 1, fired)

	// The signal fires once per expiry, not once per check.
	_, err = s.Token()
	require.ErrorIs(t, err, ErrExpired)
	require.Equal(t, 1, fired)
}

func TestSessionMarkExpiredAndReauth(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.SetToken(signedToken(t, time.Now().Add(time.Hour))))

	fired := 0
	s.OnExpired(func() { fired++ })

	s.MarkExpired()
	require.Equal(t, 1, fired)
	_, err := s.Token()
	require.ErrorIs(t, err, ErrExpired)

	// A fresh credential clears the expired state.
	require.NoError(t, s.SetToken(signedToken(t, time.Now().Add(time.Hour))))
	require.True(t, s.Valid())
}

func TestSessionAcceptsOpaqueToken(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.SetToken("not-a-jwt-at-all"))
	require.True(t, s.Valid())

	require.ErrorIs(t, s.SetToken("   "), ErrNoCredential)
}

func TestLogin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/auth/login", r.URL.Path)

		var req loginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(loginResponse{Token: "tok-123"})
	}))
	defer server.Close()

	token, err := Login(context.Background(), server.Client(), server.URL, "alice", "hunter2")
	require.NoError(t, err)
	require.Equal(t, "tok-123", token)

	_, err = Login(context.Background(), server.Client(), server.URL, "alice", "wrong")
	require.Error(t, err)
}

func TestTokenFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "token")

	_, err := LoadToken(path)
	require.ErrorIs(t, err, ErrNoCredential)

	require.NoError(t, SaveToken(path, "tok-abc"))
	token, err := LoadToken(path)
	require.NoError(t, err)
	require.Equal(t, "tok-abc", token)
}
