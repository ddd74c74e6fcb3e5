// Package auth manages the bearer credential for the portal session.
//
// The credential is opaque to the rest of the engine: components ask for
// the current token and react to the expiry signal. When the portal issues
// a JWT the session additionally inspects the exp claim (without verifying
// the signature, which only the server can do) to flag expiry locally
// before the server rejects a request.
package auth

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/Ncn914491/groupsync/internal/logging"
)

// Session errors.
var (
	// ErrNoCredential indicates no token has been supplied yet.
	ErrNoCredential = errors.New("no credential supplied")

	// ErrExpired indicates the session credential has expired. All
	// engine operations fail with this until a new token is supplied.
	ErrExpired = errors.New("session expired")
)

// Session holds the bearer credential and raises the expiry signal.
type Session struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	expired   bool
	watchers  []func()
	logger    zerolog.Logger
}

// NewSession creates an empty session with no credential.
func NewSession() *Session {
	return &Session{
		logger: logging.Component("auth-session"),
	}
}

// SetToken installs a new bearer credential and clears any expired state.
// A JWT's exp claim, when present, is recorded for local expiry checks;
// tokens that do not parse as JWTs are accepted as opaque.
func (s *Session) SetToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrNoCredential
	}

	expiresAt := jwtExpiry(token)

	s.mu.Lock()
	s.token = token
	s.expiresAt = expiresAt
	s.expired = false
	s.mu.Unlock()

	if expiresAt.IsZero() {
		s.logger.Debug().Msg("credential installed (opaque, no local expiry)")
	} else {
		s.logger.Debug().Time("expires_at", expiresAt).Msg("credential installed")
	}
	return nil
}

// Token returns the current bearer credential, or ErrNoCredential /
// ErrExpired. Noticing a passed exp claim here flips the session into the
// expired state and fires the expiry signal.
func (s *Session) Token() (string, error) {
	s.mu.RLock()
	token := s.token
	expired := s.expired
	expiresAt := s.expiresAt
	s.mu.RUnlock()

	if token == "" {
		return "", ErrNoCredential
	}
	if expired {
		return "", ErrExpired
	}
	if !expiresAt.IsZero() && time.Now().After(expiresAt) {
		s.MarkExpired()
		return "", ErrExpired
	}
	return token, nil
}

// Valid reports whether a usable credential is present.
func (s *Session) Valid() bool {
	_, err := s.Token()
	return err == nil
}

// MarkExpired flags the session as expired (e.g. the server returned 401)
// and fires the expiry signal exactly once per expiry.
func (s *Session) MarkExpired() {
	s.mu.Lock()
	if s.expired || s.token == "" {
		s.mu.Unlock()
		return
	}
	s.expired = true
	watchers := append([]func(){}, s.watchers...)
	s.mu.Unlock()

	s.logger.Warn().Msg("session credential expired")
	for _, fn := range watchers {
		fn()
	}
}

// OnExpired registers a callback fired when the session expires. The
// callback runs on the goroutine that detected expiry.
func (s *Session) OnExpired(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

// Identity extracts the subject and display-name claims from a JWT
// credential without verifying it. Opaque tokens yield empty values.
func Identity(token string) (id, name string) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return "", ""
	}
	if sub, err := claims.GetSubject(); err == nil {
		id = sub
	}
	if v, ok := claims["name"].(string); ok {
		name = v
	}
	return id, name
}

// jwtExpiry extracts the exp claim from a JWT without verifying it.
// Returns the zero time for opaque tokens or tokens without exp.
func jwtExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
