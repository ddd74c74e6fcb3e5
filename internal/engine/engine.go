// Package engine implements the group messaging synchronization engine:
// the group catalog, the membership registry, the polling synchronizer
// for the single open group, and the optimistic send pipeline.
//
// All mutable state is owned by the Engine and guarded by one mutex; each
// user action and each timer/network callback is a single mutation entry
// point. Network calls always happen outside the lock, and every deferred
// result is checked against a staleness token or the open session's
// identity before it is applied.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ncn914491/groupsync/internal/auth"
	"github.com/Ncn914491/groupsync/internal/config"
	"github.com/Ncn914491/groupsync/internal/events"
	"github.com/Ncn914491/groupsync/internal/gateway"
	"github.com/Ncn914491/groupsync/internal/grouping"
	"github.com/Ncn914491/groupsync/internal/logging"
	"github.com/Ncn914491/groupsync/internal/models"
	"github.com/Ncn914491/groupsync/internal/store"
)

// Config contains engine settings.
type Config struct {
	// PollInterval is the fixed period between feed refreshes for the
	// open group.
	// Default: 5s
	PollInterval time.Duration

	// RefreshMode selects full-list refetch or incremental fetch per
	// poll tick.
	// Default: full
	RefreshMode config.RefreshMode

	// CharacterLimit is the compose limit in UTF-16 code units.
	// Default: models.MaxMessageLength
	CharacterLimit int

	// Self identifies the current user, used to author optimistic
	// entries before the server copy arrives.
	Self models.User
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:   5 * time.Second,
		RefreshMode:    config.RefreshModeFull,
		CharacterLimit: models.MaxMessageLength,
	}
}

// Engine owns the synchronized client state for the group chat feature.
type Engine struct {
	cfg     Config
	gw      gateway.Client
	session *auth.Session
	cache   *store.Store
	bus     events.Publisher
	logger  zerolog.Logger

	mu         sync.Mutex
	catalog    []models.Group
	catalogErr error
	members    map[string]struct{}
	refreshSeq uint64
	halted     bool
	open       *openSession
	draft      string
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache configures the engine to seed from and write through a local
// snapshot cache.
func WithCache(cache *store.Store) Option {
	return func(e *Engine) {
		e.cache = cache
	}
}

// WithPublisher overrides the event publisher.
func WithPublisher(bus events.Publisher) Option {
	return func(e *Engine) {
		e.bus = bus
	}
}

// New creates an Engine. The auth session's expiry signal is wired
// immediately: once the credential expires, polling halts and all
// operations fail with auth.ErrExpired until Resume.
func New(cfg Config, gw gateway.Client, session *auth.Session, opts ...Option) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.RefreshMode == "" {
		cfg.RefreshMode = DefaultConfig().RefreshMode
	}
	if cfg.CharacterLimit <= 0 {
		cfg.CharacterLimit = DefaultConfig().CharacterLimit
	}

	e := &Engine{
		cfg:     cfg,
		gw:      gw,
		session: session,
		logger:  logging.Component("sync-engine"),
		members: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.bus == nil {
		e.bus = events.NewInMemoryPublisher()
	}

	if session != nil {
		session.OnExpired(e.onAuthExpired)
	}

	e.seedFromCache()

	return e
}

// Events returns the engine's event publisher for subscriptions.
func (e *Engine) Events() events.Publisher {
	return e.bus
}

// seedFromCache loads the last good catalog snapshot, if any, so the UI
// has something to show before the first network load.
func (e *Engine) seedFromCache() {
	if e.cache == nil {
		return
	}
	groups, err := e.cache.LoadCatalog(context.Background())
	if err != nil {
		if err != store.ErrNoSnapshot {
			e.logger.Warn().Err(err).Msg("failed to seed catalog from cache")
		}
		return
	}

	e.mu.Lock()
	e.applyCatalogLocked(groups)
	e.mu.Unlock()
	e.logger.Debug().Int("groups", len(groups)).Msg("catalog seeded from cache")
}

// onAuthExpired halts the engine: the open session is torn down, and all
// future operations fail with auth.ErrExpired until Resume. The compose
// draft is deliberately preserved.
func (e *Engine) onAuthExpired() {
	e.mu.Lock()
	if e.halted {
		e.mu.Unlock()
		return
	}
	e.halted = true
	closed := e.closeSessionLocked()
	e.mu.Unlock()

	e.logger.Warn().Msg("engine halted: session expired")
	if closed != "" {
		e.bus.Publish(context.Background(), events.New(models.EventTypeSessionClosed, models.EntityTypeSession, closed, nil))
	}
	e.bus.Publish(context.Background(), events.New(models.EventTypeAuthExpired, models.EntityTypeSession, "", models.AuthExpiredPayload{Reason: "credential expired"}))
}

// Resume lifts the auth halt after a new credential has been supplied.
func (e *Engine) Resume() error {
	if e.session != nil {
		if _, err := e.session.Token(); err != nil {
			return err
		}
	}

	e.mu.Lock()
	e.halted = false
	e.mu.Unlock()
	e.logger.Info().Msg("engine resumed")
	return nil
}

// Halted reports whether the engine is halted pending re-authentication.
func (e *Engine) Halted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.halted
}

// Close tears down the engine: the open session (if any) is closed and
// its poll goroutine awaited.
func (e *Engine) Close() {
	e.mu.Lock()
	s := e.open
	closed := e.closeSessionLocked()
	e.mu.Unlock()

	if s != nil {
		<-s.done
	}
	if closed != "" {
		e.bus.Publish(context.Background(), events.New(models.EventTypeSessionClosed, models.EntityTypeSession, closed, nil))
	}
}

// Draft returns the current compose draft.
func (e *Engine) Draft() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draft
}

// SetDraft replaces the compose draft.
func (e *Engine) SetDraft(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.draft = text
}

// Runs returns the open session's messages clustered into display runs.
func (e *Engine) Runs() []grouping.Run {
	return grouping.Group(e.Messages())
}

func cloneMessages(messages []models.Message) []models.Message {
	if messages == nil {
		return nil
	}
	out := make([]models.Message, len(messages))
	copy(out, messages)
	return out
}

func cloneGroups(groups []models.Group) []models.Group {
	if groups == nil {
		return nil
	}
	out := make([]models.Group, len(groups))
	copy(out, groups)
	return out
}
