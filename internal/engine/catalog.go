package engine

import (
	"context"
	"errors"

	"github.com/Ncn914491/groupsync/internal/auth"
	"github.com/Ncn914491/groupsync/internal/events"
	"github.com/Ncn914491/groupsync/internal/models"
)

// Refresh loads the group catalog and replaces the snapshot atomically.
// It is safe to call while another refresh is pending: each call takes a
// fresh staleness token, and only the response matching the latest issued
// token is applied. A superseded call returns nil without applying.
//
// On failure the last good snapshot is preserved and a CatalogError is
// returned.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	if e.halted {
		e.mu.Unlock()
		return auth.ErrExpired
	}
	e.refreshSeq++
	seq := e.refreshSeq
	e.mu.Unlock()

	groups, err := e.gw.ListGroups(ctx)

	e.mu.Lock()
	if seq != e.refreshSeq {
		// A newer refresh was issued while this one was in flight.
		e.mu.Unlock()
		e.logger.Debug().Uint64("seq", seq).Msg("dropping superseded catalog response")
		return nil
	}

	if err != nil {
		catErr := &CatalogError{Cause: err}
		e.catalogErr = catErr
		e.mu.Unlock()

		if errors.Is(err, auth.ErrExpired) {
			return err
		}
		e.logger.Warn().Err(err).Msg("catalog load failed, keeping last good snapshot")
		e.bus.Publish(ctx, events.New(models.EventTypeCatalogFailed, models.EntityTypeCatalog, "", nil))
		return catErr
	}

	e.applyCatalogLocked(groups)
	e.mu.Unlock()

	e.logger.Debug().Int("groups", len(groups)).Msg("catalog refreshed")
	e.bus.Publish(ctx, events.New(models.EventTypeCatalogRefreshed, models.EntityTypeCatalog, "", nil))
	e.writeCatalogSnapshot(groups)
	return nil
}

// applyCatalogLocked replaces the catalog snapshot wholesale and derives
// the membership registry from the per-group membership flags. Caller
// holds e.mu.
func (e *Engine) applyCatalogLocked(groups []models.Group) {
	e.catalog = groups
	e.catalogErr = nil

	members := make(map[string]struct{}, len(groups))
	for _, group := range groups {
		if group.IsMember {
			members[group.ID] = struct{}{}
		}
	}
	e.members = members
}

// writeCatalogSnapshot persists the catalog to the local cache. Best
// effort: failures are logged, never surfaced.
func (e *Engine) writeCatalogSnapshot(groups []models.Group) {
	if e.cache == nil {
		return
	}
	if err := e.cache.SaveCatalog(context.Background(), groups); err != nil {
		e.logger.Warn().Err(err).Msg("failed to write catalog snapshot")
	}
}

// Catalog returns the current catalog snapshot.
func (e *Engine) Catalog() []models.Group {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneGroups(e.catalog)
}

// CatalogErr returns the latest catalog load error, nil after a success.
func (e *Engine) CatalogErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.catalogErr
}
