package engine

import (
	"context"

	"quoteline/internal/domain"
	"quoteline/internal/engine/auth"
	"quoteline/internal/repo"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// ListEvents returns audit events newest first.
func (e Engine) ListEvents(ctx context.Context, p domain.Principal, f repo.EventFilters) ([]domain.Event, error) {
	if err := auth.Authorize(p, auth.EventsRead, auth.Target{}); err != nil {
		return nil, err
	}
	switch {
	case f.Limit <= 0:
		f.Limit = defaultEventLimit
	case f.Limit > maxEventLimit:
		f.Limit = maxEventLimit
	}
	evts, err := e.Repo.LatestEvents(ctx, f)
	if err != nil {
		return nil, storageError(err)
	}
	return evts, nil
}
