package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/treeline-labs/confsync-cli/internal/core/domain"
	"github.com/treeline-labs/confsync-cli/internal/core/ports/driven"
	"github.com/treeline-labs/confsync-cli/internal/core/ports/driving"
	"github.com/treeline-labs/confsync-cli/internal/logger"
)

// Ensure JanitorService implements the interface.
var _ driving.Janitor = (*JanitorService)(nil)

// JanitorService lists and purges the managed page set. Purging is an
// operator action for tearing a space section down, never part of a
// publish run.
type JanitorService struct {
	remote driven.Remote
	cfg    domain.Config
}

// NewJanitorService creates a janitor for the given configuration.
func NewJanitorService(remote driven.Remote, cfg domain.Config) *JanitorService {
	return &JanitorService{remote: remote, cfg: cfg}
}

// List returns every managed page under the configured root.
func (j *JanitorService) List(ctx context.Context) ([]domain.ManagedPage, error) {
	if err := j.cfg.Validate(); err != nil {
		return nil, err
	}
	pages, err := j.remote.SearchManaged(ctx, j.cfg.RootPageID, j.cfg.Label())
	if err != nil {
		return nil, fmt.Errorf("search managed pages: %w", err)
	}
	return pages, nil
}

// Purge deletes every managed page under the configured root. Pages
// already gone are counted as deleted; other failures are joined and
// returned after the sweep completes.
func (j *JanitorService) Purge(ctx context.Context) (int, error) {
	pages, err := j.List(ctx)
	if err != nil {
		return 0, err
	}
	logger.Info("Purging %d managed pages under %s", len(pages), j.cfg.RootPageID)

	deleted := 0
	var errs []error
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		err := j.remote.DeletePage(ctx, page.ID)
		switch {
		case err == nil:
			deleted++
			logger.Debug("Deleted page %s (%q)", page.ID, page.Title)
		case domain.IsNotFound(err):
			// Children vanish with their deleted parent.
			deleted++
		default:
			errs = append(errs, fmt.Errorf("delete page %s: %w", page.ID, err))
		}
	}
	return deleted, errors.Join(errs...)
}
