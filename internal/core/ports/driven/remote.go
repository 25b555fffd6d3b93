package driven

import (
	"context"

	"github.com/treeline-labs/confsync-cli/internal/core/domain"
)

// Remote performs page, property and label operations on the wiki.
// Implementations classify failures into the domain error taxonomy:
// domain.ErrNotFound for missing entities, domain.ErrConflict for
// version conflicts, domain.ErrTransient for failures worth retrying
// and domain.ErrPermanent for the rest.
type Remote interface {
	// GetPage retrieves a page with its body.
	GetPage(ctx context.Context, id string) (*domain.Page, error)

	// CreatePage creates a page and returns its remote state.
	CreatePage(ctx context.Context, draft domain.PageDraft) (*domain.Page, error)

	// UpdatePage rewrites a page conditionally on baseVersion. A stale
	// baseVersion yields domain.ErrConflict and no write.
	UpdatePage(ctx context.Context, id string, draft domain.PageDraft, baseVersion int) (*domain.Page, error)

	// DeletePage removes a page. Used by cleanup only, never by a
	// publish run.
	DeletePage(ctx context.Context, id string) error

	// GetProperty reads a content property value from a page.
	// Returns domain.ErrNotFound when the page has no such property.
	GetProperty(ctx context.Context, pageID, key string) (map[string]any, error)

	// SetProperty writes a content property, creating or replacing it.
	SetProperty(ctx context.Context, pageID, key string, value map[string]any) error

	// GetLabels lists the visible labels on a page.
	GetLabels(ctx context.Context, pageID string) ([]string, error)

	// AddLabels attaches labels to a page. Existing labels are kept.
	AddLabels(ctx context.Context, pageID string, labels []string) error

	// RemoveLabel detaches one label from a page.
	RemoveLabel(ctx context.Context, pageID, label string) error

	// SearchManaged returns every page under the root carrying the
	// managed label, with identity properties included. Pagination is
	// handled by the implementation.
	SearchManaged(ctx context.Context, rootID, label string) ([]domain.ManagedPage, error)

	// FindByLabel returns every page in the space carrying the given
	// label, with identity properties included.
	FindByLabel(ctx context.Context, label string) ([]domain.ManagedPage, error)

	// FindByTitle looks a page up by exact title within a space.
	// Returns domain.ErrNotFound when no page has the title.
	FindByTitle(ctx context.Context, spaceKey, title string) (*domain.Page, error)
}
