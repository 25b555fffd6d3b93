package driving

import (
	"context"

	"github.com/treeline-labs/confsync-cli/internal/core/domain"
)

// Janitor performs operator maintenance on the managed page set.
type Janitor interface {
	// List returns every page currently carrying the managed label
	// under the configured root.
	List(ctx context.Context) ([]domain.ManagedPage, error)

	// Purge deletes every managed page. Per-page failures do not stop
	// the purge; the count of deleted pages and the joined errors are
	// returned.
	Purge(ctx context.Context) (int, error)
}
