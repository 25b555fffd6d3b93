package services

import (
	"context"

	"github.com/treeline-labs/confsync-cli/internal/core/domain"
	"github.com/treeline-labs/confsync-cli/internal/core/ports/driven"
	"github.com/treeline-labs/confsync-cli/internal/logger"
)

// LegacyLabelsToRemove decides which labels the identity migration
// strips from a page. Pure function: given the page's current labels
// and whether it now carries a new-scheme identity property, it
// returns the legacy identity labels to remove. Nothing is ever added
// back, so repeated application converges to a no-op.
func LegacyLabelsToRemove(current []string, hasNewIdentity bool) []string {
	if !hasNewIdentity {
		return nil
	}
	var remove []string
	for _, label := range current {
		if domain.IsLegacyLabel(label) {
			remove = append(remove, label)
		}
	}
	return remove
}

// Migrator strips legacy identity labels from pages as they are
// touched. Migration rides along with normal publishing; it never
// gets a pass of its own and never fails the item it rides on.
type Migrator struct {
	remote driven.Remote
}

// NewMigrator creates a migrator over the given remote.
func NewMigrator(remote driven.Remote) *Migrator {
	return &Migrator{remote: remote}
}

// Migrate removes the legacy identity labels from one page, given its
// current labels and that its new identity property is in place.
// Returns the number of labels removed. Removal failures are logged
// and swallowed.
func (m *Migrator) Migrate(ctx context.Context, pageID string, labels []string) int {
	removed := 0
	for _, label := range LegacyLabelsToRemove(labels, true) {
		if err := m.remote.RemoveLabel(ctx, pageID, label); err != nil {
			logger.Warn("Could not remove legacy label %q from page %s: %v", label, pageID, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Debug("Migrated page %s: removed %d legacy labels", pageID, removed)
	}
	return removed
}
