package driving

import (
	"context"

	"github.com/treeline-labs/confsync-cli/internal/core/domain"
)

// Publisher runs publish operations against the remote space.
type Publisher interface {
	// Run interprets the request into a changeset and publishes it.
	// Item failures are collected in the report, not returned as an
	// error; the error is non-nil only for failures that abort the
	// whole run, such as a malformed change listing.
	Run(ctx context.Context, req domain.RunRequest) (*domain.RunReport, error)
}
