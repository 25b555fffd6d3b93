package driven

import (
	"context"

	"github.com/treeline-labs/confsync-cli/internal/core/domain"
)

// Renderer turns Markdown source into storage-format markup. Relative
// Markdown links are left unresolved and marked in the output so the
// link rewriter can resolve them once all target pages exist.
type Renderer interface {
	// Render renders one source file. relPath is the tree-relative
	// path of the source, named in errors.
	Render(ctx context.Context, src []byte, relPath string) (*domain.RenderResult, error)

	// RenderDirectory renders a grouping page body: the directory's
	// body file when src is non-nil, a placeholder paragraph carrying
	// placeholderTitle otherwise, followed by a child page listing.
	// relPath is the tree-relative path of the body file.
	RenderDirectory(ctx context.Context, src []byte, relPath, placeholderTitle string) (*domain.RenderResult, error)
}
