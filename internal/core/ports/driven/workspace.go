package driven

import "context"

// Workspace provides read access to the local documentation tree.
// All paths are normalised, slash-separated and relative to the root.
type Workspace interface {
	// Walk returns the tree-relative path of every Markdown file under
	// the root, in lexical order.
	Walk(ctx context.Context) ([]string, error)

	// ReadFile reads one file. Returns domain.ErrNotFound when the
	// file does not exist.
	ReadFile(ctx context.Context, relPath string) ([]byte, error)
}
