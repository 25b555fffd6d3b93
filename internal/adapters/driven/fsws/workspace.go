// Package fsws provides the filesystem workspace adapter. It exposes
// the local documentation tree through an fs.FS so services read real
// directories and tests read in-memory ones the same way.
package fsws

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/treeline-labs/confsync-cli/internal/core/domain"
	"github.com/treeline-labs/confsync-cli/internal/core/ports/driven"
)

// Ensure Workspace implements the interface.
var _ driven.Workspace = (*Workspace)(nil)

// Workspace reads the documentation tree rooted at a filesystem.
type Workspace struct {
	fsys fs.FS
}

// New creates a workspace over the given filesystem. The filesystem
// root is the documentation root; all returned paths are relative to
// it.
func New(fsys fs.FS) *Workspace {
	return &Workspace{fsys: fsys}
}

// NewDir creates a workspace rooted at a directory on the host
// filesystem.
func NewDir(dir string) *Workspace {
	return New(os.DirFS(dir))
}

// Walk returns every Markdown file under the root in lexical order.
// Dot directories are skipped, so a .git or editor cache inside the
// tree never becomes content.
func (w *Workspace) Walk(ctx context.Context) ([]string, error) {
	var paths []string
	err := fs.WalkDir(w.fsys, ".", func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if p != "." && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if domain.IsMarkdown(p) {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk doc tree: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadFile reads one file by its tree-relative path.
func (w *Workspace) ReadFile(ctx context.Context, relPath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(w.fsys, domain.NormalizePath(relPath))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", relPath, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", relPath, err)
	}
	return data, nil
}
