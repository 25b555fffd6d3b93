package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/treeline-labs/confsync-cli/internal/core/domain"
	"github.com/treeline-labs/confsync-cli/internal/core/ports/driven"
	"github.com/treeline-labs/confsync-cli/internal/logger"
)

// Hierarchy materialises the directory tree as grouping pages, one per
// directory, parented under the configured root page. Page IDs are
// memoised for the run; all ensures are serialised so each directory
// is handled exactly once even when publish workers race for it.
type Hierarchy struct {
	remote   driven.Remote
	ws       driven.Workspace
	renderer driven.Renderer
	idx      *IdentityIndex
	migrator *Migrator
	report   *reporter
	collect  *pageCollector
	cfg      domain.Config

	mu      sync.Mutex
	ensured map[string]string
	titles  map[string]string
}

// NewHierarchy creates a hierarchy builder for one run.
func NewHierarchy(remote driven.Remote, ws driven.Workspace, renderer driven.Renderer, idx *IdentityIndex, migrator *Migrator, report *reporter, collect *pageCollector, cfg domain.Config) *Hierarchy {
	return &Hierarchy{
		remote:   remote,
		ws:       ws,
		renderer: renderer,
		idx:      idx,
		migrator: migrator,
		report:   report,
		collect:  collect,
		cfg:      cfg,
		ensured:  map[string]string{"": cfg.RootPageID},
		titles:   map[string]string{"": ""},
	}
}

// EnsureDir returns the page ID backing a directory, creating its page
// and any missing ancestor pages first. The empty path resolves to the
// configured root page.
func (h *Hierarchy) EnsureDir(ctx context.Context, dir string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ensureLocked(ctx, domain.NormalizePath(dir), false)
}

// RefreshDir re-renders a directory page whose body file changed,
// creating the page when it does not exist yet.
func (h *Hierarchy) RefreshDir(ctx context.Context, dir string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	dir = domain.NormalizePath(dir)
	if dir == "" {
		h.report.warn("Body file at the tree root ignored: the root page is not managed")
		return nil
	}
	_, err := h.ensureLocked(ctx, dir, true)
	return err
}

// ensureLocked resolves one directory, recursing parent-first. With
// refresh set, a directory that already has a page gets its body
// re-rendered and conditionally rewritten; otherwise an existing
// binding is only memoised.
func (h *Hierarchy) ensureLocked(ctx context.Context, dir string, refresh bool) (string, error) {
	if id, ok := h.ensured[dir]; ok && !refresh {
		return id, nil
	}

	parentID, err := h.ensureLocked(ctx, parentDir(dir), false)
	if err != nil {
		return "", fmt.Errorf("ensure parent of %s: %w", dir, err)
	}

	key := domain.NewDirKey(dir)
	if err := h.idx.ConflictFor(key); err != nil {
		return "", err
	}

	ident, bound := h.idx.Lookup(key)
	if bound && !refresh {
		h.ensured[dir] = ident.PageID
		h.titles[dir] = ident.Title
		return ident.PageID, nil
	}

	src, bodyPath, err := h.readBodyFile(ctx, dir)
	if err != nil {
		return "", err
	}
	res, err := h.renderer.RenderDirectory(ctx, src, bodyPath, h.fallbackTitle(dir))
	if err != nil {
		return "", fmt.Errorf("render directory %s: %w", dir, err)
	}
	title := h.dirTitle(dir, res.Title)

	if !bound {
		return h.createLocked(ctx, dir, key, parentID, title, res, bodyPath)
	}
	return ident.PageID, h.refreshLocked(ctx, dir, key, ident, parentID, title, res, bodyPath)
}

// createLocked lands a directory on a fresh or adopted page.
func (h *Hierarchy) createLocked(ctx context.Context, dir string, key domain.SourceKey, parentID, title string, res *domain.RenderResult, bodyPath string) (string, error) {
	target := upsertTarget{
		key:         key,
		baseTitle:   title,
		parentID:    parentID,
		parentTitle: h.titles[parentDir(dir)],
		body:        res.Storage,
	}
	page, adopted, err := findOrCreatePage(ctx, h.remote, h.idx, h.cfg, target)
	if err != nil {
		return "", err
	}

	version := page.Version
	if adopted {
		draft := domain.PageDraft{
			SpaceKey: h.cfg.SpaceKey,
			ParentID: parentID,
			Title:    page.Title,
			Body:     res.Storage,
		}
		if h.cfg.DryRun {
			h.report.plan(domain.PlannedChange{
				Key: key, Path: dir, PageID: page.ID, Title: page.Title,
				Action: domain.ActionUpdate, OldBody: page.Body, NewBody: res.Storage,
			})
		}
		updated, err := h.remote.UpdatePage(ctx, page.ID, draft, page.Version)
		if err != nil {
			return "", fmt.Errorf("update adopted page %s: %w", page.ID, err)
		}
		version = updated.Version
	} else if h.cfg.DryRun {
		h.report.plan(domain.PlannedChange{
			Key: key, Path: dir, Title: page.Title,
			Action: domain.ActionCreate, NewBody: res.Storage,
		})
	}

	ident := domain.PageIdentity{
		Key:         key,
		PageID:      page.ID,
		Classifier:  classifierFor(dir),
		ContentHash: res.Hash,
		Title:       page.Title,
	}
	if err := h.idx.Commit(ctx, ident); err != nil {
		return "", err
	}
	removed, err := reconcileLabels(ctx, h.remote, h.migrator, page.ID, h.cfg.Label(), res.Labels)
	if err != nil {
		return "", err
	}
	if removed > 0 {
		h.report.migrated(1)
	}

	h.ensured[dir] = page.ID
	h.titles[dir] = page.Title
	h.collect.bound()
	if bodyPath != "" {
		h.collect.add(phasedPage{
			key: key, path: bodyPath, pageID: page.ID, title: page.Title,
			parentID: parentID, version: version, body: res.Storage,
		})
	}

	if adopted {
		h.report.updated()
	} else {
		h.report.created()
		logger.Info("Created directory page %s for %s", page.ID, dir)
	}
	return page.ID, nil
}

// refreshLocked rewrites a bound directory page when its rendered body
// or derived title changed, and leaves it untouched otherwise.
func (h *Hierarchy) refreshLocked(ctx context.Context, dir string, key domain.SourceKey, ident domain.PageIdentity, parentID, title string, res *domain.RenderResult, bodyPath string) error {
	h.ensured[dir] = ident.PageID

	if ident.ContentHash == res.Hash && ident.Title == title {
		h.titles[dir] = ident.Title
		h.report.skipped()
		if bodyPath != "" {
			h.collect.add(phasedPage{
				key: key, path: bodyPath, pageID: ident.PageID, title: ident.Title,
				parentID: parentID, skipped: true,
			})
		}
		return nil
	}

	page, err := h.remote.GetPage(ctx, ident.PageID)
	if err != nil {
		return fmt.Errorf("fetch page %s: %w", ident.PageID, err)
	}
	draft := domain.PageDraft{
		SpaceKey: h.cfg.SpaceKey,
		ParentID: parentID,
		Title:    title,
		Body:     res.Storage,
	}
	if h.cfg.DryRun {
		h.report.plan(domain.PlannedChange{
			Key: key, Path: dir, PageID: ident.PageID, Title: title,
			Action: domain.ActionUpdate, OldBody: page.Body, NewBody: res.Storage,
		})
	}
	updated, err := h.remote.UpdatePage(ctx, ident.PageID, draft, page.Version)
	if err != nil {
		return fmt.Errorf("update page %s: %w", ident.PageID, err)
	}

	ident.ContentHash = res.Hash
	ident.Title = title
	if err := h.idx.Commit(ctx, ident); err != nil {
		return err
	}
	removed, err := reconcileLabels(ctx, h.remote, h.migrator, ident.PageID, h.cfg.Label(), res.Labels)
	if err != nil {
		return err
	}
	if removed > 0 {
		h.report.migrated(1)
	}

	h.titles[dir] = title
	h.report.updated()
	if bodyPath != "" {
		h.collect.add(phasedPage{
			key: key, path: bodyPath, pageID: ident.PageID, title: title,
			parentID: parentID, version: updated.Version, body: res.Storage,
		})
	}
	logger.Info("Refreshed directory page %s for %s", ident.PageID, dir)
	return nil
}

// TitleOf returns the title of an already-ensured directory, empty
// when the directory has not been ensured this run.
func (h *Hierarchy) TitleOf(dir string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.titles[dir]
}

// readBodyFile finds the directory's body file, if any.
func (h *Hierarchy) readBodyFile(ctx context.Context, dir string) ([]byte, string, error) {
	for _, name := range []string{"_index.md", "README.md", "readme.md"} {
		p := dir + "/" + name
		src, err := h.ws.ReadFile(ctx, p)
		if err == nil {
			return src, p, nil
		}
		if !domain.IsNotFound(err) {
			return nil, "", fmt.Errorf("read %s: %w", p, err)
		}
	}
	return nil, "", nil
}

// fallbackTitle is the directory title before front matter is known.
func (h *Hierarchy) fallbackTitle(dir string) string {
	if t, ok := h.cfg.TitleOverrides[dir]; ok && t != "" {
		return t
	}
	return domain.Humanize(path.Base(dir))
}

// dirTitle picks the directory title: the configured override wins,
// then body-file front matter, then the humanised directory name.
func (h *Hierarchy) dirTitle(dir, frontMatterTitle string) string {
	if t, ok := h.cfg.TitleOverrides[dir]; ok && t != "" {
		return t
	}
	if frontMatterTitle != "" {
		return frontMatterTitle
	}
	return domain.Humanize(path.Base(dir))
}

// classifierFor assigns the stored classifier: top-level directories
// are plain directories, nested ones are sections.
func classifierFor(dir string) domain.Classifier {
	if strings.Contains(dir, "/") {
		return domain.ClassifierSection
	}
	return domain.ClassifierDir
}

// parentDir returns the parent directory path, empty at the tree root.
func parentDir(dir string) string {
	parent := path.Dir(dir)
	if parent == "." {
		return ""
	}
	return parent
}
