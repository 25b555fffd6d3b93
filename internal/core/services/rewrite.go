package services

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/treeline-labs/confsync-cli/internal/core/domain"
	"github.com/treeline-labs/confsync-cli/internal/core/ports/driven"
	"github.com/treeline-labs/confsync-cli/internal/logger"
)

// linkMarker matches an anchor the renderer marked as an unresolved
// relative link. The capture group is the target as written in the
// source file.
var linkMarker = regexp.MustCompile(`<a ` + domain.LinkMarkerAttr + `="([^"]*)" href="[^"]*"`)

// Rewriter resolves marked links against the identity index and
// rewrites their hrefs to wiki page references. Targets the index does
// not know are looked up once by their legacy key label; what remains
// unresolved is warned about and left as written. Safe for concurrent
// use by the rewrite workers.
type Rewriter struct {
	remote driven.Remote
	idx    *IdentityIndex
	report *reporter
	base   string

	mu      sync.Mutex
	missing map[string]bool
}

// NewRewriter creates a rewriter. The configured base URL must be
// absolute. Only its context path ends up in rewritten links: the API
// host is often a tunnel or container alias that must not leak into
// page content, so links stay host relative.
func NewRewriter(remote driven.Remote, idx *IdentityIndex, report *reporter, cfg domain.Config) (*Rewriter, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: base URL %q is not absolute", domain.ErrInvalidConfig, cfg.BaseURL)
	}
	base := strings.TrimRight(u.Path, "/")
	base = strings.TrimSuffix(base, "/rest/api")
	return &Rewriter{
		remote:  remote,
		idx:     idx,
		report:  report,
		base:    base,
		missing: make(map[string]bool),
	}, nil
}

// Rewrite resolves the marked links in one storage body. fromPath is
// the tree-relative path of the source file the body was rendered
// from; relative targets resolve against its directory. The returned
// body differs from the input only when at least one link resolved.
func (w *Rewriter) Rewrite(ctx context.Context, body, fromPath string) string {
	return linkMarker.ReplaceAllStringFunc(body, func(m string) string {
		target := linkMarker.FindStringSubmatch(m)[1]
		pageID, fragment, ok := w.resolve(ctx, fromPath, html.UnescapeString(target))
		if !ok {
			return m
		}
		href := w.base + "/pages/viewpage.action?pageId=" + pageID + fragment
		return `<a ` + domain.LinkMarkerAttr + `="` + target + `" href="` + html.EscapeString(href) + `"`
	})
}

// resolve maps one link target to a page ID. The index answers most
// lookups; misses fall back to a one-shot legacy label search whose
// result is folded back into the index.
func (w *Rewriter) resolve(ctx context.Context, fromPath, href string) (pageID, fragment string, ok bool) {
	rel, fragment := splitFragment(href)
	if rel == "" {
		return "", "", false
	}
	// A leading slash means tree-root relative, everything else is
	// relative to the linking file's directory.
	var abs string
	if strings.HasPrefix(rel, "/") {
		abs = domain.NormalizePath(strings.TrimPrefix(rel, "/"))
	} else {
		abs = domain.NormalizePath(path.Join(path.Dir(fromPath), rel))
	}
	if !domain.IsMarkdown(abs) {
		return "", "", false
	}

	if id, found := w.idx.ResolvePath(abs); found {
		return id, fragment, true
	}

	w.mu.Lock()
	miss := w.missing[abs]
	w.mu.Unlock()
	if miss {
		return "", "", false
	}

	key := domain.NewFileKey(abs)
	hits, err := w.remote.FindByLabel(ctx, domain.LegacyKeyLabel(key))
	if err != nil {
		w.markMissing(abs)
		w.report.warn("Link target %s: legacy lookup failed: %v", abs, err)
		return "", "", false
	}
	switch len(hits) {
	case 1:
		w.idx.CommitLocal(domain.PageIdentity{
			Key:        key,
			PageID:     hits[0].ID,
			Classifier: domain.ClassifierDoc,
			Title:      hits[0].Title,
		})
		logger.Debug("Resolved %s to page %s via legacy label", abs, hits[0].ID)
		return hits[0].ID, fragment, true
	case 0:
		w.markMissing(abs)
		w.report.warn("Link target %s has no published page, leaving link as written", abs)
	default:
		w.markMissing(abs)
		w.report.warn("Link target %s matches %d pages by legacy label, leaving link as written", abs, len(hits))
	}
	return "", "", false
}

// markMissing records a target that failed to resolve, so each one is
// looked up and warned about at most once per run.
func (w *Rewriter) markMissing(abs string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.missing[abs] = true
}

// splitFragment separates a link target from its fragment, keeping the
// leading hash on the fragment.
func splitFragment(href string) (rel, fragment string) {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		return href[:i], href[i:]
	}
	return href, ""
}
