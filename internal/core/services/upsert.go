package services

import (
	"context"
	"fmt"

	"github.com/treeline-labs/confsync-cli/internal/core/domain"
	"github.com/treeline-labs/confsync-cli/internal/core/ports/driven"
	"github.com/treeline-labs/confsync-cli/internal/logger"
)

// upsertTarget describes where a source item wants to land: the page
// title it prefers, the parent it belongs under, and the body to write.
type upsertTarget struct {
	key         domain.SourceKey
	baseTitle   string
	parentID    string
	parentTitle string
	body        string
}

// titleCandidates returns the title chain tried when creating a page:
// the preferred title, a parent-qualified variant, and a key-suffixed
// variant that cannot collide with another source item.
func titleCandidates(t upsertTarget) []string {
	candidates := []string{t.baseTitle}
	if t.parentTitle != "" {
		candidates = append(candidates, t.parentTitle+" · "+t.baseTitle)
	}
	candidates = append(candidates, t.baseTitle+" ["+domain.KeySuffix(t.key)+"]")
	return candidates
}

// findOrCreatePage lands an unbound source item on a page. Each title
// candidate is probed in order: a free title creates a fresh page, an
// occupied one is adopted only when the occupant already belongs to
// this item or is a claimable stray. The page is claimed in the index
// before being returned, so no caller ever writes to a page another
// item holds.
//
// Adopted pages come back with their remote state untouched; the
// caller owns the follow-up body update.
func findOrCreatePage(ctx context.Context, remote driven.Remote, idx *IdentityIndex, cfg domain.Config, t upsertTarget) (page *domain.Page, adopted bool, err error) {
	for _, title := range titleCandidates(t) {
		existing, err := remote.FindByTitle(ctx, cfg.SpaceKey, title)
		if domain.IsNotFound(err) {
			draft := domain.PageDraft{
				SpaceKey: cfg.SpaceKey,
				ParentID: t.parentID,
				Title:    title,
				Body:     t.body,
			}
			created, err := remote.CreatePage(ctx, draft)
			if err != nil {
				return nil, false, fmt.Errorf("create page %q: %w", title, err)
			}
			if err := idx.Claim(t.key, created.ID); err != nil {
				return nil, false, err
			}
			if title != t.baseTitle {
				logger.Info("Title %q taken, created %s as %q", t.baseTitle, t.key, title)
			}
			return created, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("probe title %q: %w", title, err)
		}

		ok, err := mayAdopt(ctx, remote, cfg, existing, t.key)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			logger.Debug("Title %q occupied by page %s, trying next candidate", title, existing.ID)
			continue
		}
		if err := idx.Claim(t.key, existing.ID); err != nil {
			return nil, false, err
		}
		logger.Info("Adopted page %s (%q) for %s", existing.ID, title, t.key)
		return existing, true, nil
	}

	return nil, false, fmt.Errorf("every title candidate for %s is taken: %w", t.key, domain.ErrConflict)
}

// mayAdopt decides whether an existing page may be taken over by key.
// A page is adoptable when its identity property already names this
// key, or when it carries no identity at all, adoption is enabled and
// the page lives under the sync root. Pages owned by other keys, and
// pages whose property exists but does not decode, are left alone.
func mayAdopt(ctx context.Context, remote driven.Remote, cfg domain.Config, page *domain.Page, key domain.SourceKey) (bool, error) {
	prop, err := remote.GetProperty(ctx, page.ID, domain.PropertyKey)
	if domain.IsNotFound(err) {
		prop, err = remote.GetProperty(ctx, page.ID, domain.LegacyPropertyKey)
	}
	if domain.IsNotFound(err) {
		return cfg.AdoptExisting && page.HasAncestor(cfg.RootPageID), nil
	}
	if err != nil {
		return false, fmt.Errorf("read identity of page %s: %w", page.ID, err)
	}

	ident, ok := decodeIdentity(prop, page.ID)
	if !ok {
		return false, nil
	}
	return ident.Key == key, nil
}
