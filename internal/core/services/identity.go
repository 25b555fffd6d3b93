package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/treeline-labs/confsync-cli/internal/core/domain"
	"github.com/treeline-labs/confsync-cli/internal/core/ports/driven"
	"github.com/treeline-labs/confsync-cli/internal/logger"
)

// IdentityIndex resolves source keys to remote pages and writes
// identity properties back. It is seeded once per run from the
// managed-set search and kept current as pages are written. All
// methods are safe for concurrent use by the publish workers.
//
// The index enforces the one-to-one shape of the mapping: a claim
// that would bind two keys to one page, or that contradicts what the
// remote reported, is refused with an identity conflict.
type IdentityIndex struct {
	remote driven.Remote

	mu        sync.RWMutex
	byKey     map[domain.SourceKey]domain.PageIdentity
	byPage    map[string]domain.SourceKey
	byPath    map[string]string
	conflicts map[domain.SourceKey]error
}

// NewIdentityIndex creates an empty index over the given remote.
func NewIdentityIndex(remote driven.Remote) *IdentityIndex {
	return &IdentityIndex{
		remote:    remote,
		byKey:     make(map[domain.SourceKey]domain.PageIdentity),
		byPage:    make(map[string]domain.SourceKey),
		byPath:    make(map[string]string),
		conflicts: make(map[domain.SourceKey]error),
	}
}

// Bootstrap seeds the index from every managed page under rootID.
// Pages carrying the managed label but no readable identity property
// are left for title-based adoption to pick up later.
func (x *IdentityIndex) Bootstrap(ctx context.Context, rootID, label string) error {
	pages, err := x.remote.SearchManaged(ctx, rootID, label)
	if err != nil {
		return fmt.Errorf("search managed pages: %w", err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	seeded := 0
	for _, mp := range pages {
		ident, ok := decodeIdentity(mp.Property, mp.ID)
		if !ok {
			logger.Debug("Managed page %s (%q) carries no identity", mp.ID, mp.Title)
			continue
		}
		x.seedLocked(ident)
		seeded++
	}

	logger.Info("Identity bootstrap: %d managed pages, %d with identity", len(pages), seeded)
	return nil
}

// seedLocked records one remote-observed identity, detecting keys that
// appear on more than one page.
func (x *IdentityIndex) seedLocked(ident domain.PageIdentity) {
	if existing, ok := x.byKey[ident.Key]; ok && existing.PageID != ident.PageID {
		x.conflicts[ident.Key] = fmt.Errorf("%w: key %s found on both page %s and page %s",
			domain.ErrIdentityConflict, ident.Key, existing.PageID, ident.PageID)
		logger.Warn("Identity conflict: key %s found on pages %s and %s", ident.Key, existing.PageID, ident.PageID)
		return
	}
	x.storeLocked(ident)
}

// storeLocked writes one identity into all three maps.
func (x *IdentityIndex) storeLocked(ident domain.PageIdentity) {
	x.byKey[ident.Key] = ident
	x.byPage[ident.PageID] = ident.Key
	if ident.Key.Kind() == domain.KindFile {
		x.byPath[ident.Key.Path()] = ident.PageID
	}
}

// Lookup returns the identity bound to a key.
func (x *IdentityIndex) Lookup(key domain.SourceKey) (domain.PageIdentity, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	ident, ok := x.byKey[key]
	return ident, ok
}

// Resolve returns the page ID bound to a key.
func (x *IdentityIndex) Resolve(key domain.SourceKey) (string, bool) {
	ident, ok := x.Lookup(key)
	if !ok {
		return "", false
	}
	return ident.PageID, true
}

// ResolvePath returns the page ID for a file path.
func (x *IdentityIndex) ResolvePath(relPath string) (string, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	id, ok := x.byPath[domain.NormalizePath(relPath)]
	return id, ok
}

// ConflictFor reports a conflict recorded against the key, nil when
// the key is clean.
func (x *IdentityIndex) ConflictFor(key domain.SourceKey) error {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.conflicts[key]
}

// Claim reserves a page for a key before any write touches it. The
// claim is refused when the page is already bound to a different key,
// or the key carries a bootstrap conflict. Claiming an established
// binding again is a no-op.
func (x *IdentityIndex) Claim(key domain.SourceKey, pageID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.conflicts[key]; err != nil {
		return err
	}
	if boundKey, ok := x.byPage[pageID]; ok && boundKey != key {
		return &domain.IdentityConflictError{PageID: pageID, ExistingKey: boundKey, NewKey: key}
	}
	if ident, ok := x.byKey[key]; ok && ident.PageID != pageID {
		return fmt.Errorf("%w: key %s bound to page %s, refusing page %s",
			domain.ErrIdentityConflict, key, ident.PageID, pageID)
	}

	x.byPage[pageID] = key
	return nil
}

// Commit writes an identity property to its page and records the
// binding. The remote write is skipped when the stored state already
// matches, so re-publishing an unchanged tree touches nothing.
func (x *IdentityIndex) Commit(ctx context.Context, ident domain.PageIdentity) error {
	x.mu.RLock()
	existing, known := x.byKey[ident.Key]
	x.mu.RUnlock()

	if known && existing.PageID == ident.PageID && existing.Equal(ident) {
		return nil
	}

	if err := x.remote.SetProperty(ctx, ident.PageID, domain.PropertyKey, encodeIdentity(ident)); err != nil {
		return fmt.Errorf("write identity property: %w", err)
	}

	x.CommitLocal(ident)
	return nil
}

// CommitLocal records a binding in the index without touching the
// remote. Used by dry runs and when seeding from spot lookups.
func (x *IdentityIndex) CommitLocal(ident domain.PageIdentity) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.storeLocked(ident)
}

// Rekey moves an identity from oldKey to newKey, keeping the page.
// The page's property is rewritten under the new key; the old key no
// longer resolves afterwards. Refused when newKey is already bound to
// a different page.
func (x *IdentityIndex) Rekey(ctx context.Context, oldKey, newKey domain.SourceKey) (domain.PageIdentity, error) {
	x.mu.Lock()
	ident, ok := x.byKey[oldKey]
	if !ok {
		x.mu.Unlock()
		return domain.PageIdentity{}, fmt.Errorf("rekey %s: %w", oldKey, domain.ErrNotFound)
	}
	if bound, exists := x.byKey[newKey]; exists && bound.PageID != ident.PageID {
		x.mu.Unlock()
		return domain.PageIdentity{}, &domain.IdentityConflictError{
			PageID: bound.PageID, ExistingKey: newKey, NewKey: oldKey,
		}
	}
	x.mu.Unlock()

	ident.Key = newKey
	if err := x.remote.SetProperty(ctx, ident.PageID, domain.PropertyKey, encodeIdentity(ident)); err != nil {
		return domain.PageIdentity{}, fmt.Errorf("write identity property: %w", err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.byKey, oldKey)
	if oldKey.Kind() == domain.KindFile {
		delete(x.byPath, oldKey.Path())
	}
	x.storeLocked(ident)
	return ident, nil
}

// decodeIdentity reads an identity property value. Reports false when
// the value is absent or carries no parseable key.
func decodeIdentity(prop map[string]any, pageID string) (domain.PageIdentity, bool) {
	if prop == nil {
		return domain.PageIdentity{}, false
	}
	rawKey, _ := prop["key"].(string)
	key := domain.SourceKey(rawKey)
	if !key.IsValid() {
		return domain.PageIdentity{}, false
	}

	classifier, _ := prop["classifier"].(string)
	hash, _ := prop["hash"].(string)
	title, _ := prop["title"].(string)

	return domain.PageIdentity{
		Key:         key,
		PageID:      pageID,
		Classifier:  domain.Classifier(classifier),
		ContentHash: hash,
		Title:       title,
	}, true
}

// encodeIdentity renders an identity as a property value.
func encodeIdentity(ident domain.PageIdentity) map[string]any {
	return map[string]any{
		"key":        ident.Key.String(),
		"classifier": ident.Classifier.String(),
		"hash":       ident.ContentHash,
		"title":      ident.Title,
	}
}
