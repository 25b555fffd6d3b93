package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/treeline-labs/confsync-cli/internal/core/domain"
	"github.com/treeline-labs/confsync-cli/internal/core/ports/driven"
)

// Ensure Remote implements the interface.
var _ driven.Remote = (*Remote)(nil)

// Remote is an in-memory implementation of driven.Remote. It enforces
// the same rules the real wiki does: titles are unique per space,
// versions increment on every write, and updates are conditional on
// the caller's base version. Service tests run against it, and it
// backs nothing in production.
type Remote struct {
	mu       sync.RWMutex
	nextID   int
	pages    map[string]*pageState
	failures map[string]error
	stats    Stats
}

// pageState is the full remote-side state of one page.
type pageState struct {
	page       domain.Page
	properties map[string]map[string]any
	labels     []string
}

// Stats counts remote operations, for asserting how much a run
// actually touched.
type Stats struct {
	Creates        int
	Updates        int
	Deletes        int
	PropertyWrites int
	LabelAdds      int
	LabelRemoves   int
	Searches       int
}

// NewRemote creates an empty in-memory remote.
func NewRemote() *Remote {
	return &Remote{
		nextID:   1001,
		pages:    make(map[string]*pageState),
		failures: make(map[string]error),
	}
}

// SeedPage installs a page directly, bypassing rules and counters.
// Tests use it to lay out the remote before a run.
func (r *Remote) SeedPage(id, spaceKey, parentID, title, body string) *domain.Page {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := &pageState{
		page: domain.Page{
			ID:       id,
			Title:    title,
			ParentID: parentID,
			SpaceKey: spaceKey,
			Version:  1,
			Body:     body,
		},
		properties: make(map[string]map[string]any),
	}
	r.pages[id] = st
	return r.copyPageLocked(st)
}

// SeedProperty installs a content property directly.
func (r *Remote) SeedProperty(pageID, key string, value map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.pages[pageID]; ok {
		st.properties[key] = copyValue(value)
	}
}

// SeedLabels installs labels directly.
func (r *Remote) SeedLabels(pageID string, labels ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.pages[pageID]; ok {
		st.labels = append([]string{}, labels...)
	}
}

// SetFailure makes the named operation return err until cleared with a
// nil err. Operation names match the interface methods.
func (r *Remote) SetFailure(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failures, op)
		return
	}
	r.failures[op] = err
}

// Stats returns a snapshot of the operation counters.
func (r *Remote) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// Page returns a copy of a page's remote state for assertions.
func (r *Remote) Page(id string) (*domain.Page, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.pages[id]
	if !ok {
		return nil, false
	}
	return r.copyPageLocked(st), true
}

// Property returns a copy of a stored property value for assertions.
func (r *Remote) Property(pageID, key string) (map[string]any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.pages[pageID]
	if !ok {
		return nil, false
	}
	value, ok := st.properties[key]
	if !ok {
		return nil, false
	}
	return copyValue(value), true
}

// Labels returns a copy of a page's labels for assertions.
func (r *Remote) Labels(pageID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.pages[pageID]
	if !ok {
		return nil
	}
	return append([]string{}, st.labels...)
}

// GetPage retrieves a page with its body.
func (r *Remote) GetPage(_ context.Context, id string) (*domain.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.failures["GetPage"]; err != nil {
		return nil, err
	}
	st, ok := r.pages[id]
	if !ok {
		return nil, fmt.Errorf("page %s: %w", id, domain.ErrNotFound)
	}
	return r.copyPageLocked(st), nil
}

// CreatePage creates a page, enforcing title uniqueness per space.
func (r *Remote) CreatePage(_ context.Context, draft domain.PageDraft) (*domain.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failures["CreatePage"]; err != nil {
		return nil, err
	}
	if r.findByTitleLocked(draft.SpaceKey, draft.Title) != nil {
		return nil, fmt.Errorf("title %q already used in space %s: %w",
			draft.Title, draft.SpaceKey, domain.ErrPermanent)
	}

	id := strconv.Itoa(r.nextID)
	r.nextID++
	st := &pageState{
		page: domain.Page{
			ID:       id,
			Title:    draft.Title,
			ParentID: draft.ParentID,
			SpaceKey: draft.SpaceKey,
			Version:  1,
			Body:     draft.Body,
		},
		properties: make(map[string]map[string]any),
	}
	r.pages[id] = st
	r.stats.Creates++
	return r.copyPageLocked(st), nil
}

// UpdatePage rewrites a page conditionally on baseVersion.
func (r *Remote) UpdatePage(_ context.Context, id string, draft domain.PageDraft, baseVersion int) (*domain.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failures["UpdatePage"]; err != nil {
		return nil, err
	}
	st, ok := r.pages[id]
	if !ok {
		return nil, fmt.Errorf("page %s: %w", id, domain.ErrNotFound)
	}
	if st.page.Version != baseVersion {
		return nil, fmt.Errorf("page %s at version %d, update based on %d: %w",
			id, st.page.Version, baseVersion, domain.ErrConflict)
	}
	if other := r.findByTitleLocked(draft.SpaceKey, draft.Title); other != nil && other.page.ID != id {
		return nil, fmt.Errorf("title %q already used in space %s: %w",
			draft.Title, draft.SpaceKey, domain.ErrPermanent)
	}

	st.page.Title = draft.Title
	st.page.ParentID = draft.ParentID
	st.page.Body = draft.Body
	st.page.Version++
	r.stats.Updates++
	return r.copyPageLocked(st), nil
}

// DeletePage removes a page.
func (r *Remote) DeletePage(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failures["DeletePage"]; err != nil {
		return err
	}
	if _, ok := r.pages[id]; !ok {
		return fmt.Errorf("page %s: %w", id, domain.ErrNotFound)
	}
	delete(r.pages, id)
	r.stats.Deletes++
	return nil
}

// GetProperty reads a content property value.
func (r *Remote) GetProperty(_ context.Context, pageID, key string) (map[string]any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.failures["GetProperty"]; err != nil {
		return nil, err
	}
	st, ok := r.pages[pageID]
	if !ok {
		return nil, fmt.Errorf("page %s: %w", pageID, domain.ErrNotFound)
	}
	value, ok := st.properties[key]
	if !ok {
		return nil, fmt.Errorf("property %s on page %s: %w", key, pageID, domain.ErrNotFound)
	}
	return copyValue(value), nil
}

// SetProperty writes a content property.
func (r *Remote) SetProperty(_ context.Context, pageID, key string, value map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failures["SetProperty"]; err != nil {
		return err
	}
	st, ok := r.pages[pageID]
	if !ok {
		return fmt.Errorf("page %s: %w", pageID, domain.ErrNotFound)
	}
	st.properties[key] = copyValue(value)
	r.stats.PropertyWrites++
	return nil
}

// GetLabels lists a page's labels.
func (r *Remote) GetLabels(_ context.Context, pageID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.failures["GetLabels"]; err != nil {
		return nil, err
	}
	st, ok := r.pages[pageID]
	if !ok {
		return nil, fmt.Errorf("page %s: %w", pageID, domain.ErrNotFound)
	}
	return append([]string{}, st.labels...), nil
}

// AddLabels attaches labels, keeping existing ones.
func (r *Remote) AddLabels(_ context.Context, pageID string, labels []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failures["AddLabels"]; err != nil {
		return err
	}
	st, ok := r.pages[pageID]
	if !ok {
		return fmt.Errorf("page %s: %w", pageID, domain.ErrNotFound)
	}
	for _, label := range labels {
		if !containsString(st.labels, label) {
			st.labels = append(st.labels, label)
		}
	}
	r.stats.LabelAdds++
	return nil
}

// RemoveLabel detaches one label.
func (r *Remote) RemoveLabel(_ context.Context, pageID, label string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failures["RemoveLabel"]; err != nil {
		return err
	}
	st, ok := r.pages[pageID]
	if !ok {
		return fmt.Errorf("page %s: %w", pageID, domain.ErrNotFound)
	}
	for i, l := range st.labels {
		if l == label {
			st.labels = append(st.labels[:i], st.labels[i+1:]...)
			r.stats.LabelRemoves++
			return nil
		}
	}
	return fmt.Errorf("label %q on page %s: %w", label, pageID, domain.ErrNotFound)
}

// SearchManaged returns labelled pages under the root, identity
// properties included, ordered by page ID.
func (r *Remote) SearchManaged(_ context.Context, rootID, label string) ([]domain.ManagedPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failures["SearchManaged"]; err != nil {
		return nil, err
	}
	r.stats.Searches++

	var hits []domain.ManagedPage
	for _, st := range r.pages {
		if !containsString(st.labels, label) {
			continue
		}
		if !r.hasAncestorLocked(st, rootID) {
			continue
		}
		hits = append(hits, r.managedHitLocked(st))
	}
	sortManaged(hits)
	return hits, nil
}

// FindByLabel returns labelled pages anywhere in the space.
func (r *Remote) FindByLabel(_ context.Context, label string) ([]domain.ManagedPage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.failures["FindByLabel"]; err != nil {
		return nil, err
	}

	var hits []domain.ManagedPage
	for _, st := range r.pages {
		if containsString(st.labels, label) {
			hits = append(hits, r.managedHitLocked(st))
		}
	}
	sortManaged(hits)
	return hits, nil
}

// FindByTitle looks a page up by exact title within a space.
func (r *Remote) FindByTitle(_ context.Context, spaceKey, title string) (*domain.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.failures["FindByTitle"]; err != nil {
		return nil, err
	}
	st := r.findByTitleLocked(spaceKey, title)
	if st == nil {
		return nil, fmt.Errorf("title %q in space %s: %w", title, spaceKey, domain.ErrNotFound)
	}
	return r.copyPageLocked(st), nil
}

// findByTitleLocked scans for a title within a space.
func (r *Remote) findByTitleLocked(spaceKey, title string) *pageState {
	for _, st := range r.pages {
		if st.page.SpaceKey == spaceKey && st.page.Title == title {
			return st
		}
	}
	return nil
}

// managedHitLocked builds a search hit, preferring the current
// identity property key over the legacy one.
func (r *Remote) managedHitLocked(st *pageState) domain.ManagedPage {
	prop, ok := st.properties[domain.PropertyKey]
	if !ok {
		prop = st.properties[domain.LegacyPropertyKey]
	}
	var value map[string]any
	if prop != nil {
		value = copyValue(prop)
	}
	return domain.ManagedPage{ID: st.page.ID, Title: st.page.Title, Property: value}
}

// hasAncestorLocked walks the parent chain looking for rootID.
func (r *Remote) hasAncestorLocked(st *pageState, rootID string) bool {
	seen := map[string]bool{}
	for cur := st.page.ParentID; cur != "" && !seen[cur]; {
		if cur == rootID {
			return true
		}
		seen[cur] = true
		parent, ok := r.pages[cur]
		if !ok {
			return false
		}
		cur = parent.page.ParentID
	}
	return false
}

// copyPageLocked copies page state into a caller-owned Page with its
// ancestor chain filled in, root first.
func (r *Remote) copyPageLocked(st *pageState) *domain.Page {
	page := st.page

	var ancestors []string
	seen := map[string]bool{}
	for cur := st.page.ParentID; cur != "" && !seen[cur]; {
		ancestors = append([]string{cur}, ancestors...)
		seen[cur] = true
		parent, ok := r.pages[cur]
		if !ok {
			break
		}
		cur = parent.page.ParentID
	}
	page.AncestorIDs = ancestors
	return &page
}

func sortManaged(hits []domain.ManagedPage) {
	sort.Slice(hits, func(i, j int) bool { return hits[i].ID < hits[j].ID })
}

func copyValue(value map[string]any) map[string]any {
	out := make(map[string]any, len(value))
	for k, v := range value {
		out[k] = v
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
