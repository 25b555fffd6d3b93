package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/treeline-labs/confsync-cli/internal/core/domain"
	"github.com/treeline-labs/confsync-cli/internal/core/ports/driven"
)

// Ensure dryRemote implements the interface.
var _ driven.Remote = (*dryRemote)(nil)

// dryRemote wraps a live remote so a dry run can exercise the whole
// publish pipeline. Writes land in an in-memory overlay; reads consult
// the overlay first and fall through to the wrapped remote. The wiki
// itself is never modified.
type dryRemote struct {
	real driven.Remote

	mu      sync.Mutex
	nextID  int
	pages   map[string]*dryPage
	titles  map[string]string
	deleted map[string]bool
}

// dryPage is the overlay state of one page. For pages that exist on
// the real remote, nil property and label maps mean "not overridden,
// read through". Pages born in the overlay never read through.
type dryPage struct {
	page       domain.Page
	properties map[string]map[string]any
	labels     []string
	born       bool
}

// newDryRemote wraps real with a write-absorbing overlay.
func newDryRemote(real driven.Remote) *dryRemote {
	return &dryRemote{
		real:    real,
		nextID:  1,
		pages:   make(map[string]*dryPage),
		titles:  make(map[string]string),
		deleted: make(map[string]bool),
	}
}

func titleKey(spaceKey, title string) string {
	return spaceKey + "\x00" + title
}

// materializeLocked pulls a real page into the overlay so it can be
// written. No-op when the page is already there.
func (d *dryRemote) materializeLocked(ctx context.Context, id string) (*dryPage, error) {
	if dp, ok := d.pages[id]; ok {
		return dp, nil
	}
	page, err := d.real.GetPage(ctx, id)
	if err != nil {
		return nil, err
	}
	dp := &dryPage{page: *page}
	d.pages[id] = dp
	d.titles[titleKey(page.SpaceKey, page.Title)] = id
	return dp, nil
}

func (d *dryRemote) GetPage(ctx context.Context, id string) (*domain.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.deleted[id] {
		return nil, fmt.Errorf("page %s: %w", id, domain.ErrNotFound)
	}
	if dp, ok := d.pages[id]; ok {
		page := dp.page
		return &page, nil
	}
	return d.real.GetPage(ctx, id)
}

func (d *dryRemote) CreatePage(ctx context.Context, draft domain.PageDraft) (*domain.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ancestors := []string{draft.ParentID}
	if parent, ok := d.pages[draft.ParentID]; ok {
		ancestors = append(append([]string{}, parent.page.AncestorIDs...), draft.ParentID)
	}

	id := fmt.Sprintf("dry-%d", d.nextID)
	d.nextID++
	dp := &dryPage{
		page: domain.Page{
			ID:          id,
			Title:       draft.Title,
			ParentID:    draft.ParentID,
			SpaceKey:    draft.SpaceKey,
			Version:     1,
			AncestorIDs: ancestors,
			Body:        draft.Body,
		},
		born: true,
	}
	d.pages[id] = dp
	d.titles[titleKey(draft.SpaceKey, draft.Title)] = id

	page := dp.page
	return &page, nil
}

func (d *dryRemote) UpdatePage(ctx context.Context, id string, draft domain.PageDraft, baseVersion int) (*domain.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	dp, err := d.materializeLocked(ctx, id)
	if err != nil {
		return nil, err
	}
	if dp.page.Version != baseVersion {
		return nil, fmt.Errorf("page %s at version %d, update against %d: %w",
			id, dp.page.Version, baseVersion, domain.ErrConflict)
	}

	if dp.page.Title != draft.Title {
		delete(d.titles, titleKey(dp.page.SpaceKey, dp.page.Title))
		d.titles[titleKey(dp.page.SpaceKey, draft.Title)] = id
	}
	dp.page.Title = draft.Title
	dp.page.ParentID = draft.ParentID
	dp.page.Body = draft.Body
	dp.page.Version++

	page := dp.page
	return &page, nil
}

func (d *dryRemote) DeletePage(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if dp, ok := d.pages[id]; ok {
		delete(d.titles, titleKey(dp.page.SpaceKey, dp.page.Title))
		delete(d.pages, id)
	}
	d.deleted[id] = true
	return nil
}

func (d *dryRemote) GetProperty(ctx context.Context, pageID, key string) (map[string]any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if dp, ok := d.pages[pageID]; ok {
		if value, set := dp.properties[key]; set {
			return value, nil
		}
		if dp.born {
			return nil, fmt.Errorf("property %s on page %s: %w", key, pageID, domain.ErrNotFound)
		}
	}
	return d.real.GetProperty(ctx, pageID, key)
}

func (d *dryRemote) SetProperty(ctx context.Context, pageID, key string, value map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	dp, err := d.materializeLocked(ctx, pageID)
	if err != nil {
		return err
	}
	if dp.properties == nil {
		dp.properties = make(map[string]map[string]any)
	}
	dp.properties[key] = value
	return nil
}

func (d *dryRemote) GetLabels(ctx context.Context, pageID string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.labelsLocked(ctx, pageID)
}

// labelsLocked returns the effective labels of a page, reading through
// to the real remote when the overlay has not overridden them.
func (d *dryRemote) labelsLocked(ctx context.Context, pageID string) ([]string, error) {
	if dp, ok := d.pages[pageID]; ok {
		if dp.labels != nil || dp.born {
			return append([]string{}, dp.labels...), nil
		}
	}
	return d.real.GetLabels(ctx, pageID)
}

func (d *dryRemote) AddLabels(ctx context.Context, pageID string, labels []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	current, err := d.labelsLocked(ctx, pageID)
	if err != nil {
		return err
	}
	dp, err := d.materializeLocked(ctx, pageID)
	if err != nil {
		return err
	}
	dp.labels = domain.SanitizeLabels(append(current, labels...))
	return nil
}

func (d *dryRemote) RemoveLabel(ctx context.Context, pageID, label string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	current, err := d.labelsLocked(ctx, pageID)
	if err != nil {
		return err
	}
	kept := current[:0:0]
	found := false
	for _, l := range current {
		if l == label {
			found = true
			continue
		}
		kept = append(kept, l)
	}
	if !found {
		return fmt.Errorf("label %q on page %s: %w", label, pageID, domain.ErrNotFound)
	}
	dp, err := d.materializeLocked(ctx, pageID)
	if err != nil {
		return err
	}
	if kept == nil {
		kept = []string{}
	}
	dp.labels = kept
	return nil
}

// SearchManaged passes through: the bootstrap search runs before the
// overlay sees any write.
func (d *dryRemote) SearchManaged(ctx context.Context, rootID, label string) ([]domain.ManagedPage, error) {
	return d.real.SearchManaged(ctx, rootID, label)
}

// FindByLabel passes through: legacy key labels are never added by
// this tool, so the overlay cannot hold a match the remote lacks.
func (d *dryRemote) FindByLabel(ctx context.Context, label string) ([]domain.ManagedPage, error) {
	return d.real.FindByLabel(ctx, label)
}

func (d *dryRemote) FindByTitle(ctx context.Context, spaceKey, title string) (*domain.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if id, ok := d.titles[titleKey(spaceKey, title)]; ok {
		if dp, exists := d.pages[id]; exists && dp.page.Title == title {
			page := dp.page
			return &page, nil
		}
	}

	page, err := d.real.FindByTitle(ctx, spaceKey, title)
	if err != nil {
		return nil, err
	}
	if d.deleted[page.ID] {
		return nil, fmt.Errorf("title %q in space %s: %w", title, spaceKey, domain.ErrNotFound)
	}
	if dp, ok := d.pages[page.ID]; ok && dp.page.Title != title {
		return nil, fmt.Errorf("title %q in space %s: %w", title, spaceKey, domain.ErrNotFound)
	}
	return page, nil
}
