package domain

// Page is the engine's view of a remote wiki page.
type Page struct {
	// ID is the remote page identifier.
	ID string

	// Title is the current page title. Unique within a space.
	Title string

	// ParentID is the page this one is filed under, empty at space root.
	ParentID string

	// SpaceKey is the space the page lives in.
	SpaceKey string

	// Version is the remote version number, incremented on every write.
	Version int

	// AncestorIDs are the IDs of the page's ancestors, root first.
	AncestorIDs []string

	// Body is the page body in storage format. Only populated when the
	// caller asked for it.
	Body string
}

// HasAncestor returns true if the page sits under the given ancestor.
func (p *Page) HasAncestor(id string) bool {
	for _, a := range p.AncestorIDs {
		if a == id {
			return true
		}
	}
	return false
}

// PageDraft describes the desired state of a page for a create or
// update call.
type PageDraft struct {
	// SpaceKey is the space to write into.
	SpaceKey string

	// ParentID is the page to file this one under.
	ParentID string

	// Title is the page title.
	Title string

	// Body is the page body in storage format.
	Body string
}

// ManagedPage is one hit of the managed-set search: a page carrying the
// managed label under the configured root, together with its identity
// property when present.
type ManagedPage struct {
	// ID is the remote page identifier.
	ID string

	// Title is the current page title.
	Title string

	// Property is the decoded identity property value, nil when the
	// page carries none.
	Property map[string]any
}
