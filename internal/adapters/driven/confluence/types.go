package confluence

import "github.com/treeline-labs/confsync-cli/internal/core/domain"

// Wire shapes of the content REST API. Only the fields the engine reads
// are declared.

type content struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Space     *spaceRef     `json:"space,omitempty"`
	Version   *versionRef   `json:"version,omitempty"`
	Ancestors []ancestorRef `json:"ancestors,omitempty"`
	Body      *contentBody  `json:"body,omitempty"`
}

// contentPayload is the write shape shared by create and update calls.
type contentPayload struct {
	ID        string        `json:"id,omitempty"`
	Type      string        `json:"type"`
	Title     string        `json:"title"`
	Space     spaceRef      `json:"space"`
	Ancestors []ancestorRef `json:"ancestors,omitempty"`
	Body      contentBody   `json:"body"`
	Version   *versionRef   `json:"version,omitempty"`
}

type spaceRef struct {
	Key string `json:"key"`
}

type versionRef struct {
	Number int `json:"number"`
}

type ancestorRef struct {
	ID string `json:"id"`
}

type contentBody struct {
	Storage *storagePayload `json:"storage,omitempty"`
}

type storagePayload struct {
	Value          string `json:"value"`
	Representation string `json:"representation"`
}

type propertyPayload struct {
	Key     string         `json:"key"`
	Value   map[string]any `json:"value"`
	Version *versionRef    `json:"version,omitempty"`
}

type labelPayload struct {
	Prefix string `json:"prefix,omitempty"`
	Name   string `json:"name"`
}

type searchPage struct {
	Results []content `json:"results"`
	Start   int       `json:"start,omitempty"`
	Limit   int       `json:"limit,omitempty"`
	Size    int       `json:"size,omitempty"`
}

// page converts the wire shape into the domain view. Ancestors arrive
// root first, so the parent is the last entry.
func (ct *content) page() *domain.Page {
	p := &domain.Page{ID: ct.ID, Title: ct.Title}
	if ct.Space != nil {
		p.SpaceKey = ct.Space.Key
	}
	if ct.Version != nil {
		p.Version = ct.Version.Number
	}
	for _, a := range ct.Ancestors {
		p.AncestorIDs = append(p.AncestorIDs, a.ID)
	}
	if n := len(ct.Ancestors); n > 0 {
		p.ParentID = ct.Ancestors[n-1].ID
	}
	if ct.Body != nil && ct.Body.Storage != nil {
		p.Body = ct.Body.Storage.Value
	}
	return p
}
