package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/treeline-labs/confsync-cli/internal/core/domain"
)

// pageExpand lists the content expansions every page read asks for.
const pageExpand = "version,space,ancestors"

// GetPage retrieves a page with its storage body.
func (c *Client) GetPage(ctx context.Context, id string) (*domain.Page, error) {
	q := url.Values{}
	q.Set("expand", pageExpand+",body.storage")
	body, err := c.do(ctx, http.MethodGet, c.base+"/content/"+url.PathEscape(id)+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("get page %s: %w", id, err)
	}

	var ct content
	if err := json.Unmarshal(body, &ct); err != nil {
		return nil, fmt.Errorf("get page %s: decode response: %w", id, err)
	}
	return ct.page(), nil
}

// CreatePage creates a page under the draft's parent and returns the
// created remote state.
func (c *Client) CreatePage(ctx context.Context, draft domain.PageDraft) (*domain.Page, error) {
	respBody, err := c.do(ctx, http.MethodPost, c.base+"/content", c.draftPayload("", draft, nil))
	if err != nil {
		return nil, fmt.Errorf("create page %q: %w", draft.Title, err)
	}

	var ct content
	if err := json.Unmarshal(respBody, &ct); err != nil {
		return nil, fmt.Errorf("create page %q: decode response: %w", draft.Title, err)
	}
	return ct.page(), nil
}

// UpdatePage rewrites a page conditionally on baseVersion. The server
// accepts an update only when the sent version number is exactly one
// above the stored one, which makes the PUT a compare-and-swap on
// baseVersion: a stale caller gets a conflict and writes nothing.
func (c *Client) UpdatePage(ctx context.Context, id string, draft domain.PageDraft, baseVersion int) (*domain.Page, error) {
	payload := c.draftPayload(id, draft, &versionRef{Number: baseVersion + 1})
	respBody, err := c.do(ctx, http.MethodPut, c.base+"/content/"+url.PathEscape(id), payload)
	if err != nil {
		return nil, fmt.Errorf("update page %s: %w", id, err)
	}

	var ct content
	if err := json.Unmarshal(respBody, &ct); err != nil {
		return nil, fmt.Errorf("update page %s: decode response: %w", id, err)
	}
	return ct.page(), nil
}

// DeletePage removes a page.
func (c *Client) DeletePage(ctx context.Context, id string) error {
	if _, err := c.do(ctx, http.MethodDelete, c.base+"/content/"+url.PathEscape(id), nil); err != nil {
		return fmt.Errorf("delete page %s: %w", id, err)
	}
	return nil
}

// FindByTitle looks a page up by exact title within a space. Titles are
// unique per space, so at most one result exists.
func (c *Client) FindByTitle(ctx context.Context, spaceKey, title string) (*domain.Page, error) {
	q := url.Values{}
	q.Set("spaceKey", spaceKey)
	q.Set("title", title)
	q.Set("type", "page")
	q.Set("limit", "1")
	q.Set("expand", pageExpand)
	body, err := c.do(ctx, http.MethodGet, c.base+"/content?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("find page %q in %s: %w", title, spaceKey, err)
	}

	var page searchPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("find page %q in %s: decode response: %w", title, spaceKey, err)
	}
	if len(page.Results) == 0 {
		return nil, fmt.Errorf("page %q in space %s: %w", title, spaceKey, domain.ErrNotFound)
	}
	return page.Results[0].page(), nil
}

// draftPayload assembles the write shape for a draft. The client's
// space key fills in when the draft leaves it empty.
func (c *Client) draftPayload(id string, draft domain.PageDraft, version *versionRef) contentPayload {
	space := draft.SpaceKey
	if space == "" {
		space = c.space
	}
	payload := contentPayload{
		ID:    id,
		Type:  "page",
		Title: draft.Title,
		Space: spaceRef{Key: space},
		Body: contentBody{
			Storage: &storagePayload{Value: draft.Body, Representation: "storage"},
		},
		Version: version,
	}
	if draft.ParentID != "" {
		payload.Ancestors = []ancestorRef{{ID: draft.ParentID}}
	}
	return payload
}
