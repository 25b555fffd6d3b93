package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/treeline-labs/confsync-cli/internal/core/domain"
)

// searchLimit is the window size for paginated CQL searches.
const searchLimit = 200

// SearchManaged returns every page under the root carrying the managed
// label, each with its identity property attached.
func (c *Client) SearchManaged(ctx context.Context, rootID, label string) ([]domain.ManagedPage, error) {
	cql := fmt.Sprintf("ancestor=%s and type=page and label=%q", rootID, label)
	hits, err := c.searchCQL(ctx, cql)
	if err != nil {
		return nil, fmt.Errorf("search managed pages under %s: %w", rootID, err)
	}
	return c.attachProperties(ctx, hits)
}

// FindByLabel returns every page in the space carrying the given label,
// each with its identity property attached.
func (c *Client) FindByLabel(ctx context.Context, label string) ([]domain.ManagedPage, error) {
	cql := fmt.Sprintf("space=%q and type=page and label=%q", c.space, label)
	hits, err := c.searchCQL(ctx, cql)
	if err != nil {
		return nil, fmt.Errorf("search pages labelled %q: %w", label, err)
	}
	return c.attachProperties(ctx, hits)
}

// searchCQL runs a CQL query and collects every matching content entry,
// advancing the paging window until a short page arrives.
func (c *Client) searchCQL(ctx context.Context, cql string) ([]content, error) {
	var all []content
	for start := 0; ; start += searchLimit {
		q := url.Values{}
		q.Set("cql", cql)
		q.Set("limit", strconv.Itoa(searchLimit))
		q.Set("start", strconv.Itoa(start))
		body, err := c.do(ctx, http.MethodGet, c.base+"/content/search?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}

		var page searchPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode search response: %w", err)
		}
		all = append(all, page.Results...)
		if len(page.Results) < searchLimit {
			return all, nil
		}
	}
}

// attachProperties loads the identity property for each hit. The
// current key is preferred; pages written by earlier tooling may only
// carry the legacy key.
func (c *Client) attachProperties(ctx context.Context, hits []content) ([]domain.ManagedPage, error) {
	pages := make([]domain.ManagedPage, 0, len(hits))
	for _, hit := range hits {
		mp := domain.ManagedPage{ID: hit.ID, Title: hit.Title}
		value, err := c.GetProperty(ctx, hit.ID, domain.PropertyKey)
		if domain.IsNotFound(err) {
			value, err = c.GetProperty(ctx, hit.ID, domain.LegacyPropertyKey)
		}
		switch {
		case domain.IsNotFound(err):
			// No identity property at all. The migrator decides what
			// happens to such a page.
		case err != nil:
			return nil, err
		default:
			mp.Property = value
		}
		pages = append(pages, mp)
	}
	return pages, nil
}
