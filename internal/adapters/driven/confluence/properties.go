package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/treeline-labs/confsync-cli/internal/core/domain"
)

// GetProperty reads a content property value from a page.
func (c *Client) GetProperty(ctx context.Context, pageID, key string) (map[string]any, error) {
	body, err := c.do(ctx, http.MethodGet, c.propertyURL(pageID, key), nil)
	if err != nil {
		return nil, fmt.Errorf("get property %s of page %s: %w", key, pageID, err)
	}

	var prop propertyPayload
	if err := json.Unmarshal(body, &prop); err != nil {
		return nil, fmt.Errorf("get property %s of page %s: decode response: %w", key, pageID, err)
	}
	return prop.Value, nil
}

// SetProperty writes a content property. Properties are versioned like
// pages, so replacing one requires reading its current version first;
// a missing property is created instead.
func (c *Client) SetProperty(ctx context.Context, pageID, key string, value map[string]any) error {
	propURL := c.propertyURL(pageID, key)
	body, err := c.do(ctx, http.MethodGet, propURL, nil)
	switch {
	case domain.IsNotFound(err):
		payload := propertyPayload{Key: key, Value: value}
		if _, err := c.do(ctx, http.MethodPost, propURL, payload); err != nil {
			return fmt.Errorf("create property %s on page %s: %w", key, pageID, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("read property %s on page %s: %w", key, pageID, err)
	}

	var current propertyPayload
	if err := json.Unmarshal(body, &current); err != nil {
		return fmt.Errorf("read property %s on page %s: decode response: %w", key, pageID, err)
	}
	next := 1
	if current.Version != nil {
		next = current.Version.Number + 1
	}
	payload := propertyPayload{Key: key, Value: value, Version: &versionRef{Number: next}}
	if _, err := c.do(ctx, http.MethodPut, propURL, payload); err != nil {
		return fmt.Errorf("update property %s on page %s: %w", key, pageID, err)
	}
	return nil
}

// GetLabels lists the visible labels on a page.
func (c *Client) GetLabels(ctx context.Context, pageID string) ([]string, error) {
	body, err := c.do(ctx, http.MethodGet, c.labelURL(pageID), nil)
	if err != nil {
		return nil, fmt.Errorf("get labels of page %s: %w", pageID, err)
	}

	var page struct {
		Results []labelPayload `json:"results"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("get labels of page %s: decode response: %w", pageID, err)
	}
	names := make([]string, 0, len(page.Results))
	for _, label := range page.Results {
		names = append(names, label.Name)
	}
	return names, nil
}

// AddLabels attaches labels to a page, keeping existing ones. The
// server lowercases label names on write; doing the same here keeps
// later comparisons against GetLabels results exact.
func (c *Client) AddLabels(ctx context.Context, pageID string, labels []string) error {
	payload := make([]labelPayload, 0, len(labels))
	for _, name := range labels {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		payload = append(payload, labelPayload{Prefix: "global", Name: name})
	}
	if len(payload) == 0 {
		return nil
	}

	if _, err := c.do(ctx, http.MethodPost, c.labelURL(pageID), payload); err != nil {
		return fmt.Errorf("add labels to page %s: %w", pageID, err)
	}
	return nil
}

// RemoveLabel detaches one label from a page. A label the page does not
// carry counts as removed.
func (c *Client) RemoveLabel(ctx context.Context, pageID, label string) error {
	q := url.Values{}
	q.Set("name", label)
	_, err := c.do(ctx, http.MethodDelete, c.labelURL(pageID)+"?"+q.Encode(), nil)
	if err != nil && !domain.IsNotFound(err) {
		return fmt.Errorf("remove label %q from page %s: %w", label, pageID, err)
	}
	return nil
}

func (c *Client) propertyURL(pageID, key string) string {
	return c.base + "/content/" + url.PathEscape(pageID) + "/property/" + url.PathEscape(key)
}

func (c *Client) labelURL(pageID string) string {
	return c.base + "/content/" + url.PathEscape(pageID) + "/label"
}
