package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treeline-labs/confsync-cli/internal/adapters/driven/memory"
	"github.com/treeline-labs/confsync-cli/internal/core/domain"
)

func seedManagedPage(r *memory.Remote, id, title, key, hash string) {
	r.SeedPage(id, "DOCS", "100", title, "<p>body</p>")
	r.SeedLabels(id, "managed-docs")
	r.SeedProperty(id, domain.PropertyKey, map[string]any{
		"key": key, "classifier": "md", "hash": hash, "title": title,
	})
}

// TestIdentityIndex_Bootstrap tests seeding from the managed search
func TestIdentityIndex_Bootstrap(t *testing.T) {
	r := memory.NewRemote()
	r.SeedPage("100", "DOCS", "", "Root", "")
	seedManagedPage(r, "1001", "Setup", "file:guides/setup.md", "aaa")
	seedManagedPage(r, "1002", "Overview", "file:overview.md", "bbb")

	// A managed page without identity is visible but not bound.
	r.SeedPage("1003", "DOCS", "100", "Loose", "")
	r.SeedLabels("1003", "managed-docs")

	idx := NewIdentityIndex(r)
	require.NoError(t, idx.Bootstrap(context.Background(), "100", "managed-docs"))

	id, ok := idx.Resolve(domain.NewFileKey("guides/setup.md"))
	require.True(t, ok)
	assert.Equal(t, "1001", id)

	id, ok = idx.ResolvePath("overview.md")
	require.True(t, ok)
	assert.Equal(t, "1002", id)

	_, ok = idx.Resolve(domain.NewFileKey("missing.md"))
	assert.False(t, ok)
}

// TestIdentityIndex_BootstrapDuplicateKey tests conflict marking
func TestIdentityIndex_BootstrapDuplicateKey(t *testing.T) {
	r := memory.NewRemote()
	r.SeedPage("100", "DOCS", "", "Root", "")
	seedManagedPage(r, "1001", "Copy A", "file:a.md", "aaa")
	seedManagedPage(r, "1002", "Copy B", "file:a.md", "aaa")

	idx := NewIdentityIndex(r)
	require.NoError(t, idx.Bootstrap(context.Background(), "100", "managed-docs"))

	err := idx.ConflictFor(domain.NewFileKey("a.md"))
	require.Error(t, err)
	assert.True(t, domain.IsIdentityConflict(err))
}

// TestIdentityIndex_Claim tests bijection enforcement at claim time
func TestIdentityIndex_Claim(t *testing.T) {
	r := memory.NewRemote()
	r.SeedPage("100", "DOCS", "", "Root", "")
	seedManagedPage(r, "1001", "Setup", "file:a.md", "aaa")

	idx := NewIdentityIndex(r)
	require.NoError(t, idx.Bootstrap(context.Background(), "100", "managed-docs"))

	// Re-claiming the established binding is fine.
	require.NoError(t, idx.Claim(domain.NewFileKey("a.md"), "1001"))

	// A second key claiming the same page is refused.
	err := idx.Claim(domain.NewFileKey("b.md"), "1001")
	require.Error(t, err)
	assert.True(t, domain.IsIdentityConflict(err))

	var conflict *domain.IdentityConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "1001", conflict.PageID)
	assert.Equal(t, domain.NewFileKey("a.md"), conflict.ExistingKey)
	assert.Equal(t, domain.NewFileKey("b.md"), conflict.NewKey)

	// A key already bound elsewhere cannot claim a second page.
	err = idx.Claim(domain.NewFileKey("a.md"), "2002")
	require.Error(t, err)
	assert.True(t, domain.IsIdentityConflict(err))
}

// TestIdentityIndex_CommitIdempotent tests that unchanged state writes nothing
func TestIdentityIndex_CommitIdempotent(t *testing.T) {
	r := memory.NewRemote()
	r.SeedPage("100", "DOCS", "", "Root", "")
	r.SeedPage("1001", "DOCS", "100", "Setup", "")

	idx := NewIdentityIndex(r)
	ident := domain.PageIdentity{
		Key: domain.NewFileKey("a.md"), PageID: "1001",
		Classifier: domain.ClassifierDoc, ContentHash: "aaa", Title: "Setup",
	}

	ctx := context.Background()
	require.NoError(t, idx.Commit(ctx, ident))
	assert.Equal(t, 1, r.Stats().PropertyWrites)

	// Same state again: no write.
	require.NoError(t, idx.Commit(ctx, ident))
	assert.Equal(t, 1, r.Stats().PropertyWrites)

	// Changed hash: one more write.
	ident.ContentHash = "bbb"
	require.NoError(t, idx.Commit(ctx, ident))
	assert.Equal(t, 2, r.Stats().PropertyWrites)

	value, ok := r.Property("1001", domain.PropertyKey)
	require.True(t, ok)
	assert.Equal(t, "file:a.md", value["key"])
	assert.Equal(t, "bbb", value["hash"])
}

// TestIdentityIndex_Rekey tests rename re-keying in place
func TestIdentityIndex_Rekey(t *testing.T) {
	r := memory.NewRemote()
	r.SeedPage("100", "DOCS", "", "Root", "")
	seedManagedPage(r, "1001", "Setup", "file:a.md", "aaa")

	idx := NewIdentityIndex(r)
	ctx := context.Background()
	require.NoError(t, idx.Bootstrap(ctx, "100", "managed-docs"))

	oldKey := domain.NewFileKey("a.md")
	newKey := domain.NewFileKey("b.md")

	ident, err := idx.Rekey(ctx, oldKey, newKey)
	require.NoError(t, err)
	assert.Equal(t, "1001", ident.PageID)
	assert.Equal(t, newKey, ident.Key)
	assert.Equal(t, "aaa", ident.ContentHash)

	// Old key gone, new key resolves to the same page.
	_, ok := idx.Resolve(oldKey)
	assert.False(t, ok)
	id, ok := idx.Resolve(newKey)
	require.True(t, ok)
	assert.Equal(t, "1001", id)

	// Path map follows the key.
	_, ok = idx.ResolvePath("a.md")
	assert.False(t, ok)
	id, ok = idx.ResolvePath("b.md")
	require.True(t, ok)
	assert.Equal(t, "1001", id)

	// The property on the page now carries the new key.
	value, ok := r.Property("1001", domain.PropertyKey)
	require.True(t, ok)
	assert.Equal(t, "file:b.md", value["key"])
}

// TestIdentityIndex_RekeyMissing tests re-keying an unknown key
func TestIdentityIndex_RekeyMissing(t *testing.T) {
	idx := NewIdentityIndex(memory.NewRemote())

	_, err := idx.Rekey(context.Background(), domain.NewFileKey("a.md"), domain.NewFileKey("b.md"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// TestIdentityIndex_RekeyOntoBoundKey tests refusal when the new key is taken
func TestIdentityIndex_RekeyOntoBoundKey(t *testing.T) {
	r := memory.NewRemote()
	r.SeedPage("100", "DOCS", "", "Root", "")
	seedManagedPage(r, "1001", "Page A", "file:a.md", "aaa")
	seedManagedPage(r, "1002", "Page B", "file:b.md", "bbb")

	idx := NewIdentityIndex(r)
	ctx := context.Background()
	require.NoError(t, idx.Bootstrap(ctx, "100", "managed-docs"))

	_, err := idx.Rekey(ctx, domain.NewFileKey("a.md"), domain.NewFileKey("b.md"))
	require.Error(t, err)
	assert.True(t, domain.IsIdentityConflict(err))

	// Neither binding was disturbed.
	id, ok := idx.Resolve(domain.NewFileKey("a.md"))
	require.True(t, ok)
	assert.Equal(t, "1001", id)
	id, ok = idx.Resolve(domain.NewFileKey("b.md"))
	require.True(t, ok)
	assert.Equal(t, "1002", id)
}

// TestIdentityIndex_BootstrapLegacyProperty tests reading the legacy property key
func TestIdentityIndex_BootstrapLegacyProperty(t *testing.T) {
	r := memory.NewRemote()
	r.SeedPage("100", "DOCS", "", "Root", "")
	r.SeedPage("1001", "DOCS", "100", "Old Page", "")
	r.SeedLabels("1001", "managed-docs")
	r.SeedProperty("1001", domain.LegacyPropertyKey, map[string]any{
		"key": "file:old.md", "classifier": "md", "hash": "ccc", "title": "Old Page",
	})

	idx := NewIdentityIndex(r)
	require.NoError(t, idx.Bootstrap(context.Background(), "100", "managed-docs"))

	id, ok := idx.Resolve(domain.NewFileKey("old.md"))
	require.True(t, ok)
	assert.Equal(t, "1001", id)
}
