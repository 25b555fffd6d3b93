package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treeline-labs/confsync-cli/internal/adapters/driven/memory"
	"github.com/treeline-labs/confsync-cli/internal/core/domain"
)

func newJanitorFixture() (*JanitorService, *memory.Remote) {
	cfg := domain.Config{
		BaseURL:    "https://wiki.example.com/wiki",
		SpaceKey:   "DOCS",
		RootPageID: "100",
		Token:      "token",
		DocRoot:    "docs",
	}.WithDefaults()
	remote := memory.NewRemote()
	remote.SeedPage("100", "DOCS", "", "Docs Home", "")
	return NewJanitorService(remote, cfg), remote
}

// TestJanitor_List tests scoping to the managed set
func TestJanitor_List(t *testing.T) {
	j, remote := newJanitorFixture()
	seedManagedPage(remote, "2001", "Overview", "file:overview.md", "aaa")
	seedManagedPage(remote, "2002", "Setup", "file:setup.md", "bbb")
	remote.SeedPage("2003", "DOCS", "100", "Hand-written", "")

	pages, err := j.List(context.Background())
	require.NoError(t, err)

	require.Len(t, pages, 2)
	assert.Equal(t, "2001", pages[0].ID)
	assert.Equal(t, "2002", pages[1].ID)
}

// TestJanitor_Purge tests deletion of the managed set only
func TestJanitor_Purge(t *testing.T) {
	j, remote := newJanitorFixture()
	seedManagedPage(remote, "2001", "Overview", "file:overview.md", "aaa")
	seedManagedPage(remote, "2002", "Setup", "file:setup.md", "bbb")
	remote.SeedPage("2003", "DOCS", "100", "Hand-written", "")

	deleted, err := j.Purge(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, deleted)
	_, ok := remote.Page("2001")
	assert.False(t, ok)
	_, ok = remote.Page("2003")
	assert.True(t, ok, "unmanaged pages stay")
	_, ok = remote.Page("100")
	assert.True(t, ok, "the root page stays")
}

// TestJanitor_PurgeToleratesVanishedPages tests pages cascading away mid-purge
func TestJanitor_PurgeToleratesVanishedPages(t *testing.T) {
	j, remote := newJanitorFixture()
	seedManagedPage(remote, "2001", "Overview", "file:overview.md", "aaa")
	seedManagedPage(remote, "2002", "Setup", "file:setup.md", "bbb")
	remote.SetFailure("DeletePage", domain.ErrNotFound)

	deleted, err := j.Purge(context.Background())

	require.NoError(t, err, "pages already gone are not failures")
	assert.Equal(t, 2, deleted)
}

// TestJanitor_PurgeCollectsFailures tests that one failure does not stop the sweep
func TestJanitor_PurgeCollectsFailures(t *testing.T) {
	j, remote := newJanitorFixture()
	seedManagedPage(remote, "2001", "Overview", "file:overview.md", "aaa")
	seedManagedPage(remote, "2002", "Setup", "file:setup.md", "bbb")
	remote.SetFailure("DeletePage", domain.ErrTransient)

	deleted, err := j.Purge(context.Background())

	require.Error(t, err)
	assert.Zero(t, deleted)
	assert.ErrorIs(t, err, domain.ErrTransient)
}
