package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treeline-labs/confsync-cli/internal/adapters/driven/memory"
	"github.com/treeline-labs/confsync-cli/internal/core/domain"
)

// stubRenderer is a line-oriented renderer for service tests. A few
// directives keep fixtures readable:
//
//	title: X      front-matter title
//	# X           leading heading
//	label: x      front-matter label
//	link: ./a.md  anchor with an unresolved link marker
//
// Anything else becomes a paragraph. The hash is the SHA-256 of the
// raw source, matching the real renderer.
type stubRenderer struct{}

func (stubRenderer) Render(_ context.Context, src []byte, _ string) (*domain.RenderResult, error) {
	res := &domain.RenderResult{Hash: rawHash(src)}
	var parts []string
	for _, line := range strings.Split(string(src), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case strings.HasPrefix(line, "title: "):
			res.Title = strings.TrimPrefix(line, "title: ")
		case strings.HasPrefix(line, "# ") && res.Heading == "":
			res.Heading = strings.TrimPrefix(line, "# ")
		case strings.HasPrefix(line, "label: "):
			res.Labels = append(res.Labels, strings.TrimPrefix(line, "label: "))
		case strings.HasPrefix(line, "link: "):
			href := strings.TrimPrefix(line, "link: ")
			res.Links = append(res.Links, href)
			parts = append(parts, `<p><a `+domain.LinkMarkerAttr+`="`+href+`" href="`+href+`">`+href+`</a></p>`)
		default:
			parts = append(parts, "<p>"+line+"</p>")
		}
	}
	res.Storage = strings.Join(parts, "")
	return res, nil
}

func (r stubRenderer) RenderDirectory(ctx context.Context, src []byte, relPath, placeholderTitle string) (*domain.RenderResult, error) {
	if src == nil {
		return &domain.RenderResult{Storage: "<p>" + placeholderTitle + "</p><ac:children/>"}, nil
	}
	res, err := r.Render(ctx, src, relPath)
	if err != nil {
		return nil, err
	}
	res.Storage += "<ac:children/>"
	return res, nil
}

func rawHash(src []byte) string {
	sum := sha256.Sum256(src)
	return hex.EncodeToString(sum[:])
}

// hierFixture wires a hierarchy over the in-memory remote with the
// root page seeded.
type hierFixture struct {
	remote  *memory.Remote
	idx     *IdentityIndex
	report  *reporter
	collect *pageCollector
	hier    *Hierarchy
}

func newHierFixture(ws *stubWorkspace, mutate func(*domain.Config)) *hierFixture {
	cfg := domain.Config{
		BaseURL:    "https://wiki.example.com/wiki",
		SpaceKey:   "DOCS",
		RootPageID: "100",
		Token:      "token",
		DocRoot:    "docs",
	}.WithDefaults()
	if mutate != nil {
		mutate(&cfg)
	}
	if ws == nil {
		ws = &stubWorkspace{}
	}

	remote := memory.NewRemote()
	remote.SeedPage("100", "DOCS", "", "Docs Home", "")
	idx := NewIdentityIndex(remote)
	report := newReporter()
	collect := newPageCollector()
	hier := NewHierarchy(remote, ws, stubRenderer{}, idx, NewMigrator(remote), report, collect, cfg)
	return &hierFixture{remote: remote, idx: idx, report: report, collect: collect, hier: hier}
}

// TestHierarchy_EnsureDirCreatesChain tests parent-first creation of nested directories
func TestHierarchy_EnsureDirCreatesChain(t *testing.T) {
	f := newHierFixture(nil, nil)

	id, err := f.hier.EnsureDir(context.Background(), "guides/advanced")
	require.NoError(t, err)

	assert.Equal(t, 2, f.remote.Stats().Creates)

	child, ok := f.remote.Page(id)
	require.True(t, ok)
	assert.Equal(t, "Advanced", child.Title)

	parent, ok := f.remote.Page(child.ParentID)
	require.True(t, ok)
	assert.Equal(t, "Guides", parent.Title)
	assert.Equal(t, "100", parent.ParentID)

	prop, ok := f.remote.Property(id, domain.PropertyKey)
	require.True(t, ok)
	assert.Equal(t, "dir:guides/advanced", prop["key"])
	assert.Equal(t, "section", prop["classifier"])

	parentProp, ok := f.remote.Property(child.ParentID, domain.PropertyKey)
	require.True(t, ok)
	assert.Equal(t, "dir", parentProp["classifier"])

	assert.Contains(t, f.remote.Labels(id), "managed-docs")
	assert.Equal(t, 2, f.report.finish().Created)
}

// TestHierarchy_EnsureDirMemoised tests that a directory is created once per run
func TestHierarchy_EnsureDirMemoised(t *testing.T) {
	f := newHierFixture(nil, nil)
	ctx := context.Background()

	first, err := f.hier.EnsureDir(ctx, "guides")
	require.NoError(t, err)
	second, err := f.hier.EnsureDir(ctx, "guides")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.remote.Stats().Creates)
}

// TestHierarchy_EnsureDirReusesBinding tests that a bootstrapped directory is not rewritten
func TestHierarchy_EnsureDirReusesBinding(t *testing.T) {
	f := newHierFixture(nil, nil)
	f.remote.SeedPage("2001", "DOCS", "100", "Guides", "<p>old</p>")
	f.remote.SeedLabels("2001", "managed-docs")
	f.remote.SeedProperty("2001", domain.PropertyKey, map[string]any{
		"key": "dir:guides", "classifier": "dir", "hash": "", "title": "Guides",
	})
	require.NoError(t, f.idx.Bootstrap(context.Background(), "100", "managed-docs"))

	id, err := f.hier.EnsureDir(context.Background(), "guides")
	require.NoError(t, err)

	assert.Equal(t, "2001", id)
	stats := f.remote.Stats()
	assert.Zero(t, stats.Creates)
	assert.Zero(t, stats.Updates)

	report := f.report.finish()
	assert.Zero(t, report.Created)
	assert.Zero(t, report.Updated)
}

// TestHierarchy_BodyFileSuppliesTitleAndBody tests rendering of _index.md
func TestHierarchy_BodyFileSuppliesTitleAndBody(t *testing.T) {
	ws := &stubWorkspace{files: map[string][]byte{
		"guides/_index.md": []byte("title: Field Guide\nWelcome to the guides."),
	}}
	f := newHierFixture(ws, nil)

	id, err := f.hier.EnsureDir(context.Background(), "guides")
	require.NoError(t, err)

	page, ok := f.remote.Page(id)
	require.True(t, ok)
	assert.Equal(t, "Field Guide", page.Title)
	assert.Contains(t, page.Body, "Welcome to the guides.")
	assert.Contains(t, page.Body, "<ac:children/>")

	pages, _ := f.collect.snapshot()
	require.Len(t, pages, 1)
	assert.Equal(t, "guides/_index.md", pages[0].path)
}

// TestHierarchy_TitleOverrideWins tests the override map beating front matter
func TestHierarchy_TitleOverrideWins(t *testing.T) {
	ws := &stubWorkspace{files: map[string][]byte{
		"guides/_index.md": []byte("title: Field Guide\nWelcome."),
	}}
	f := newHierFixture(ws, func(cfg *domain.Config) {
		cfg.TitleOverrides = map[string]string{"guides": "Handbook"}
	})

	id, err := f.hier.EnsureDir(context.Background(), "guides")
	require.NoError(t, err)

	page, ok := f.remote.Page(id)
	require.True(t, ok)
	assert.Equal(t, "Handbook", page.Title)
}

// TestHierarchy_RefreshDirSkipsUnchanged tests the hash short-circuit on refresh
func TestHierarchy_RefreshDirSkipsUnchanged(t *testing.T) {
	ws := &stubWorkspace{files: map[string][]byte{
		"guides/_index.md": []byte("Welcome."),
	}}
	f := newHierFixture(ws, nil)
	ctx := context.Background()

	_, err := f.hier.EnsureDir(ctx, "guides")
	require.NoError(t, err)
	before := f.remote.Stats()

	require.NoError(t, f.hier.RefreshDir(ctx, "guides"))

	after := f.remote.Stats()
	assert.Equal(t, before.Updates, after.Updates)
	assert.Equal(t, before.PropertyWrites, after.PropertyWrites)
	assert.Equal(t, 1, f.report.finish().Skipped)
}

// TestHierarchy_RefreshDirRewritesChanged tests a changed body file reaching the page
func TestHierarchy_RefreshDirRewritesChanged(t *testing.T) {
	ws := &stubWorkspace{files: map[string][]byte{
		"guides/_index.md": []byte("Welcome."),
	}}
	f := newHierFixture(ws, nil)
	ctx := context.Background()

	id, err := f.hier.EnsureDir(ctx, "guides")
	require.NoError(t, err)

	ws.files["guides/_index.md"] = []byte("Welcome, reader.")
	require.NoError(t, f.hier.RefreshDir(ctx, "guides"))

	page, ok := f.remote.Page(id)
	require.True(t, ok)
	assert.Contains(t, page.Body, "Welcome, reader.")

	prop, ok := f.remote.Property(id, domain.PropertyKey)
	require.True(t, ok)
	assert.Equal(t, rawHash([]byte("Welcome, reader.")), prop["hash"])
	assert.Equal(t, 1, f.report.finish().Updated)
}

// TestHierarchy_RefreshDirCreatesWhenUnbound tests refresh on a brand-new directory
func TestHierarchy_RefreshDirCreatesWhenUnbound(t *testing.T) {
	ws := &stubWorkspace{files: map[string][]byte{
		"guides/_index.md": []byte("Welcome."),
	}}
	f := newHierFixture(ws, nil)

	require.NoError(t, f.hier.RefreshDir(context.Background(), "guides"))

	assert.Equal(t, 1, f.remote.Stats().Creates)
	assert.Equal(t, 1, f.report.finish().Created)
}

// TestHierarchy_RootBodyIgnored tests that the root page is never managed
func TestHierarchy_RootBodyIgnored(t *testing.T) {
	f := newHierFixture(nil, nil)

	require.NoError(t, f.hier.RefreshDir(context.Background(), ""))

	stats := f.remote.Stats()
	assert.Zero(t, stats.Creates)
	assert.Zero(t, stats.Updates)
	assert.NotEmpty(t, f.report.finish().Warnings)
}

// TestHierarchy_TitleCollisionFallsBack tests the suffixed title candidate
func TestHierarchy_TitleCollisionFallsBack(t *testing.T) {
	f := newHierFixture(nil, nil)
	f.remote.SeedPage("3001", "DOCS", "100", "Guides", "<p>someone else's</p>")
	f.remote.SeedProperty("3001", domain.PropertyKey, map[string]any{
		"key": "dir:other", "classifier": "dir", "hash": "zzz", "title": "Guides",
	})

	id, err := f.hier.EnsureDir(context.Background(), "guides")
	require.NoError(t, err)

	require.NotEqual(t, "3001", id)
	page, ok := f.remote.Page(id)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(page.Title, "Guides ["), "got title %q", page.Title)

	foreign, _ := f.remote.Page("3001")
	assert.Equal(t, "<p>someone else's</p>", foreign.Body)
}

// TestHierarchy_AdoptsUnownedPage tests takeover of a bare page under the root
func TestHierarchy_AdoptsUnownedPage(t *testing.T) {
	f := newHierFixture(nil, func(cfg *domain.Config) { cfg.AdoptExisting = true })
	f.remote.SeedPage("3001", "DOCS", "100", "Guides", "<p>hand-written</p>")

	id, err := f.hier.EnsureDir(context.Background(), "guides")
	require.NoError(t, err)

	assert.Equal(t, "3001", id)
	assert.Zero(t, f.remote.Stats().Creates)

	prop, ok := f.remote.Property("3001", domain.PropertyKey)
	require.True(t, ok)
	assert.Equal(t, "dir:guides", prop["key"])

	page, _ := f.remote.Page("3001")
	assert.Contains(t, page.Body, "<ac:children/>")
	assert.Equal(t, 1, f.report.finish().Updated)
}

// TestHierarchy_AdoptionRequiresOptIn tests that takeover is off by default
func TestHierarchy_AdoptionRequiresOptIn(t *testing.T) {
	f := newHierFixture(nil, nil)
	f.remote.SeedPage("3001", "DOCS", "100", "Guides", "<p>hand-written</p>")

	id, err := f.hier.EnsureDir(context.Background(), "guides")
	require.NoError(t, err)

	assert.NotEqual(t, "3001", id)
	page, _ := f.remote.Page("3001")
	assert.Equal(t, "<p>hand-written</p>", page.Body)
}

// TestHierarchy_ConflictedKeyRefused tests that a bootstrap conflict blocks the directory
func TestHierarchy_ConflictedKeyRefused(t *testing.T) {
	f := newHierFixture(nil, nil)
	f.remote.SeedPage("2001", "DOCS", "100", "Guides A", "")
	f.remote.SeedLabels("2001", "managed-docs")
	f.remote.SeedProperty("2001", domain.PropertyKey, map[string]any{"key": "dir:guides"})
	f.remote.SeedPage("2002", "DOCS", "100", "Guides B", "")
	f.remote.SeedLabels("2002", "managed-docs")
	f.remote.SeedProperty("2002", domain.PropertyKey, map[string]any{"key": "dir:guides"})
	require.NoError(t, f.idx.Bootstrap(context.Background(), "100", "managed-docs"))

	_, err := f.hier.EnsureDir(context.Background(), "guides")
	require.Error(t, err)
	assert.True(t, domain.IsIdentityConflict(err))
	assert.Zero(t, f.remote.Stats().Creates)
}
