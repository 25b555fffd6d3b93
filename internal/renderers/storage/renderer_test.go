package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRenderer_BasicBlocks tests plain Markdown structure mapping
func TestRenderer_BasicBlocks(t *testing.T) {
	res, err := New(Options{}).Render(context.Background(), []byte("Hello **world**, see `go doc`.\n"), "a.md")
	require.NoError(t, err)

	assert.Equal(t, "<p>Hello <strong>world</strong>, see <code>go doc</code>.</p>", res.Storage)
	assert.Empty(t, res.Title)
	assert.Empty(t, res.Heading)
	assert.Empty(t, res.Links)
}

// TestRenderer_FrontMatterTitleAndTags tests metadata extraction
func TestRenderer_FrontMatterTitleAndTags(t *testing.T) {
	src := "---\ntitle: Hello\ntags: [api, guide]\n---\n# Body\nText\n"
	res, err := New(Options{}).Render(context.Background(), []byte(src), "a.md")
	require.NoError(t, err)

	assert.Equal(t, "Hello", res.Title)
	assert.Equal(t, []string{"api", "guide"}, res.Labels)
	assert.NotContains(t, res.Storage, "title:")
	assert.Contains(t, res.Storage, "<p>Text</p>")
}

// TestRenderer_FirstHeadingBecomesTitle tests H1 capture and promotion
func TestRenderer_FirstHeadingBecomesTitle(t *testing.T) {
	src := "# Page Title\n\n## Section\n\nText\n"
	res, err := New(Options{}).Render(context.Background(), []byte(src), "a.md")
	require.NoError(t, err)

	assert.Equal(t, "Page Title", res.Heading)
	assert.NotContains(t, res.Storage, "Page Title")
	assert.Contains(t, res.Storage, "<h1>Section</h1>")
}

// TestRenderer_HeadingNumbering tests stripping manual numbers and adding fresh ones
func TestRenderer_HeadingNumbering(t *testing.T) {
	src := "# Page Title\n\n## 1. First\n\n### 1.1 Second\n\nText\n"
	res, err := New(Options{NumberHeadings: true}).Render(context.Background(), []byte(src), "a.md")
	require.NoError(t, err)

	assert.Contains(t, res.Storage, "<h1>1. First</h1>")
	assert.Contains(t, res.Storage, "<h2>1.1. Second</h2>")
}

// TestRenderer_FenceShieldsHeadings tests that code fences hide heading-like lines
func TestRenderer_FenceShieldsHeadings(t *testing.T) {
	src := "```\n# not a heading\n```\n\n# Real Title\n"
	res, err := New(Options{}).Render(context.Background(), []byte(src), "a.md")
	require.NoError(t, err)

	assert.Equal(t, "Real Title", res.Heading)
	assert.Contains(t, res.Storage, "# not a heading")
}

// TestRenderer_CodeBlockBecomesMacro tests the code macro shape
func TestRenderer_CodeBlockBecomesMacro(t *testing.T) {
	src := "```python\nprint('hi')\n```\n"
	res, err := New(Options{CodeTheme: "Midnight", CodeLineNumbers: true}).Render(context.Background(), []byte(src), "a.md")
	require.NoError(t, err)

	assert.Contains(t, res.Storage, `<ac:structured-macro ac:name="code">`)
	assert.Contains(t, res.Storage, `<ac:parameter ac:name="language">python</ac:parameter>`)
	assert.Contains(t, res.Storage, `<ac:parameter ac:name="theme">Midnight</ac:parameter>`)
	assert.Contains(t, res.Storage, `<ac:parameter ac:name="linenumbers">true</ac:parameter>`)
	assert.Contains(t, res.Storage, "<![CDATA[print('hi')\n]]>")
	assert.NotContains(t, res.Storage, "<pre>")
}

// TestRenderer_CodeBlockSplitsCDATATerminator tests that "]]>" cannot break the macro body
func TestRenderer_CodeBlockSplitsCDATATerminator(t *testing.T) {
	src := "```\na]]>b\n```\n"
	res, err := New(Options{}).Render(context.Background(), []byte(src), "a.md")
	require.NoError(t, err)

	assert.Contains(t, res.Storage, "a]]]]><![CDATA[>b")
}

// TestRenderer_Images tests attachment and external image references
func TestRenderer_Images(t *testing.T) {
	src := "![rel](images/pic.png)\n\n![abs](https://example.com/a.png)\n"
	res, err := New(Options{}).Render(context.Background(), []byte(src), "docs/a.md")
	require.NoError(t, err)

	assert.Contains(t, res.Storage, `<ac:image ac:alt="rel"><ri:attachment ri:filename="pic.png"/></ac:image>`)
	assert.Contains(t, res.Storage, `<ac:image ac:alt="abs"><ri:url ri:value="https://example.com/a.png"/></ac:image>`)
	assert.NotContains(t, res.Storage, "<img")
}

// TestRenderer_PageLinksMarked tests the rewrite marker contract
func TestRenderer_PageLinksMarked(t *testing.T) {
	src := "[ok](other.md)\n[later](../b/unresolved.md#sec)\n[ext](https://example.com)\n[self](#local)\n"
	res, err := New(Options{}).Render(context.Background(), []byte(src), "docs/a/page.md")
	require.NoError(t, err)

	assert.Contains(t, res.Storage, `<a data-source-href="other.md" href="other.md">ok</a>`)
	assert.Contains(t, res.Storage, `<a data-source-href="../b/unresolved.md#sec" href="../b/unresolved.md#sec">later</a>`)
	assert.Contains(t, res.Storage, `<a href="https://example.com">ext</a>`)
	assert.Contains(t, res.Storage, `<a href="#local">self</a>`)
	assert.Equal(t, []string{"other.md", "../b/unresolved.md#sec"}, res.Links)
}

// TestRenderer_TaskListsBecomeCharacters tests checkbox replacement
func TestRenderer_TaskListsBecomeCharacters(t *testing.T) {
	src := "- [x] done\n- [ ] todo\n"
	res, err := New(Options{}).Render(context.Background(), []byte(src), "a.md")
	require.NoError(t, err)

	assert.NotContains(t, res.Storage, "<input")
	assert.Contains(t, res.Storage, "☑ done")
	assert.Contains(t, res.Storage, "☐ todo")
}

// TestRenderer_RawHTMLShownAsText tests that authored HTML cannot enter the markup
func TestRenderer_RawHTMLShownAsText(t *testing.T) {
	src := "before\n\n<div class=\"x\">boxed</div>\n\nafter <b>bold</b>\n"
	res, err := New(Options{}).Render(context.Background(), []byte(src), "a.md")
	require.NoError(t, err)

	assert.NotContains(t, res.Storage, `<div class="x">`)
	assert.Contains(t, res.Storage, "&lt;div class=&quot;x&quot;&gt;")
	assert.Contains(t, res.Storage, "&lt;b&gt;bold&lt;/b&gt;")
}

// TestRenderer_TOCInjectedFirst tests table-of-contents placement
func TestRenderer_TOCInjectedFirst(t *testing.T) {
	src := "## Section\nText\n"
	res, err := New(Options{TOC: true, TOCMinLevel: 1, TOCMaxLevel: 3}).Render(context.Background(), []byte(src), "a.md")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.Storage, `<ac:structured-macro ac:name="toc">`), "the TOC macro opens the body")
	assert.Contains(t, res.Storage, `<ac:parameter ac:name="minLevel">1</ac:parameter>`)
	assert.Contains(t, res.Storage, `<ac:parameter ac:name="maxLevel">3</ac:parameter>`)
	assert.Contains(t, res.Storage, "<h1>Section</h1>")
}

// TestRenderer_HashCoversRawSource tests that the hash tracks source bytes, not output
func TestRenderer_HashCoversRawSource(t *testing.T) {
	src := []byte("# Title\n\nText\n")
	res, err := New(Options{}).Render(context.Background(), src, "a.md")
	require.NoError(t, err)

	sum := sha256.Sum256(src)
	assert.Equal(t, hex.EncodeToString(sum[:]), res.Hash)

	changed, err := New(Options{}).Render(context.Background(), []byte("# Title\n\nText!\n"), "a.md")
	require.NoError(t, err)
	assert.NotEqual(t, res.Hash, changed.Hash)
}

// TestRenderer_RenderDirectoryWithBodyFile tests grouping pages built from an index file
func TestRenderer_RenderDirectoryWithBodyFile(t *testing.T) {
	src := []byte("# Guides\n\nEverything how-to.\n")
	res, err := New(Options{}).RenderDirectory(context.Background(), src, "guides/_index.md", "Guides")
	require.NoError(t, err)

	assert.Contains(t, res.Storage, "<p>Everything how-to.</p>")
	assert.Contains(t, res.Storage, `<ac:structured-macro ac:name="children">`)
	assert.Contains(t, res.Storage, `<ac:parameter ac:name="sort">title</ac:parameter>`)
	assert.Equal(t, "Guides", res.Heading)
	assert.NotEmpty(t, res.Hash)
}

// TestRenderer_RenderDirectoryPlaceholder tests grouping pages without an index file
func TestRenderer_RenderDirectoryPlaceholder(t *testing.T) {
	res, err := New(Options{}).RenderDirectory(context.Background(), nil, "", "Ops & Tools")
	require.NoError(t, err)

	want := `<p>Ops &amp; Tools</p>` +
		`<ac:structured-macro ac:name="children">` +
		`<ac:parameter ac:name="sort">title</ac:parameter>` +
		`</ac:structured-macro>`
	assert.Equal(t, want, res.Storage)
	assert.Empty(t, res.Hash)
}
