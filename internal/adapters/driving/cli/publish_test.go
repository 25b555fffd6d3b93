package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treeline-labs/confsync-cli/internal/core/domain"
)

func TestPublishCmd_Use(t *testing.T) {
	assert.Equal(t, "publish [paths...]", publishCmd.Use)
}

func TestPublishCmd_FullRunByDefault(t *testing.T) {
	resetCLI(t)
	mock := &mockPublisher{}
	publisher = mock

	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"publish"})

	require.NoError(t, rootCmd.Execute())
	assert.True(t, mock.req.Full)
	assert.Empty(t, mock.req.Paths)
	assert.Empty(t, mock.req.Changes)
}

func TestPublishCmd_ExplicitPaths(t *testing.T) {
	resetCLI(t)
	mock := &mockPublisher{}
	publisher = mock

	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"publish", "guides/setup.md", "overview.md"})

	require.NoError(t, rootCmd.Execute())
	assert.False(t, mock.req.Full)
	assert.Equal(t, []string{"guides/setup.md", "overview.md"}, mock.req.Paths)
}

func TestPublishCmd_ChangesFile(t *testing.T) {
	resetCLI(t)
	mock := &mockPublisher{}
	publisher = mock

	listing := "M\tdocs/guides/setup.md\nR100\tdocs/old.md\tdocs/new.md\n"
	path := filepath.Join(t.TempDir(), "changes.txt")
	require.NoError(t, os.WriteFile(path, []byte(listing), 0o644))

	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"publish", "--changes", path})

	require.NoError(t, rootCmd.Execute())
	assert.False(t, mock.req.Full)
	assert.Equal(t, listing, mock.req.Changes)
}

func TestPublishCmd_ChangesFromStdin(t *testing.T) {
	resetCLI(t)
	mock := &mockPublisher{}
	publisher = mock

	rootCmd.SetIn(strings.NewReader("A\tdocs/new.md\n"))
	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"publish", "--changes", "-"})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "A\tdocs/new.md\n", mock.req.Changes)
}

func TestPublishCmd_PathsAndChangesConflict(t *testing.T) {
	resetCLI(t)
	publisher = &mockPublisher{}

	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"publish", "--changes", "some.txt", "a.md"})

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not both")
}

func TestPublishCmd_MissingChangesFile(t *testing.T) {
	resetCLI(t)
	publisher = &mockPublisher{}

	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"publish", "--changes", filepath.Join(t.TempDir(), "missing.txt")})

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read change listing")
}

func TestPublishCmd_PrintsSummary(t *testing.T) {
	resetCLI(t)
	publisher = &mockPublisher{report: &domain.RunReport{Created: 2, Updated: 1, Skipped: 3}}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"publish"})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "Publish: created 2, updated 1, skipped 3")
}

func TestPublishCmd_ReportsFailures(t *testing.T) {
	resetCLI(t)
	publisher = &mockPublisher{report: &domain.RunReport{
		Created: 1,
		Failed:  2,
		Failures: []domain.ItemFailure{
			{Key: domain.NewFileKey("docs/a.md"), Err: assert.AnError},
			{Key: domain.NewFileKey("docs/b.md"), Err: assert.AnError},
		},
	}}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"publish"})

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.ErrorIs(t, err, errItemsFailed)
	assert.Contains(t, buf.String(), "Failed items (2):")
	assert.Contains(t, buf.String(), "file:docs/a.md")
}

func TestPublishCmd_PrintsWarnings(t *testing.T) {
	resetCLI(t)
	publisher = &mockPublisher{report: &domain.RunReport{
		Warnings: []string{"link target missing.md not published"},
	}}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"publish"})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "Warnings (1):")
	assert.Contains(t, buf.String(), "link target missing.md not published")
}

func TestPublishCmd_DryRunPrintsDiffs(t *testing.T) {
	resetCLI(t)
	publisher = &mockPublisher{report: &domain.RunReport{
		Updated: 1,
		Created: 1,
		Planned: []domain.PlannedChange{
			{
				Key: domain.NewFileKey("guides/setup.md"), Path: "guides/setup.md",
				PageID: "2105", Title: "Setup", Action: domain.ActionUpdate,
				OldBody: "<p>old</p>\n", NewBody: "<p>new</p>\n",
			},
			{
				Key: domain.NewFileKey("intro.md"), Path: "intro.md",
				Title: "Intro", Action: domain.ActionCreate,
				NewBody: "<p>hello</p>\n",
			},
		},
	}}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"publish", "--dry-run"})

	require.NoError(t, rootCmd.Execute())
	out := buf.String()
	assert.Contains(t, out, `would update "Setup" (page 2105, guides/setup.md)`)
	assert.Contains(t, out, "-<p>old</p>")
	assert.Contains(t, out, "+<p>new</p>")
	assert.Contains(t, out, `would create "Intro" (intro.md)`)
	assert.Contains(t, out, "+<p>hello</p>")
	assert.Contains(t, out, "Dry run: created 1, updated 1")
}
