package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treeline-labs/confsync-cli/internal/core/domain"
)

func TestCleanupCmd_Use(t *testing.T) {
	assert.Equal(t, "cleanup", cleanupCmd.Use)
}

func TestCleanupCmd_ListsManagedPages(t *testing.T) {
	resetCLI(t)
	mock := &mockJanitor{pages: []domain.ManagedPage{
		{ID: "2101", Title: "Guides"},
		{ID: "2105", Title: "Setup"},
	}}
	janitor = mock

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"cleanup"})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "Found 2 managed pages")
	assert.Contains(t, buf.String(), "2101\tGuides")
	assert.Contains(t, buf.String(), "2105\tSetup")
	assert.Zero(t, mock.purgeCalls)
}

func TestCleanupCmd_PurgeDeclined(t *testing.T) {
	resetCLI(t)
	mock := &mockJanitor{pages: []domain.ManagedPage{{ID: "1", Title: "A"}}}
	janitor = mock

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetIn(strings.NewReader("n\n"))
	rootCmd.SetArgs([]string{"cleanup", "--purge"})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "Delete all 1 pages? [y/N]:")
	assert.Contains(t, buf.String(), "Aborted.")
	assert.Zero(t, mock.purgeCalls)
}

func TestCleanupCmd_PurgeConfirmed(t *testing.T) {
	resetCLI(t)
	mock := &mockJanitor{
		pages:  []domain.ManagedPage{{ID: "1", Title: "A"}, {ID: "2", Title: "B"}},
		purged: 2,
	}
	janitor = mock

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetIn(strings.NewReader("y\n"))
	rootCmd.SetArgs([]string{"cleanup", "--purge"})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, 1, mock.purgeCalls)
	assert.Contains(t, buf.String(), "Deleted 2 pages.")
}

func TestCleanupCmd_PurgeYesSkipsPrompt(t *testing.T) {
	resetCLI(t)
	mock := &mockJanitor{pages: []domain.ManagedPage{{ID: "1", Title: "A"}}, purged: 1}
	janitor = mock

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"cleanup", "--purge", "--yes"})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, 1, mock.purgeCalls)
	assert.NotContains(t, buf.String(), "[y/N]")
}

func TestCleanupCmd_PurgeWithNothingManaged(t *testing.T) {
	resetCLI(t)
	mock := &mockJanitor{}
	janitor = mock

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"cleanup", "--purge", "--yes"})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "Found 0 managed pages")
	assert.Zero(t, mock.purgeCalls)
}

func TestCleanupCmd_ListError(t *testing.T) {
	resetCLI(t)
	janitor = &mockJanitor{listErr: errors.New("search managed pages: boom")}

	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"cleanup"})

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "search managed pages")
}

func TestCleanupCmd_PurgeError(t *testing.T) {
	resetCLI(t)
	janitor = &mockJanitor{
		pages:    []domain.ManagedPage{{ID: "1", Title: "A"}, {ID: "2", Title: "B"}},
		purged:   1,
		purgeErr: errors.New("delete page 2: forbidden"),
	}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"cleanup", "--purge", "--yes"})

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "purge")
	assert.Contains(t, buf.String(), "Deleted 1 pages.")
}
