package diff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUnified_ProducesHunks tests the classic unified shape for a
// changed body.
func TestUnified_ProducesHunks(t *testing.T) {
	from := "<h1>Title</h1>\n<p>old paragraph</p>\n<p>tail</p>\n"
	to := "<h1>Title</h1>\n<p>new paragraph</p>\n<p>tail</p>\n"

	body, oversize := Unified("guides/setup.md (remote)", "guides/setup.md (rendered)", from, to, Options{})

	require.False(t, oversize)
	assert.True(t, strings.HasPrefix(body, "--- guides/setup.md (remote)\n+++ guides/setup.md (rendered)\n"))
	assert.Contains(t, body, "@@")
	assert.Contains(t, body, "-<p>old paragraph</p>\n")
	assert.Contains(t, body, "+<p>new paragraph</p>\n")
	assert.Contains(t, body, " <h1>Title</h1>\n")
}

// TestUnified_EqualInputs tests that identical bodies yield an empty
// patch.
func TestUnified_EqualInputs(t *testing.T) {
	body, oversize := Unified("a", "b", "<p>same</p>\n", "<p>same</p>\n", Options{})

	assert.False(t, oversize)
	assert.Empty(t, body)
}

// TestUnified_Oversize tests the size guardrail placeholder.
func TestUnified_Oversize(t *testing.T) {
	big := strings.Repeat("<p>filler</p>\n", 10)

	body, oversize := Unified("a", "b", big, big+"<p>x</p>\n", Options{MaxBytes: 16})

	assert.True(t, oversize)
	assert.Contains(t, body, "# diff omitted (oversize)")
}

// TestAdded_WholeBody tests the patch for a page that does not exist
// yet.
func TestAdded_WholeBody(t *testing.T) {
	body, oversize := Added("guides/new.md (rendered)", "<p>one</p>\n<p>two</p>\n", Options{})

	require.False(t, oversize)
	assert.True(t, strings.HasPrefix(body, "--- /dev/null\n+++ guides/new.md (rendered)\n"))
	assert.Contains(t, body, "+<p>one</p>\n")
	assert.Contains(t, body, "+<p>two</p>\n")
	assert.NotContains(t, body, "\n-<p>")
}

// TestUnified_NoTrailingNewline tests that bodies without a final
// newline still diff cleanly.
func TestUnified_NoTrailingNewline(t *testing.T) {
	body, oversize := Unified("a", "b", "<p>one</p>", "<p>two</p>", Options{Context: 1})

	require.False(t, oversize)
	assert.Contains(t, body, "-<p>one</p>")
	assert.Contains(t, body, "+<p>two</p>")
}
