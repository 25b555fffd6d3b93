package domain

import (
	"path"
	"strings"
	"unicode"
)

// ItemKind distinguishes files from directories in the source tree.
type ItemKind string

const (
	// KindFile is a Markdown document that maps to a content page.
	KindFile ItemKind = "file"

	// KindDir is a directory that maps to a grouping page.
	KindDir ItemKind = "dir"
)

// IsValid returns true if the item kind is recognised.
func (k ItemKind) IsValid() bool {
	return k == KindFile || k == KindDir
}

// String returns the string representation.
func (k ItemKind) String() string {
	return string(k)
}

// SourceItem represents a file or directory in the documentation tree.
// Items are recomputed from the filesystem on every run and never
// persisted locally; durable state lives on the remote pages only.
type SourceItem struct {
	// Path is the normalised, slash-separated path relative to the doc root.
	Path string

	// Kind distinguishes files from directories.
	Kind ItemKind

	// ContentHash is the SHA-256 hex digest of the raw file bytes.
	// Empty for directories.
	ContentHash string
}

// Key returns the canonical source key for this item.
func (i SourceItem) Key() SourceKey {
	if i.Kind == KindDir {
		return NewDirKey(i.Path)
	}
	return NewFileKey(i.Path)
}

// SourceKey is the canonical durable identifier for a source item.
// It has the form "file:<path>" or "dir:<path>" with a normalised
// slash-separated relative path. Keys survive runs by being stored on
// the remote pages themselves.
type SourceKey string

// NewFileKey builds the key for a file at the given relative path.
func NewFileKey(relPath string) SourceKey {
	return SourceKey("file:" + NormalizePath(relPath))
}

// NewDirKey builds the key for a directory at the given relative path.
func NewDirKey(relPath string) SourceKey {
	return SourceKey("dir:" + NormalizePath(relPath))
}

// ParseSourceKey splits a stored key string back into kind and path.
// Returns false if the string is not a well-formed key.
func ParseSourceKey(s string) (ItemKind, string, bool) {
	switch {
	case strings.HasPrefix(s, "file:"):
		return KindFile, strings.TrimPrefix(s, "file:"), true
	case strings.HasPrefix(s, "dir:"):
		return KindDir, strings.TrimPrefix(s, "dir:"), true
	default:
		return "", "", false
	}
}

// Kind returns the item kind encoded in the key, or the empty kind for
// a malformed key.
func (k SourceKey) Kind() ItemKind {
	kind, _, ok := ParseSourceKey(string(k))
	if !ok {
		return ""
	}
	return kind
}

// Path returns the relative path encoded in the key.
func (k SourceKey) Path() string {
	_, p, _ := ParseSourceKey(string(k))
	return p
}

// IsValid returns true if the key is well formed.
func (k SourceKey) IsValid() bool {
	_, _, ok := ParseSourceKey(string(k))
	return ok
}

// String returns the string representation.
func (k SourceKey) String() string {
	return string(k)
}

// NormalizePath canonicalises a tree-relative path: forward slashes,
// no leading "./", no trailing slash, cleaned of "." and ".." segments.
// Two paths naming the same item always normalise identically.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "./")
	if p == "." || p == "/" {
		return ""
	}
	return strings.Trim(p, "/")
}

// IsMarkdown returns true if the path names a Markdown file.
func IsMarkdown(p string) bool {
	return strings.EqualFold(path.Ext(p), ".md")
}

// IsDirBody returns true if the path names a file that provides the body
// of its containing directory's page rather than a page of its own.
func IsDirBody(p string) bool {
	base := strings.ToLower(path.Base(p))
	return base == "_index.md" || base == "readme.md"
}

// Stem returns the file name without its extension.
func Stem(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

// Humanize converts a path stem like "getting-started" or "api_reference"
// into a display title like "Getting Started". Used when neither front
// matter nor a leading heading supplies a title.
func Humanize(stem string) string {
	stem = strings.ReplaceAll(stem, "-", " ")
	stem = strings.ReplaceAll(stem, "_", " ")
	words := strings.Fields(stem)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
