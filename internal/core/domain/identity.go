package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// PropertyKey is the content-property key under which a page's identity
// is stored on the remote.
const PropertyKey = "confsync-source"

// LegacyPropertyKey is the property key used by earlier tooling. It is
// still read as a fallback so existing pages are recognised, but never
// written.
const LegacyPropertyKey = "source"

// Classifier records which kind of page an identity describes. It is
// carried in the identity property and mirrored by the legacy bare
// labels the migrator removes.
type Classifier string

const (
	// ClassifierDoc marks a content page rendered from a Markdown file.
	ClassifierDoc Classifier = "md"

	// ClassifierDir marks a grouping page for a top-level directory.
	ClassifierDir Classifier = "dir"

	// ClassifierSection marks a grouping page for a nested directory.
	ClassifierSection Classifier = "section"
)

// IsValid returns true if the classifier is recognised.
func (c Classifier) IsValid() bool {
	switch c {
	case ClassifierDoc, ClassifierDir, ClassifierSection:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (c Classifier) String() string {
	return string(c)
}

// PageIdentity binds a source key to a remote page. It is stored in a
// content property on the page itself, so the mapping survives page and
// file renames without any local state.
type PageIdentity struct {
	// Key is the canonical source key the page belongs to.
	Key SourceKey

	// PageID is the remote page identifier. Opaque, never parsed,
	// immutable for the life of the page.
	PageID string

	// Classifier records the page kind.
	Classifier Classifier

	// ContentHash is the hash of the source content as of the last
	// successful publish. Empty for grouping pages.
	ContentHash string

	// Title is the page title as of the last successful publish.
	Title string
}

// Equal reports whether two identities carry the same stored state.
// Used to skip identity writes that would not change anything.
func (p PageIdentity) Equal(other PageIdentity) bool {
	return p.Key == other.Key &&
		p.Classifier == other.Classifier &&
		p.ContentHash == other.ContentHash &&
		p.Title == other.Title
}

// legacyLabelPrefix is the prefix of per-item identity labels written
// by earlier tooling.
const legacyLabelPrefix = "src-"

// LegacyKeyLabel returns the visible label under which earlier tooling
// recorded the given key. Used only to recognise pages that have not
// been migrated yet.
func LegacyKeyLabel(key SourceKey) string {
	sum := sha1.Sum([]byte(key))
	return legacyLabelPrefix + hex.EncodeToString(sum[:])[:12]
}

// IsLegacyLabel returns true for labels written by the earlier identity
// scheme: hashed per-item labels and the bare classifier labels.
func IsLegacyLabel(label string) bool {
	if strings.HasPrefix(label, legacyLabelPrefix) {
		return true
	}
	switch Classifier(label) {
	case ClassifierDoc, ClassifierDir, ClassifierSection:
		return true
	default:
		return false
	}
}

// KeySuffix returns a short stable suffix derived from the key, used to
// disambiguate colliding page titles.
func KeySuffix(key SourceKey) string {
	sum := sha1.Sum([]byte(key))
	return hex.EncodeToString(sum[:])[:6]
}
