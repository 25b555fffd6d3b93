package domain

// LinkMarkerAttr is the attribute the renderer places on anchors whose
// Markdown target is a relative page reference. It carries the target
// as written in the source and survives until the rewrite phase
// replaces the anchor's href with a wiki URL.
const LinkMarkerAttr = "data-source-href"

// RenderResult is the outcome of rendering one Markdown source into
// storage markup. Link targets are marked, not resolved: resolution
// happens in a second phase once every target page is known to exist.
type RenderResult struct {
	// Storage is the rendered body in storage format.
	Storage string

	// Title is the title from front matter, empty when none is set.
	Title string

	// Heading is the text of the document's first top-level heading,
	// empty when the document has none. The heading itself is removed
	// from Storage and the remaining headings promoted one level.
	Heading string

	// Labels are the raw front-matter tags, not yet sanitised.
	Labels []string

	// Links are the relative Markdown targets found in the source, as
	// written, fragment included. Each one is marked in Storage.
	Links []string

	// Hash is the SHA-256 hex digest of the raw source bytes.
	Hash string
}

// RunRequest describes what a publish run should cover. Exactly one of
// the three forms is used: a raw change listing, an explicit path list,
// or a full tree walk.
type RunRequest struct {
	// Changes is the raw change listing text, one record per line.
	Changes string

	// Paths lists explicitly requested files, each treated as modified.
	Paths []string

	// Full publishes the entire tree regardless of changes.
	Full bool
}
