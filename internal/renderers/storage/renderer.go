// Package storage renders Markdown sources into Confluence storage
// format. Relative page references are not resolved here: they are
// marked with a data attribute so the publish pipeline can rewrite
// them once every target page has an ID.
package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/treeline-labs/confsync-cli/internal/core/domain"
	"github.com/treeline-labs/confsync-cli/internal/core/ports/driven"
)

// Ensure Renderer implements the interface.
var _ driven.Renderer = (*Renderer)(nil)

// Options control the parts of the output that are taste rather than
// correctness. The zero value disables everything optional; use
// DefaultOptions for the usual publishing setup.
type Options struct {
	// TOC prepends a table-of-contents macro to every rendered page.
	TOC bool

	// TOCMinLevel and TOCMaxLevel bound the heading levels the TOC
	// macro lists. Zero values mean 1 and 3.
	TOCMinLevel int
	TOCMaxLevel int

	// NumberHeadings prefixes headings with 1., 1.1., 1.1.1. section
	// numbers, up to NumberDepth levels.
	NumberHeadings bool

	// NumberDepth is the deepest heading level that gets a number.
	// Zero means 3; never numbers past level 3.
	NumberDepth int

	// CodeTheme is the code macro display theme. Empty means "Default".
	CodeTheme string

	// CodeLineNumbers turns on line numbers in code macros.
	CodeLineNumbers bool
}

// DefaultOptions returns the options used by the publish commands.
func DefaultOptions() Options {
	return Options{
		TOC:             true,
		TOCMinLevel:     1,
		TOCMaxLevel:     3,
		NumberHeadings:  true,
		NumberDepth:     3,
		CodeTheme:       "Default",
		CodeLineNumbers: true,
	}
}

// Renderer converts Markdown to storage markup. Safe for concurrent
// use: rendering keeps no state on the receiver.
type Renderer struct {
	opts Options
	md   goldmark.Markdown
}

// New creates a renderer. Unset option fields fall back to sensible
// values, so Options{} is a valid minimal configuration.
func New(opts Options) *Renderer {
	if opts.TOCMinLevel <= 0 {
		opts.TOCMinLevel = 1
	}
	if opts.TOCMaxLevel <= 0 {
		opts.TOCMaxLevel = 3
	}
	if opts.NumberDepth <= 0 || opts.NumberDepth > 3 {
		opts.NumberDepth = 3
	}
	if opts.CodeTheme == "" {
		opts.CodeTheme = "Default"
	}
	return &Renderer{
		opts: opts,
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.Linkify,
				extension.TaskList,
			),
			goldmark.WithRendererOptions(
				html.WithXHTML(),
				// Priority 100 so these funcs win over both the built-in
				// HTML renderer and the extension renderers.
				renderer.WithNodeRenderers(
					util.Prioritized(&nodeRenderer{opts: opts}, 100),
				),
			),
		),
	}
}

// frontMatter is the YAML metadata block an author may put at the top
// of a source file.
type frontMatter struct {
	Title string   `yaml:"title"`
	Tags  []string `yaml:"tags"`
}

// Render converts one source file. The first level-one heading becomes
// the result's Heading and is dropped from the body; the remaining
// headings move up one level so published pages do not repeat their
// own title.
func (r *Renderer) Render(_ context.Context, src []byte, relPath string) (*domain.RenderResult, error) {
	sum := sha256.Sum256(src)

	var meta frontMatter
	body, err := frontmatter.Parse(bytes.NewReader(src), &meta)
	if err != nil {
		return nil, fmt.Errorf("parse front matter of %s: %w", relPath, err)
	}

	normalized, heading := r.normalizeHeadings(body)

	doc := r.md.Parser().Parse(text.NewReader(normalized))
	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, normalized, doc); err != nil {
		return nil, fmt.Errorf("render %s: %w", relPath, err)
	}

	markup := strings.TrimSpace(buf.String())
	if r.opts.TOC {
		markup = r.tocMacro() + markup
	}

	return &domain.RenderResult{
		Storage: markup,
		Title:   strings.TrimSpace(meta.Title),
		Heading: heading,
		Labels:  meta.Tags,
		Links:   collectLinks(doc, normalized),
		Hash:    hex.EncodeToString(sum[:]),
	}, nil
}

// RenderDirectory builds the body of a grouping page. A directory with
// a body file renders like any page; one without gets a paragraph
// carrying its title. Either way a child listing macro closes the body
// so the page always reflects what lives under it.
func (r *Renderer) RenderDirectory(ctx context.Context, src []byte, relPath, placeholderTitle string) (*domain.RenderResult, error) {
	if src == nil {
		return &domain.RenderResult{
			Storage: "<p>" + string(util.EscapeHTML([]byte(placeholderTitle))) + "</p>" + childrenMacro(),
		}, nil
	}
	res, err := r.Render(ctx, src, relPath)
	if err != nil {
		return nil, err
	}
	res.Storage += childrenMacro()
	return res, nil
}

var (
	fenceLine   = regexp.MustCompile("^\\s*(```|~~~)")
	headingLine = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*$`)

	// Manual section numbers authors put in heading text: "1.", "1.1",
	// "1.2.3", "1)".
	headingNumberPrefix = regexp.MustCompile(`^\s*(?:\d+\)|\d+\.(?:\d+(?:\.\d+)*)?\.?|\d+(?:\.\d+)+)\s+(.*)$`)
)

// normalizeHeadings reshapes the heading structure before parsing: the
// first H1 is captured and removed, deeper headings are promoted one
// level, manual section numbers are stripped and, when configured,
// fresh ones are added. Fenced code blocks pass through untouched.
func (r *Renderer) normalizeHeadings(body []byte) ([]byte, string) {
	var out bytes.Buffer
	var heading string
	inFence := false
	removedH1 := false
	n1, n2, n3 := 0, 0, 0

	for _, line := range strings.SplitAfter(string(body), "\n") {
		core, nl := line, ""
		if strings.HasSuffix(core, "\n") {
			core, nl = core[:len(core)-1], "\n"
		}
		if strings.HasSuffix(core, "\r") {
			core, nl = core[:len(core)-1], "\r"+nl
		}

		if fenceLine.MatchString(core) {
			inFence = !inFence
			out.WriteString(core + nl)
			continue
		}

		if !inFence {
			if m := headingLine.FindStringSubmatch(core); m != nil {
				level, txt := len(m[1]), m[2]

				if level == 1 && !removedH1 {
					removedH1 = true
					heading = strings.TrimSpace(txt)
					continue
				}
				if level > 1 {
					level--
				}
				if sub := headingNumberPrefix.FindStringSubmatch(txt); sub != nil {
					txt = strings.TrimSpace(sub[1])
				}
				if r.opts.NumberHeadings && level <= r.opts.NumberDepth {
					var prefix string
					switch level {
					case 1:
						n1++
						n2, n3 = 0, 0
						prefix = strconv.Itoa(n1) + ". "
					case 2:
						if n1 == 0 {
							n1 = 1
						}
						n2++
						n3 = 0
						prefix = fmt.Sprintf("%d.%d. ", n1, n2)
					case 3:
						if n1 == 0 {
							n1 = 1
						}
						if n2 == 0 {
							n2 = 1
						}
						n3++
						prefix = fmt.Sprintf("%d.%d.%d. ", n1, n2, n3)
					}
					if prefix != "" && !strings.HasPrefix(txt, prefix) {
						txt = prefix + txt
					}
				}
				core = strings.Repeat("#", level) + " " + txt
			}
		}

		out.WriteString(core + nl)
	}

	return out.Bytes(), heading
}

// collectLinks gathers the relative page references the body contains,
// in document order, deduplicated, as written in the source.
func collectLinks(doc ast.Node, source []byte) []string {
	var links []string
	seen := make(map[string]bool)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindLink {
			return ast.WalkContinue, nil
		}
		dest := string(n.(*ast.Link).Destination)
		if isPageRef(dest) && !seen[dest] {
			seen[dest] = true
			links = append(links, dest)
		}
		return ast.WalkContinue, nil
	})
	return links
}

// isPageRef reports whether a link target is a page reference the
// rewrite phase should resolve: a non-external path ending in .md,
// fragment allowed.
func isPageRef(dest string) bool {
	if dest == "" || strings.HasPrefix(dest, "#") {
		return false
	}
	if strings.Contains(dest, "://") || strings.HasPrefix(dest, "mailto:") {
		return false
	}
	target := dest
	if i := strings.IndexByte(target, '#'); i >= 0 {
		target = target[:i]
	}
	return domain.IsMarkdown(target)
}

// tocMacro builds the table-of-contents macro placed at the top of a
// rendered page.
func (r *Renderer) tocMacro() string {
	return `<ac:structured-macro ac:name="toc">` +
		`<ac:parameter ac:name="minLevel">` + strconv.Itoa(r.opts.TOCMinLevel) + `</ac:parameter>` +
		`<ac:parameter ac:name="maxLevel">` + strconv.Itoa(r.opts.TOCMaxLevel) + `</ac:parameter>` +
		`<ac:parameter ac:name="outline">false</ac:parameter>` +
		`<ac:parameter ac:name="type">list</ac:parameter>` +
		`<ac:parameter ac:name="style">none</ac:parameter>` +
		`</ac:structured-macro>`
}

// childrenMacro builds the child page listing appended to every
// grouping page body.
func childrenMacro() string {
	return `<ac:structured-macro ac:name="children">` +
		`<ac:parameter ac:name="sort">title</ac:parameter>` +
		`</ac:structured-macro>`
}
