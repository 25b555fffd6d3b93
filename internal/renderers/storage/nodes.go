package storage

import (
	"bytes"
	"path"
	"strings"

	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/treeline-labs/confsync-cli/internal/core/domain"
)

// nodeRenderer replaces the HTML output of the node kinds that need a
// storage-format shape: code blocks become code macros, images become
// ac:image references, page links get their rewrite marker, task
// checkboxes become characters and raw HTML is neutralised to text.
// Everything else keeps goldmark's XHTML output.
type nodeRenderer struct {
	opts Options
}

// RegisterFuncs implements renderer.NodeRenderer.
func (r *nodeRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
	reg.Register(ast.KindCodeBlock, r.renderCodeBlock)
	reg.Register(ast.KindImage, r.renderImage)
	reg.Register(ast.KindLink, r.renderLink)
	reg.Register(ast.KindHTMLBlock, r.renderHTMLBlock)
	reg.Register(ast.KindRawHTML, r.renderRawHTML)
	reg.Register(east.KindTaskCheckBox, r.renderTaskCheckBox)
}

func (r *nodeRenderer) renderFencedCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)
	var lang string
	if l := n.Language(source); l != nil {
		lang = string(l)
	}
	r.writeCodeMacro(w, lang, segmentsText(n.Lines(), source))
	return ast.WalkContinue, nil
}

func (r *nodeRenderer) renderCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	r.writeCodeMacro(w, "", segmentsText(node.Lines(), source))
	return ast.WalkContinue, nil
}

// writeCodeMacro emits a code macro whose body is carried verbatim in
// a CDATA section.
func (r *nodeRenderer) writeCodeMacro(w util.BufWriter, lang string, code []byte) {
	_, _ = w.WriteString(`<ac:structured-macro ac:name="code">`)
	if lang != "" {
		_, _ = w.WriteString(`<ac:parameter ac:name="language">`)
		_, _ = w.Write(util.EscapeHTML([]byte(lang)))
		_, _ = w.WriteString(`</ac:parameter>`)
	}
	_, _ = w.WriteString(`<ac:parameter ac:name="theme">`)
	_, _ = w.WriteString(r.opts.CodeTheme)
	_, _ = w.WriteString(`</ac:parameter>`)
	_, _ = w.WriteString(`<ac:parameter ac:name="linenumbers">`)
	if r.opts.CodeLineNumbers {
		_, _ = w.WriteString("true")
	} else {
		_, _ = w.WriteString("false")
	}
	_, _ = w.WriteString(`</ac:parameter><ac:plain-text-body>`)
	writeCDATA(w, code)
	_, _ = w.WriteString("</ac:plain-text-body></ac:structured-macro>\n")
}

// writeCDATA wraps raw text in a CDATA section. A literal "]]>" inside
// the text would close the section early, so it is split across two
// sections.
func writeCDATA(w util.BufWriter, raw []byte) {
	_, _ = w.WriteString("<![CDATA[")
	for {
		i := bytes.Index(raw, []byte("]]>"))
		if i < 0 {
			_, _ = w.Write(raw)
			break
		}
		_, _ = w.Write(raw[:i+2])
		_, _ = w.WriteString("]]><![CDATA[>")
		raw = raw[i+3:]
	}
	_, _ = w.WriteString("]]>")
}

func (r *nodeRenderer) renderImage(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.Image)
	src := strings.TrimSpace(string(n.Destination))
	if src == "" {
		return ast.WalkSkipChildren, nil
	}

	_, _ = w.WriteString("<ac:image")
	if alt := n.Text(source); len(alt) > 0 {
		_, _ = w.WriteString(` ac:alt="`)
		_, _ = w.Write(util.EscapeHTML(alt))
		_, _ = w.WriteString(`"`)
	}
	_, _ = w.WriteString(">")
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		_, _ = w.WriteString(`<ri:url ri:value="`)
		_, _ = w.Write(util.EscapeHTML([]byte(src)))
		_, _ = w.WriteString(`"/>`)
	} else {
		_, _ = w.WriteString(`<ri:attachment ri:filename="`)
		_, _ = w.Write(util.EscapeHTML([]byte(path.Base(src))))
		_, _ = w.WriteString(`"/>`)
	}
	_, _ = w.WriteString("</ac:image>")
	return ast.WalkSkipChildren, nil
}

func (r *nodeRenderer) renderLink(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.Link)
	if !entering {
		_, _ = w.WriteString("</a>")
		return ast.WalkContinue, nil
	}

	dest := string(n.Destination)
	if isPageRef(dest) {
		// The marker carries the target as written. Both attributes
		// start out identical; the rewrite phase replaces href only.
		escaped := util.EscapeHTML([]byte(dest))
		_, _ = w.WriteString(`<a ` + domain.LinkMarkerAttr + `="`)
		_, _ = w.Write(escaped)
		_, _ = w.WriteString(`" href="`)
		_, _ = w.Write(escaped)
		_, _ = w.WriteString(`">`)
		return ast.WalkContinue, nil
	}

	_, _ = w.WriteString(`<a href="`)
	_, _ = w.Write(util.EscapeHTML(util.URLEscape(n.Destination, true)))
	_, _ = w.WriteString(`"`)
	if n.Title != nil {
		_, _ = w.WriteString(` title="`)
		_, _ = w.Write(util.EscapeHTML(n.Title))
		_, _ = w.WriteString(`"`)
	}
	_, _ = w.WriteString(">")
	return ast.WalkContinue, nil
}

// Raw HTML is not trusted to be well formed storage markup, so it is
// shown as text instead of being passed through.

func (r *nodeRenderer) renderHTMLBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.HTMLBlock)
	if entering {
		_, _ = w.Write(util.EscapeHTML(segmentsText(n.Lines(), source)))
	} else if n.HasClosure() {
		_, _ = w.Write(util.EscapeHTML(n.ClosureLine.Value(source)))
	}
	return ast.WalkContinue, nil
}

func (r *nodeRenderer) renderRawHTML(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkSkipChildren, nil
	}
	n := node.(*ast.RawHTML)
	for i := 0; i < n.Segments.Len(); i++ {
		seg := n.Segments.At(i)
		_, _ = w.Write(util.EscapeHTML(seg.Value(source)))
	}
	return ast.WalkSkipChildren, nil
}

func (r *nodeRenderer) renderTaskCheckBox(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	if node.(*east.TaskCheckBox).IsChecked {
		_, _ = w.WriteString("☑ ")
	} else {
		_, _ = w.WriteString("☐ ")
	}
	return ast.WalkContinue, nil
}

// segmentsText joins the source text a block node's segments cover.
func segmentsText(lines *text.Segments, source []byte) []byte {
	var b bytes.Buffer
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
	return b.Bytes()
}
