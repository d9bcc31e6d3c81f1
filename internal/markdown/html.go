// Package markdown renders persona replies for display.
//
// Replies are short chat lines, so only inline formatting and paragraphs
// matter. Raw HTML in a reply is never passed through.
package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	ghtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// actionClass marks a leading stage direction such as "*creaks*".
const actionClass = "action"

var md = goldmark.New(
	goldmark.WithExtensions(extension.Strikethrough),
	goldmark.WithRendererOptions(
		ghtml.WithHardWraps(),
		renderer.WithNodeRenderers(util.Prioritized(&replyRenderer{}, 100)),
	),
)

// ToHTML renders a reply as HTML. A leading emphasis span becomes
// <em class="action">. Links and images are reduced to their text.
func ToHTML(reply string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(reply), &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// replyRenderer overrides the goldmark defaults for nodes a reply should not
// carry through as-is.
type replyRenderer struct{}

func (r *replyRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindEmphasis, r.renderEmphasis)
	reg.Register(ast.KindLink, r.renderPassThrough)
	reg.Register(ast.KindAutoLink, r.renderAutoLink)
	reg.Register(ast.KindImage, r.renderImage)
	reg.Register(ast.KindRawHTML, r.renderRawHTML)
	reg.Register(ast.KindHTMLBlock, r.renderHTMLBlock)
}

func (r *replyRenderer) renderEmphasis(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.Emphasis)
	tag := "em"
	if n.Level == 2 {
		tag = "strong"
	}
	if entering {
		if tag == "em" && isLeading(n) {
			_, _ = w.WriteString(`<em class="` + actionClass + `">`)
		} else {
			_, _ = w.WriteString("<" + tag + ">")
		}
	} else {
		_, _ = w.WriteString("</" + tag + ">")
	}
	return ast.WalkContinue, nil
}

// isLeading reports whether n is the first inline of the first paragraph.
func isLeading(n ast.Node) bool {
	parent := n.Parent()
	if parent == nil || parent.FirstChild() != n {
		return false
	}
	doc := parent.Parent()
	return doc != nil && doc.Kind() == ast.KindDocument && doc.FirstChild() == parent
}

func (r *replyRenderer) renderPassThrough(_ util.BufWriter, _ []byte, _ ast.Node, _ bool) (ast.WalkStatus, error) {
	return ast.WalkContinue, nil
}

func (r *replyRenderer) renderAutoLink(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		n := node.(*ast.AutoLink)
		_, _ = w.Write(util.EscapeHTML(n.Label(source)))
	}
	return ast.WalkContinue, nil
}

func (r *replyRenderer) renderImage(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		_, _ = w.Write(util.EscapeHTML(nodeText(node, source)))
	}
	return ast.WalkSkipChildren, nil
}

func (r *replyRenderer) renderRawHTML(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		n := node.(*ast.RawHTML)
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			_, _ = w.Write(util.EscapeHTML(seg.Value(source)))
		}
	}
	return ast.WalkSkipChildren, nil
}

func (r *replyRenderer) renderHTMLBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		n := node.(*ast.HTMLBlock)
		var raw bytes.Buffer
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			raw.Write(seg.Value(source))
		}
		if n.HasClosure() {
			raw.Write(n.ClosureLine.Value(source))
		}
		_, _ = w.WriteString("<p>")
		_, _ = w.Write(util.EscapeHTML(bytes.TrimSpace(raw.Bytes())))
		_, _ = w.WriteString("</p>\n")
	}
	return ast.WalkSkipChildren, nil
}

// nodeText concatenates the text segments under node.
func nodeText(node ast.Node, source []byte) []byte {
	var buf bytes.Buffer
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if t, ok := n.(*ast.Text); ok {
				buf.Write(t.Segment.Value(source))
			}
		}
		return ast.WalkContinue, nil
	})
	return buf.Bytes()
}
