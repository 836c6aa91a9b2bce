package extractor

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/baxromumarov/job-extractor/internal/observability"
)

// SelectorChain is an ordered list of CSS selectors. Earlier selectors win:
// current site markup first, generic fallbacks last.
type SelectorChain []string

type compiledSelector struct {
	sel cascadia.Selector
	err error
}

var selectorCache sync.Map // string -> compiledSelector

func compile(selector string) (cascadia.Selector, error) {
	if v, ok := selectorCache.Load(selector); ok {
		c := v.(compiledSelector)
		return c.sel, c.err
	}
	sel, err := cascadia.Compile(selector)
	selectorCache.Store(selector, compiledSelector{sel: sel, err: err})
	return sel, err
}

// Text returns the rendered text of the first non-empty element matched by
// the chain. A selector that fails to compile is skipped.
func (c SelectorChain) Text(doc *goquery.Document) (string, bool) {
	if doc == nil {
		return "", false
	}
	for _, selector := range c {
		sel, err := compile(selector)
		if err != nil {
			slog.Debug("invalid selector skipped", "selector", selector, "error", err)
			observability.IncSelectorFailure()
			continue
		}
		for _, node := range sel.MatchAll(doc.Get(0)) {
			if text := strings.TrimSpace(renderedText(node)); text != "" {
				return text, true
			}
		}
	}
	return "", false
}

var (
	inlineSpace   = regexp.MustCompile(`[ \t\r\n\f]+`)
	hiddenStyleRe = regexp.MustCompile(`(?i)(display\s*:\s*none|visibility\s*:\s*hidden)`)
)

var blockElements = map[atom.Atom]struct{}{
	atom.Address: {}, atom.Article: {}, atom.Aside: {}, atom.Blockquote: {},
	atom.Dd: {}, atom.Div: {}, atom.Dl: {}, atom.Dt: {}, atom.Fieldset: {},
	atom.Figcaption: {}, atom.Figure: {}, atom.Footer: {}, atom.Form: {},
	atom.H1: {}, atom.H2: {}, atom.H3: {}, atom.H4: {}, atom.H5: {}, atom.H6: {},
	atom.Header: {}, atom.Hr: {}, atom.Li: {}, atom.Main: {}, atom.Nav: {},
	atom.Ol: {}, atom.P: {}, atom.Pre: {}, atom.Section: {}, atom.Table: {},
	atom.Tr: {}, atom.Ul: {},
}

var unrenderedElements = map[atom.Atom]struct{}{
	atom.Script: {}, atom.Style: {}, atom.Noscript: {}, atom.Template: {},
	atom.Head: {}, atom.Title: {}, atom.Meta: {}, atom.Link: {}, atom.Iframe: {},
}

// renderedText approximates innerText: unrendered subtrees are skipped,
// whitespace inside text runs collapses, and block boundaries become line
// breaks. Elements outside the HTML namespace and elements that are not
// rendered themselves fall back to raw text content.
func renderedText(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.ElementNode && (n.Namespace != "" || isHidden(n)) {
		return textContent(n)
	}
	var sb strings.Builder
	writeRendered(&sb, n, false)

	lines := strings.Split(sb.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func writeRendered(sb *strings.Builder, n *html.Node, pre bool) {
	switch n.Type {
	case html.TextNode:
		if pre {
			sb.WriteString(n.Data)
			return
		}
		sb.WriteString(inlineSpace.ReplaceAllString(n.Data, " "))
		return
	case html.ElementNode:
		if _, skip := unrenderedElements[n.DataAtom]; skip {
			return
		}
		if isHidden(n) {
			return
		}
		if n.DataAtom == atom.Br {
			sb.WriteByte('\n')
			return
		}
		if n.DataAtom == atom.Td || n.DataAtom == atom.Th {
			sb.WriteByte(' ')
		}
	case html.DocumentNode:
	default:
		return
	}

	_, block := blockElements[n.DataAtom]
	if n.Type == html.ElementNode && block {
		sb.WriteByte('\n')
	}
	pre = pre || n.DataAtom == atom.Pre
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeRendered(sb, c, pre)
	}
	if n.Type == html.ElementNode && block {
		sb.WriteByte('\n')
	}
}

func isHidden(n *html.Node) bool {
	for _, a := range n.Attr {
		switch a.Key {
		case "hidden":
			return true
		case "style":
			if hiddenStyleRe.MatchString(a.Val) {
				return true
			}
		}
	}
	return false
}

// textContent concatenates every descendant text node.
func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return sb.String()
}
