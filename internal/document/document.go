// Package document wraps goquery with the small set of queries the
// extractor and link discovery need.
package document

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
)

// BlockKinds are the element names scanned for category mentions.
var BlockKinds = []string{"div", "p", "td", "tr", "li"}

// Document is a parsed HTML page.
type Document struct {
	doc *goquery.Document
}

// Parse builds a Document from raw markup.
func Parse(markup string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, eris.Wrap(err, "document: parse html")
	}
	return &Document{doc: doc}, nil
}

// FindByText returns elements of the given kinds, in document order, whose
// own string matches pattern. An element has its own string when its only
// child is a text node, or its only child is an element that itself has
// one.
func (d *Document) FindByText(kinds []string, pattern *regexp.Regexp) []*goquery.Selection {
	var out []*goquery.Selection
	d.doc.Find(strings.Join(kinds, ",")).Each(func(_ int, s *goquery.Selection) {
		text, ok := ownString(s.Get(0))
		if ok && pattern.MatchString(text) {
			out = append(out, s)
		}
	})
	return out
}

// Tables returns every table element in document order.
func (d *Document) Tables() []*goquery.Selection {
	var out []*goquery.Selection
	d.doc.Find("table").Each(func(_ int, s *goquery.Selection) {
		out = append(out, s)
	})
	return out
}

// TableMentions reports whether any text node inside table matches pattern.
func TableMentions(table *goquery.Selection, pattern *regexp.Regexp) bool {
	found := false
	for _, n := range table.Nodes {
		walk(n, func(c *html.Node) bool {
			if c.Type == html.TextNode && pattern.MatchString(c.Data) {
				found = true
			}
			return !found
		})
	}
	return found
}

// TableCells returns the rows and cells of table in document order.
func TableCells(table *goquery.Selection) []*goquery.Selection {
	var out []*goquery.Selection
	table.Find("tr,td").Each(func(_ int, s *goquery.Selection) {
		out = append(out, s)
	})
	return out
}

// VisibleText returns the whitespace-trimmed text nodes under s joined by
// single spaces. Script, style and noscript content is skipped.
func VisibleText(s *goquery.Selection) string {
	var parts []string
	for _, n := range s.Nodes {
		walk(n, func(c *html.Node) bool {
			if c.Type == html.ElementNode && hidden[c.Data] {
				return false
			}
			if c.Type == html.TextNode {
				if t := strings.TrimSpace(c.Data); t != "" {
					parts = append(parts, t)
				}
			}
			return true
		})
	}
	return strings.Join(parts, " ")
}

// Links returns the href of every anchor resolved against base, in
// document order. Fragment-only, javascript: and mailto: references and
// non-HTTP results are skipped.
func (d *Document) Links(base *url.URL) []string {
	var out []string
	d.doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		lower := strings.ToLower(href)
		if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		out = append(out, abs.String())
	})
	return out
}

var hidden = map[string]bool{"script": true, "style": true, "noscript": true}

// ownString mirrors the single-descendant-string rule used for text
// matching.
func ownString(n *html.Node) (string, bool) {
	if n == nil {
		return "", false
	}
	c := n.FirstChild
	if c == nil || c.NextSibling != nil {
		return "", false
	}
	switch c.Type {
	case html.TextNode:
		return c.Data, true
	case html.ElementNode:
		return ownString(c)
	default:
		return "", false
	}
}

// walk visits n and its descendants depth first. fn returning false
// prunes the subtree below the node.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}
