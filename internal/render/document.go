// Package render loads pages into a browser-like session and exposes
// selector queries against the rendered DOM.
package render

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoPage is returned when a document is requested before any page was loaded.
var ErrNoPage = errors.New("no page loaded")

// Document is a parsed snapshot of a rendered page.
type Document struct {
	doc  *goquery.Document
	base *url.URL
}

// NewDocument parses html as the DOM of pageURL.
func NewDocument(html, pageURL string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	return &Document{doc: doc, base: base}, nil
}

// URL returns the address the document was loaded from.
func (d *Document) URL() string {
	return d.base.String()
}

// QueryAll returns every element matching selector, in document order.
func (d *Document) QueryAll(selector string) []Element {
	return wrap(d.doc.Find(selector), d.base)
}

// QueryOne returns the first element matching selector.
func (d *Document) QueryOne(selector string) (Element, bool) {
	return first(d.doc.Find(selector), d.base)
}

// Element is a single node of a Document.
type Element struct {
	sel  *goquery.Selection
	base *url.URL
}

// Text returns the element's text with whitespace runs collapsed.
func (e Element) Text() string {
	return strings.Join(strings.Fields(e.sel.Text()), " ")
}

// Attr returns the trimmed value of an attribute.
func (e Element) Attr(name string) (string, bool) {
	v, ok := e.sel.Attr(name)
	return strings.TrimSpace(v), ok
}

// Href returns the element's href resolved against the document URL, or ""
// when it has none.
func (e Element) Href() string {
	raw, ok := e.Attr("href")
	if !ok || raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if e.base == nil {
		return ref.String()
	}
	return e.base.ResolveReference(ref).String()
}

// Find returns the first descendant matching selector.
func (e Element) Find(selector string) (Element, bool) {
	return first(e.sel.Find(selector), e.base)
}

func wrap(sel *goquery.Selection, base *url.URL) []Element {
	out := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, Element{sel: s, base: base})
	})
	return out
}

func first(sel *goquery.Selection, base *url.URL) (Element, bool) {
	if sel.Length() == 0 {
		return Element{}, false
	}
	return Element{sel: sel.First(), base: base}, true
}
