package dom

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document is a parsed snapshot of the observed page.
type Document struct {
	doc *goquery.Document
}

// Parse builds a Document from serialized HTML.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return &Document{doc: goquery.NewDocumentFromNode(root)}, nil
}

// ParseString is Parse over an in-memory string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Find runs a CSS selector against the whole document.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

// First returns the first element matching selector, or nil.
func (d *Document) First(selector string) *goquery.Selection {
	sel := d.doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil
	}
	return sel
}

// Attr returns the attribute value of the first node in sel, or "".
func Attr(sel *goquery.Selection, name string) string {
	if sel == nil {
		return ""
	}
	v, _ := sel.Attr(name)
	return v
}

// Classes splits the class attribute into tokens.
func Classes(sel *goquery.Selection) []string {
	return strings.Fields(Attr(sel, "class"))
}
