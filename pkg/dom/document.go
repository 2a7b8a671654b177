// Package dom wraps a parsed HTML tree with a lock that plays the role of
// the browser's UI thread, and reports appended subtrees to subscribers the
// way a MutationObserver would.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// MutationRecord lists the nodes added by one tree change.
type MutationRecord struct {
	AddedNodes []*html.Node
}

// Document is safe for concurrent use. Tree reads and writes go through Do
// or the Append methods; nodes obtained inside Do must not be touched
// after it returns except through another Do call.
type Document struct {
	mu   sync.Mutex
	root *html.Node

	subMu  sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return FromGoquery(doc), nil
}

// ParseString is Parse for an in-memory string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// FromGoquery takes ownership of an already parsed goquery document.
func FromGoquery(doc *goquery.Document) *Document {
	var root *html.Node
	if len(doc.Nodes) > 0 {
		root = doc.Nodes[0]
	} else {
		root = &html.Node{Type: html.DocumentNode}
	}
	return &Document{
		root: root,
		subs: make(map[*Subscription]struct{}),
	}
}

// Do runs fn with the document locked.
func (d *Document) Do(fn func(root *html.Node)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.root)
}

// Body returns the body element, or the root when the document has none.
// The node must only be used under Do or passed to Append methods.
func (d *Document) Body() *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	if body := goquery.NewDocumentFromNode(d.root).Find("body").First(); body.Length() > 0 {
		return body.Nodes[0]
	}
	return d.root
}

// AppendChild attaches child under parent and notifies subscribers.
func (d *Document) AppendChild(parent, child *html.Node) {
	d.mu.Lock()
	if child.Parent != nil {
		child.Parent.RemoveChild(child)
	}
	parent.AppendChild(child)
	d.mu.Unlock()

	d.notify(MutationRecord{AddedNodes: []*html.Node{child}})
}

// AppendHTML parses fragment in the context of parent, appends the
// resulting nodes and notifies subscribers with one record.
func (d *Document) AppendHTML(parent *html.Node, fragment string) ([]*html.Node, error) {
	return d.AppendHTMLWith(parent, fragment, nil)
}

// AppendHTMLWith is AppendHTML with a hook to keep node identity. adopt is
// called under the document lock for each parsed element, outermost first;
// when it returns a node already in the tree, that node is moved into the
// parsed element's place and its subtree is not visited. Nodes that are
// parent or one of its ancestors are never moved.
func (d *Document) AppendHTMLWith(parent *html.Node, fragment string, adopt func(*html.Node) *html.Node) ([]*html.Node, error) {
	d.mu.Lock()
	nodes, err := html.ParseFragment(strings.NewReader(fragment), fragmentContext(parent))
	if err != nil {
		d.mu.Unlock()
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}
	if adopt != nil {
		for i, n := range nodes {
			nodes[i] = adoptTree(n, parent, adopt)
		}
	}
	for _, n := range nodes {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		parent.AppendChild(n)
	}
	d.mu.Unlock()

	if len(nodes) > 0 {
		d.notify(MutationRecord{AddedNodes: nodes})
	}
	return nodes, nil
}

// adoptTree swaps parsed elements under n for the nodes adopt returns and
// returns what now stands in n's place.
func adoptTree(n, parent *html.Node, adopt func(*html.Node) *html.Node) *html.Node {
	if n.Type == html.ElementNode {
		if existing := adopt(n); existing != nil && existing != n && !isAncestorOrSelf(existing, parent) {
			if n.Parent != nil {
				if existing.Parent != nil {
					existing.Parent.RemoveChild(existing)
				}
				n.Parent.InsertBefore(existing, n)
				n.Parent.RemoveChild(n)
			}
			return existing
		}
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		adoptTree(c, parent, adopt)
		c = next
	}
	return n
}

func isAncestorOrSelf(n, of *html.Node) bool {
	for p := of; p != nil; p = p.Parent {
		if p == n {
			return true
		}
	}
	return false
}

// fragmentContext returns an element to parse fragments against. The
// document node itself is not a valid context.
func fragmentContext(parent *html.Node) *html.Node {
	if parent.Type == html.ElementNode {
		return parent
	}
	return NewElement("body")
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := html.Render(w, d.root); err != nil {
		return fmt.Errorf("failed to render HTML: %w", err)
	}
	return nil
}

// HTML returns the rendered document.
func (d *Document) HTML() (string, error) {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// OuterHTML renders a single node under the document lock.
func (d *Document) OuterHTML(n *html.Node) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", fmt.Errorf("failed to render node: %w", err)
	}
	return buf.String(), nil
}

// Close ends every subscription. Further appends notify nobody.
func (d *Document) Close() {
	d.subMu.Lock()
	subs := d.subs
	d.subs = make(map[*Subscription]struct{})
	d.closed = true
	d.subMu.Unlock()

	for s := range subs {
		s.stop()
	}
}
