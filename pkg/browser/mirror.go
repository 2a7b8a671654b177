package browser

import (
	"encoding/json"
	"log/slog"

	"golang.org/x/net/html"

	"github.com/dtnitsch/ragebait-block/pkg/dom"
)

// IDAttr is the attribute the injected scripts stamp on every element so
// nodes keep one identity across the browser and the Go document.
const IDAttr = "data-ragebait-id"

// Addition is one node the page inserted. Parent is the IDAttr of the
// element it went under. Exactly one of HTML and Text is set.
type Addition struct {
	Parent string `json:"parent"`
	HTML   string `json:"html,omitempty"`
	Text   string `json:"text,omitempty"`
}

// decodeAdditions parses the JSON array the injected observer sends and
// drops entries that carry no content.
func decodeAdditions(payload string) ([]Addition, error) {
	var adds []Addition
	if err := json.Unmarshal([]byte(payload), &adds); err != nil {
		return nil, err
	}
	out := adds[:0]
	for _, a := range adds {
		if a.HTML != "" || a.Text != "" {
			out = append(out, a)
		}
	}
	return out, nil
}

// mirror replays browser insertions into a dom.Document. Elements the
// document already holds are moved rather than duplicated, so a container
// the page re-inserts stays the same *html.Node.
type mirror struct {
	doc    *dom.Document
	nodes  map[string]*html.Node
	logger *slog.Logger
}

func newMirror(doc *dom.Document, logger *slog.Logger) *mirror {
	m := &mirror{doc: doc, nodes: make(map[string]*html.Node), logger: logger}
	doc.Do(m.index)
	return m
}

// index records every tagged element under n. Callers hold the document
// lock.
func (m *mirror) index(n *html.Node) {
	if n.Type == html.ElementNode {
		if id, ok := dom.Attr(n, IDAttr); ok && id != "" {
			m.nodes[id] = n
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		m.index(c)
	}
}

func (m *mirror) adopt(n *html.Node) *html.Node {
	id, ok := dom.Attr(n, IDAttr)
	if !ok || id == "" {
		return nil
	}
	return m.nodes[id]
}

// receive applies one binding payload.
func (m *mirror) receive(payload string) {
	adds, err := decodeAdditions(payload)
	if err != nil {
		m.logger.Warn("failed to parse binding payload", "error", err)
		return
	}
	for _, a := range adds {
		if err := m.apply(a); err != nil {
			m.logger.Warn("failed to append addition", "parent", a.Parent, "error", err)
		}
	}
}

func (m *mirror) apply(a Addition) error {
	parent, ok := m.nodes[a.Parent]
	if !ok {
		m.logger.Debug("unknown parent, appending to body", "parent", a.Parent)
		parent = m.doc.Body()
	}

	if a.HTML == "" {
		m.doc.AppendChild(parent, dom.NewText(a.Text))
		return nil
	}

	nodes, err := m.doc.AppendHTMLWith(parent, a.HTML, m.adopt)
	if err != nil {
		return err
	}
	m.doc.Do(func(*html.Node) {
		for _, n := range nodes {
			m.index(n)
		}
	})
	return nil
}
