// Package presenter applies verdicts to post containers.
package presenter

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/dtnitsch/ragebait-block/models"
	"github.com/dtnitsch/ragebait-block/pkg/dom"
)

// BadgeClass marks badges so reports and tests can find them.
const BadgeClass = "ragebait-badge"

const badgeStyle = "position:absolute;top:0;right:0;background:red;color:white;" +
	"font:bold 11px monospace;padding:2px 6px;z-index:999999;" +
	"border-radius:0 0 0 4px;pointer-events:none;"

// Presenter writes to containers of one document. Callers must not hold
// the document lock.
type Presenter struct {
	doc *dom.Document
}

func New(doc *dom.Document) *Presenter {
	return &Presenter{doc: doc}
}

// Hide removes the container from view.
func (p *Presenter) Hide(container *html.Node) {
	p.doc.Do(func(*html.Node) {
		dom.SetStyle(container, "display", "none")
	})
}

// Annotate outlines the container and pins a badge listing every label
// and score.
func (p *Presenter) Annotate(container *html.Node, v models.Verdict) {
	badge := dom.NewElement("div",
		html.Attribute{Key: "class", Val: BadgeClass},
		html.Attribute{Key: "style", Val: badgeStyle},
	)
	badge.AppendChild(dom.NewText(BadgeText(v)))

	p.doc.Do(func(*html.Node) {
		dom.SetStyle(container, "outline", "3px solid red")
		dom.SetStyle(container, "position", "relative")
		container.AppendChild(badge)
	})
}

// BadgeText formats labels as "LABEL: 0.970 | OTHER: 0.030".
func BadgeText(v models.Verdict) string {
	parts := make([]string, 0, len(v.Labels))
	for _, l := range v.Labels {
		parts = append(parts, fmt.Sprintf("%s: %.3f", l.Label, l.Score))
	}
	return strings.Join(parts, " | ")
}
