package presenter

import (
	"testing"

	"github.com/andybalholm/cascadia"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/dtnitsch/ragebait-block/models"
	"github.com/dtnitsch/ragebait-block/pkg/dom"
)

func TestBadgeText(t *testing.T) {
	tests := []struct {
		name   string
		labels []models.LabelScore
		want   string
	}{
		{"single", []models.LabelScore{{Label: "NEGATIVE", Score: 0.97}}, "NEGATIVE: 0.970"},
		{"rounding", []models.LabelScore{{Label: "NEGATIVE", Score: 0.99987}}, "NEGATIVE: 1.000"},
		{
			"several",
			[]models.LabelScore{{Label: "NEGATIVE", Score: 0.9612}, {Label: "POSITIVE", Score: 0.0388}},
			"NEGATIVE: 0.961 | POSITIVE: 0.039",
		},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BadgeText(models.Verdict{Labels: tt.labels}))
		})
	}
}

func setup(t *testing.T) (*dom.Document, *html.Node) {
	t.Helper()
	doc, err := dom.ParseString(`<html><body><article style="color: blue"><h2>Title</h2></article></body></html>`)
	require.NoError(t, err)

	var article *html.Node
	doc.Do(func(root *html.Node) {
		article = cascadia.MustCompile("article").MatchFirst(root)
	})
	require.NotNil(t, article)
	return doc, article
}

func TestHide(t *testing.T) {
	doc, article := setup(t)
	New(doc).Hide(article)

	doc.Do(func(*html.Node) {
		assert.Equal(t, "none", dom.Style(article, "display"))
		assert.Equal(t, "blue", dom.Style(article, "color"))
	})
}

func TestAnnotate(t *testing.T) {
	doc, article := setup(t)
	New(doc).Annotate(article, models.Verdict{Labels: []models.LabelScore{{Label: "NEGATIVE", Score: 0.97}}})

	doc.Do(func(*html.Node) {
		assert.Equal(t, "3px solid red", dom.Style(article, "outline"))
		assert.Equal(t, "relative", dom.Style(article, "position"))
		assert.Empty(t, dom.Style(article, "display"))

		badge := article.LastChild
		require.NotNil(t, badge)
		class, _ := dom.Attr(badge, "class")
		assert.Equal(t, BadgeClass, class)
		style, _ := dom.Attr(badge, "style")
		assert.Equal(t, badgeStyle, style)
		assert.Equal(t, "NEGATIVE: 0.970", dom.TextContent(badge))
	})
}
