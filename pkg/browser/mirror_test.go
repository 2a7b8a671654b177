package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/dtnitsch/ragebait-block/models"
	"github.com/dtnitsch/ragebait-block/pkg/blocker"
	"github.com/dtnitsch/ragebait-block/pkg/dom"
	"github.com/dtnitsch/ragebait-block/pkg/settings"
)

const postTitle = "Everyone is furious about this terrible news story"

type countingClassifier struct {
	calls atomic.Int32
}

func (c *countingClassifier) Classify(ctx context.Context, text string) models.Verdict {
	c.calls.Add(1)
	return models.Verdict{Labels: []models.LabelScore{{Label: "NEGATIVE", Score: 0.99}}}
}

func post(articleID, titleID int, text string) string {
	return fmt.Sprintf(`<article data-ragebait-id="%d"><faceplate-screen-reader-content data-ragebait-id="%d">%s</faceplate-screen-reader-content></article>`,
		articleID, titleID, text)
}

// snapshot is what Session.HTML returns for a feed with one titled post
// (4) and one post (6) whose title has not loaded yet.
func snapshot() string {
	return `<html data-ragebait-id="1"><head data-ragebait-id="2"></head><body data-ragebait-id="3">` +
		post(4, 5, postTitle) +
		`<article data-ragebait-id="6"></article></body></html>`
}

func payload(t *testing.T, adds ...Addition) string {
	t.Helper()
	b, err := json.Marshal(adds)
	require.NoError(t, err)
	return string(b)
}

func attach(t *testing.T, markup string) (*dom.Document, *blocker.Blocker, *countingClassifier) {
	t.Helper()
	doc, err := dom.ParseString(markup)
	require.NoError(t, err)
	t.Cleanup(doc.Close)

	c := &countingClassifier{}
	b, err := blocker.Attach(context.Background(), doc, blocker.Config{
		Hostname:   "reddit.com",
		Settings:   settings.Defaults(),
		Classifier: c,
	})
	require.NoError(t, err)
	return doc, b, c
}

func articles(doc *dom.Document) []*html.Node {
	var out []*html.Node
	doc.Do(func(root *html.Node) {
		out = cascadia.MustCompile("article").MatchAll(root)
	})
	return out
}

func TestMirrorNestedInsertAndReinsert(t *testing.T) {
	doc, b, c := attach(t, snapshot())
	m := newMirror(doc, slog.Default())
	require.Eventually(t, func() bool { return c.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	before := articles(doc)
	require.Len(t, before, 2)

	// The title of post 6 arrives inside the existing article.
	m.receive(payload(t, Addition{
		Parent: "6",
		HTML:   `<faceplate-screen-reader-content data-ragebait-id="7">` + postTitle + ` (late)</faceplate-screen-reader-content>`,
	}))
	assert.Eventually(t, func() bool { return c.calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	// Post 4 is removed and put back by the page, then a new post follows.
	m.receive(payload(t,
		Addition{Parent: "3", HTML: post(4, 5, postTitle)},
		Addition{Parent: "3", HTML: post(8, 9, postTitle+" (new)")},
	))
	assert.Eventually(t, func() bool { return c.calls.Load() == 3 }, time.Second, 5*time.Millisecond)

	stats := b.Finish()
	assert.Equal(t, int32(3), c.calls.Load())
	assert.Equal(t, 3, stats.Submitted)
	assert.Equal(t, 3, stats.Hidden)

	after := articles(doc)
	require.Len(t, after, 3)
	assert.Same(t, before[1], after[0])
	assert.Same(t, before[0], after[1])

	doc.Do(func(root *html.Node) {
		title := after[0].FirstChild
		require.NotNil(t, title)
		assert.Equal(t, "7", mustAttr(t, title, IDAttr))
		for _, a := range after {
			assert.Equal(t, "none", dom.Style(a, "display"))
		}
	})
}

func TestMirrorTextAddition(t *testing.T) {
	doc, b, c := attach(t, snapshot())
	m := newMirror(doc, slog.Default())

	m.receive(payload(t, Addition{Parent: "3", HTML: post(10, 11, "")}))
	m.receive(payload(t, Addition{Parent: "11", Text: postTitle}))
	assert.Eventually(t, func() bool { return c.calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	stats := b.Finish()
	assert.Equal(t, 2, stats.Hidden)
	assert.Len(t, articles(doc), 3)
}

func TestMirrorUnknownParentUsesBody(t *testing.T) {
	doc, err := dom.ParseString(snapshot())
	require.NoError(t, err)
	m := newMirror(doc, slog.Default())

	m.receive(payload(t, Addition{Parent: "404", HTML: `<p data-ragebait-id="12">stray</p>`}))

	doc.Do(func(root *html.Node) {
		p := cascadia.MustCompile("p").MatchFirst(root)
		require.NotNil(t, p)
		assert.True(t, dom.IsElement(p.Parent, "body"))
	})
	assert.Contains(t, m.nodes, "12")
}

func mustAttr(t *testing.T, n *html.Node, key string) string {
	t.Helper()
	v, ok := dom.Attr(n, key)
	require.True(t, ok)
	return v
}
