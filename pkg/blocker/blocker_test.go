package blocker

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/dtnitsch/ragebait-block/models"
	"github.com/dtnitsch/ragebait-block/pkg/dom"
	"github.com/dtnitsch/ragebait-block/pkg/settings"
)

const title = "Everyone is furious about this terrible news story"

type countingClassifier struct {
	calls atomic.Int32
	score float64
}

func (c *countingClassifier) Classify(ctx context.Context, text string) models.Verdict {
	c.calls.Add(1)
	return models.Verdict{Labels: []models.LabelScore{{Label: "NEGATIVE", Score: c.score}}}
}

func redditPage(n int) string {
	var b strings.Builder
	b.WriteString("<html><head></head><body>")
	for i := 0; i < n; i++ {
		b.WriteString(`<article><faceplate-screen-reader-content>` + title + `</faceplate-screen-reader-content></article>`)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func TestResolve(t *testing.T) {
	s := settings.Defaults()

	site, err := Resolve("www.reddit.com", s)
	require.NoError(t, err)
	assert.Equal(t, "reddit.com", site.Key)

	_, err = Resolve("www.bbc.co.uk", s)
	assert.ErrorIs(t, err, ErrSiteDisabled)
	assert.True(t, Inert(err))

	_, err = Resolve("example.org", s)
	assert.ErrorIs(t, err, ErrSiteNotSupported)
	assert.True(t, Inert(err))
}

func TestFilterHTMLHidesToxicPosts(t *testing.T) {
	c := &countingClassifier{score: 0.99}
	res, err := FilterHTML(context.Background(), strings.NewReader(redditPage(3)), Config{
		Hostname:   "www.reddit.com",
		Settings:   settings.Defaults(),
		Classifier: c,
	})
	require.NoError(t, err)

	assert.Nil(t, res.Skipped)
	assert.Equal(t, "reddit.com", res.Site)
	assert.NotEmpty(t, res.PageID)
	assert.Equal(t, int32(3), c.calls.Load())
	assert.Equal(t, 3, res.Stats.Hidden)
	assert.Equal(t, 3, strings.Count(string(res.HTML), `<article style="display: none;">`))
}

func TestFilterHTMLLeavesUnknownSiteUntouched(t *testing.T) {
	page := redditPage(2) + "\n<!-- trailing -->"
	c := &countingClassifier{score: 0.99}

	res, err := FilterHTML(context.Background(), strings.NewReader(page), Config{
		Hostname:   "example.org",
		Settings:   settings.Defaults(),
		Classifier: c,
	})
	require.NoError(t, err)

	assert.ErrorIs(t, res.Skipped, ErrSiteNotSupported)
	assert.Equal(t, page, string(res.HTML))
	assert.Equal(t, int32(0), c.calls.Load())
}

func TestFilterHTMLLeavesDisabledSiteUntouched(t *testing.T) {
	page := `<html><body><div data-testid="promo"><h3><a>` + title + `</a></h3></div></body></html>`
	c := &countingClassifier{score: 0.99}

	res, err := FilterHTML(context.Background(), strings.NewReader(page), Config{
		Hostname:   "www.bbc.com",
		Settings:   settings.Defaults(),
		Classifier: c,
	})
	require.NoError(t, err)

	assert.ErrorIs(t, res.Skipped, ErrSiteDisabled)
	assert.Equal(t, page, string(res.HTML))
	assert.Equal(t, int32(0), c.calls.Load())
}

func TestAttachScansLaterMutations(t *testing.T) {
	doc, err := dom.ParseString(redditPage(1))
	require.NoError(t, err)
	defer doc.Close()

	c := &countingClassifier{score: 0.99}
	b, err := Attach(context.Background(), doc, Config{
		Hostname:   "reddit.com",
		Settings:   settings.Defaults(),
		Classifier: c,
	})
	require.NoError(t, err)

	_, err = doc.AppendHTML(doc.Body(), `<article><faceplate-screen-reader-content>`+title+` (updated)</faceplate-screen-reader-content></article>`)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return c.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	stats := b.Finish()
	assert.Equal(t, 2, stats.Hidden)

	doc.Do(func(root *html.Node) {
		for _, a := range cascadia.MustCompile("article").MatchAll(root) {
			assert.Equal(t, "none", dom.Style(a, "display"))
		}
	})
}

func TestAttachInertLeavesDocumentAlone(t *testing.T) {
	doc, err := dom.ParseString(redditPage(1))
	require.NoError(t, err)
	before, err := doc.HTML()
	require.NoError(t, err)

	disabled := settings.Defaults()
	disabled.EnabledSites["reddit.com"] = false
	c := &countingClassifier{score: 0.99}

	_, err = Attach(context.Background(), doc, Config{Hostname: "reddit.com", Settings: disabled, Classifier: c})
	require.ErrorIs(t, err, ErrSiteDisabled)

	after, err := doc.HTML()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, int32(0), c.calls.Load())
}
