package filter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtnitsch/ragebait-block/models"
	"github.com/dtnitsch/ragebait-block/pkg/parser"
	"github.com/dtnitsch/ragebait-block/pkg/report"
	"github.com/dtnitsch/ragebait-block/pkg/settings"
	"github.com/dtnitsch/ragebait-block/pkg/storage"
)

const title = "Everyone is furious about this terrible news story"

type mapFetcher map[string]string

func (m mapFetcher) GetHtmlBytes(_ context.Context, url string) ([]byte, error) {
	page, ok := m[url]
	if !ok {
		return nil, errors.New("unexpected status code: 404")
	}
	return []byte(page), nil
}

type toxicClassifier struct{}

func (toxicClassifier) Classify(context.Context, string) models.Verdict {
	return models.Verdict{Labels: []models.LabelScore{{Label: "NEGATIVE", Score: 0.99}}}
}

func newPipeline(t *testing.T, pages mapFetcher) *pipeline {
	t.Helper()
	return &pipeline{
		fetcher:    pages,
		parser:     &parser.Parser{},
		storage:    storage.New(t.TempDir()),
		settings:   settings.Defaults(),
		classifier: toxicClassifier{},
		scanners:   2,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestRun(t *testing.T) {
	reddit := "https://www.reddit.com/r/news"
	bbc := "https://www.bbc.com/news"
	missing := "https://www.reddit.com/r/gone"

	page := `<html><body><article><faceplate-screen-reader-content>` + title + `</faceplate-screen-reader-content></article></body></html>`
	p := newPipeline(t, mapFetcher{reddit: page, bbc: page})

	results := run(context.Background(), p, []string{reddit, bbc, missing}, 2)
	require.Len(t, results, 3)

	byURL := map[string]report.PageResult{}
	for _, r := range results {
		byURL[r.URL] = r
	}

	got := byURL[reddit]
	require.NoError(t, got.Error)
	assert.Nil(t, got.Skipped)
	assert.Equal(t, "reddit.com", got.Site)
	assert.Equal(t, 1, got.Stats.Hidden)
	data, err := os.ReadFile(got.OutputPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<article style="display: none;">`)

	got = byURL[bbc]
	require.NoError(t, got.Error)
	assert.NotNil(t, got.Skipped, "bbc.com is disabled by default")
	data, err = os.ReadFile(got.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, page, string(data))

	assert.Error(t, byURL[missing].Error)
}

func TestRunCanceled(t *testing.T) {
	p := newPipeline(t, mapFetcher{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := run(ctx, p, []string{"https://www.reddit.com/"}, 1)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Error, context.Canceled)
}

func TestProcessWritesUnderStorage(t *testing.T) {
	p := newPipeline(t, nil)

	res := p.process(context.Background(), "https://www.youtube.com/feed", []byte(`<html><body></body></html>`))
	require.NoError(t, res.Error)
	assert.Equal(t, "youtube.com", res.Site)
	assert.Equal(t, p.storage.BaseDir, filepath.Dir(res.OutputPath))
	assert.True(t, strings.HasSuffix(res.OutputPath, "www.youtube.com-feed.html"))
}
