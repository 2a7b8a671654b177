package observer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/dtnitsch/ragebait-block/pkg/dom"
)

type recordingScanner struct {
	mu    sync.Mutex
	nodes []*html.Node
}

func (r *recordingScanner) Scan(n *html.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes = append(r.nodes, n)
}

func (r *recordingScanner) scanned() []*html.Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*html.Node(nil), r.nodes...)
}

func TestEachAddedNodeIsScanned(t *testing.T) {
	doc, err := dom.ParseString("<html><body></body></html>")
	require.NoError(t, err)

	rec := &recordingScanner{}
	o := New(doc, rec, nil)
	o.Start(context.Background())
	defer o.Stop()

	first, err := doc.AppendHTML(doc.Body(), `<article>a</article><article>b</article>`)
	require.NoError(t, err)
	second, err := doc.AppendHTML(doc.Body(), `<article>c</article>`)
	require.NoError(t, err)

	want := append(first, second...)
	assert.Eventually(t, func() bool {
		return len(rec.scanned()) == len(want)
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, want, rec.scanned())
}

func TestStopEndsObservation(t *testing.T) {
	doc, err := dom.ParseString("<html><body></body></html>")
	require.NoError(t, err)

	rec := &recordingScanner{}
	o := New(doc, rec, nil)
	o.Start(context.Background())
	o.Stop()
	o.Stop()

	_, err = doc.AppendHTML(doc.Body(), `<p>late</p>`)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rec.scanned())
}

func TestDocumentCloseEndsLoop(t *testing.T) {
	doc, err := dom.ParseString("<html><body></body></html>")
	require.NoError(t, err)

	o := New(doc, &recordingScanner{}, nil)
	o.Start(context.Background())
	doc.Close()

	stopped := make(chan struct{})
	go func() {
		o.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("observer did not stop")
	}
}
