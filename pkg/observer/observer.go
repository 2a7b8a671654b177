// Package observer rescans subtrees as they are added to a document.
package observer

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/net/html"

	"github.com/dtnitsch/ragebait-block/pkg/dom"
)

// Scanner is the part of scanner.Scanner the observer drives.
type Scanner interface {
	Scan(node *html.Node)
}

// Observer feeds every added node to the scanner, one scan per node.
type Observer struct {
	doc     *dom.Document
	scanner Scanner
	logger  *slog.Logger

	mu     sync.Mutex
	sub    *dom.Subscription
	cancel context.CancelFunc
	done   chan struct{}
}

func New(doc *dom.Document, scanner Scanner, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{doc: doc, scanner: scanner, logger: logger}
}

// Start subscribes to the document. Mutations made before Start are not
// seen, so callers subscribe first and scan the existing tree second.
func (o *Observer) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sub != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	o.sub = o.doc.Subscribe(16)
	o.cancel = cancel
	o.done = make(chan struct{})

	go o.loop(ctx, o.sub, o.done)
}

func (o *Observer) loop(ctx context.Context, sub *dom.Subscription, done chan struct{}) {
	defer close(done)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case rec := <-sub.C:
			o.logger.Debug("mutation observed", "added", len(rec.AddedNodes))
			for _, n := range rec.AddedNodes {
				o.scanner.Scan(n)
			}
		}
	}
}

// Stop unsubscribes and waits for the current batch to finish.
func (o *Observer) Stop() {
	o.mu.Lock()
	cancel, done := o.cancel, o.done
	o.sub, o.cancel, o.done = nil, nil, nil
	o.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
