// Package blocker attaches a scanner and observer to a page the way the
// content script did on load.
package blocker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dtnitsch/ragebait-block/models"
	"github.com/dtnitsch/ragebait-block/pkg/dom"
	"github.com/dtnitsch/ragebait-block/pkg/metrics"
	"github.com/dtnitsch/ragebait-block/pkg/observer"
	"github.com/dtnitsch/ragebait-block/pkg/scanner"
	"github.com/dtnitsch/ragebait-block/pkg/sites"
)

var (
	// ErrSiteNotSupported means the hostname matches no site table entry.
	ErrSiteNotSupported = errors.New("site not supported")
	// ErrSiteDisabled means the site is known but switched off in settings.
	ErrSiteDisabled = errors.New("site disabled in settings")
)

type Config struct {
	Hostname   string
	Settings   *models.Settings
	Classifier scanner.Classifier
	Workers    int
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Resolve picks the site for hostname and checks it is enabled.
func Resolve(hostname string, settings *models.Settings) (sites.Site, error) {
	site, ok := sites.Lookup(hostname)
	if !ok {
		return sites.Site{}, fmt.Errorf("%s: %w", hostname, ErrSiteNotSupported)
	}
	if !settings.SiteEnabled(site.Key) {
		return sites.Site{}, fmt.Errorf("%s: %w", site.Key, ErrSiteDisabled)
	}
	return site, nil
}

// Inert reports whether err means the page should be left alone.
func Inert(err error) bool {
	return errors.Is(err, ErrSiteNotSupported) || errors.Is(err, ErrSiteDisabled)
}

// Blocker is one page load's scanner and observer.
type Blocker struct {
	Site     sites.Site
	scanner  *scanner.Scanner
	observer *observer.Observer
	logger   *slog.Logger
}

// Attach starts observing doc and scans its body. It returns an error
// satisfying Inert, and touches nothing, when the site is unknown or
// disabled.
func Attach(ctx context.Context, doc *dom.Document, cfg Config) (*Blocker, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	site, err := Resolve(cfg.Hostname, cfg.Settings)
	if err != nil {
		return nil, err
	}

	sc, err := scanner.New(scanner.Config{
		Doc:        doc,
		Site:       site,
		Settings:   cfg.Settings,
		Classifier: cfg.Classifier,
		Workers:    cfg.Workers,
		Metrics:    cfg.Metrics,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}

	obs := observer.New(doc, sc, cfg.Logger)
	obs.Start(ctx)
	sc.Scan(doc.Body())

	cfg.Logger.Info("blocker attached", "site", site.Key, "page_id", sc.PageID())
	return &Blocker{Site: site, scanner: sc, observer: obs, logger: cfg.Logger}, nil
}

// PageID identifies the page load.
func (b *Blocker) PageID() string {
	return b.scanner.PageID()
}

// Stats returns the scanner counters.
func (b *Blocker) Stats() scanner.Stats {
	return b.scanner.Stats()
}

// Finish stops observing, lets in-flight classifications land and
// releases the scanner.
func (b *Blocker) Finish() scanner.Stats {
	b.observer.Stop()
	b.scanner.Wait()
	stats := b.scanner.Stats()
	b.scanner.Close()
	return stats
}

// Detach stops observing and abandons in-flight classifications.
func (b *Blocker) Detach() {
	b.observer.Stop()
	b.scanner.Close()
}

// Result is the outcome of filtering one static page.
type Result struct {
	HTML   []byte
	Site   string
	PageID string
	Stats  scanner.Stats
	// Skipped holds the reason the page was returned untouched.
	Skipped error
}

// FilterHTML runs the blocker over a complete page and returns it with
// toxic posts hidden or annotated. Pages on unknown or disabled sites come
// back byte for byte.
func FilterHTML(ctx context.Context, r io.Reader, cfg Config) (*Result, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}

	if _, err := Resolve(cfg.Hostname, cfg.Settings); err != nil {
		return &Result{HTML: raw, Skipped: err}, nil
	}

	doc, err := dom.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	b, err := Attach(ctx, doc, cfg)
	if err != nil {
		return nil, err
	}
	stats := b.Finish()

	out, err := doc.HTML()
	if err != nil {
		return nil, err
	}
	return &Result{HTML: []byte(out), Site: b.Site.Key, PageID: b.PageID(), Stats: stats}, nil
}
