// Package scanner finds post titles in a document, submits each post for
// classification once, and hands toxic verdicts to the presenter.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/andybalholm/cascadia"
	"github.com/google/uuid"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/dtnitsch/ragebait-block/models"
	"github.com/dtnitsch/ragebait-block/pkg/dom"
	"github.com/dtnitsch/ragebait-block/pkg/metrics"
	"github.com/dtnitsch/ragebait-block/pkg/presenter"
	"github.com/dtnitsch/ragebait-block/pkg/sites"
)

// MinTextLength is the trimmed length a title must exceed to be classified.
const MinTextLength = 30

// DefaultWorkers bounds in-flight classifications per page.
const DefaultWorkers = 4

// Classifier returns a verdict for text. It must not panic and reports
// failures through Verdict.Error.
type Classifier interface {
	Classify(ctx context.Context, text string) models.Verdict
}

type Config struct {
	Doc        *dom.Document
	Site       sites.Site
	Settings   *models.Settings
	Classifier Classifier
	// Workers bounds concurrent classifications. Zero uses DefaultWorkers.
	Workers int
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Stats counts what a scanner did over its lifetime.
type Stats struct {
	Submitted int `json:"submitted"`
	Clean     int `json:"clean"`
	Toxic     int `json:"toxic"`
	Hidden    int `json:"hidden"`
	Annotated int `json:"annotated"`
	Errors    int `json:"errors"`
}

type job struct {
	container *html.Node
	text      string
}

// Scanner lives for one page load. Its processed set and in-flight
// classifications are discarded by Close.
type Scanner struct {
	doc        *dom.Document
	site       sites.Site
	container  cascadia.Matcher
	title      cascadia.Matcher
	thresholds map[string]float64
	debug      bool
	classifier Classifier
	presenter  *presenter.Presenter
	m          *metrics.Metrics
	logger     *slog.Logger
	pageID     string

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	// life guards closed. Scan holds it for reading while it spawns, so
	// Close never waits on the group while Go is adding to it.
	life   sync.RWMutex
	closed bool

	mu        sync.Mutex
	processed map[*html.Node]struct{}
	stats     Stats
}

// New compiles the site's selectors and snapshots thresholds and debug
// mode from settings.
func New(cfg Config) (*Scanner, error) {
	if cfg.Doc == nil {
		return nil, fmt.Errorf("document is required")
	}
	if cfg.Classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}

	container, err := cascadia.ParseGroup(cfg.Site.PostContainer)
	if err != nil {
		return nil, fmt.Errorf("failed to compile post container selector for %s: %w", cfg.Site.Key, err)
	}

	var title cascadia.Matcher
	if cfg.Site.TitleSelector != "" {
		group, err := cascadia.ParseGroup(cfg.Site.TitleSelector)
		if err != nil {
			return nil, fmt.Errorf("failed to compile title selector for %s: %w", cfg.Site.Key, err)
		}
		title = group
	}

	thresholds := map[string]float64{}
	debug := false
	if cfg.Settings != nil {
		for k, v := range cfg.Settings.Thresholds {
			thresholds[k] = v
		}
		debug = cfg.Settings.DebugMode
	}

	ctx, cancel := context.WithCancel(context.Background())
	group := &errgroup.Group{}
	group.SetLimit(cfg.Workers)

	pageID := uuid.NewString()
	return &Scanner{
		doc:        cfg.Doc,
		site:       cfg.Site,
		container:  container,
		title:      title,
		thresholds: thresholds,
		debug:      debug,
		classifier: cfg.Classifier,
		presenter:  presenter.New(cfg.Doc),
		m:          cfg.Metrics,
		logger:     cfg.Logger.With("site", cfg.Site.Key, "page_id", pageID),
		pageID:     pageID,
		ctx:        ctx,
		cancel:     cancel,
		group:      group,
		processed:  make(map[*html.Node]struct{}),
	}, nil
}

// PageID identifies this page load in logs and reports.
func (s *Scanner) PageID() string {
	return s.pageID
}

// Scan walks the subtree at node and submits qualifying titles. It
// returns once the walk is done; classifications finish in the
// background. Scan must not be called with the document lock held. It
// may run concurrently with Close.
func (s *Scanner) Scan(node *html.Node) {
	if node == nil {
		return
	}

	s.life.RLock()
	defer s.life.RUnlock()
	if s.closed {
		return
	}

	var jobs []job
	s.doc.Do(func(*html.Node) {
		jobs = s.walk(node, jobs)
	})

	for _, j := range jobs {
		s.group.Go(func() error {
			s.classify(j)
			return nil
		})
	}
}

func (s *Scanner) walk(n *html.Node, jobs []job) []job {
	if n.Type != html.TextNode {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			jobs = s.walk(c, jobs)
		}
		return jobs
	}

	parent := n.Parent
	if parent == nil || dom.IsElement(parent, "textarea") || dom.IsElement(parent, "input") {
		return jobs
	}

	container := dom.Closest(parent, s.container)
	if container == nil {
		return jobs
	}

	// The check and the mark happen under one lock so no two walks can
	// submit the same container.
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, done := s.processed[container]; done {
		return jobs
	}
	if s.title != nil && dom.Closest(parent, s.title) == nil {
		return jobs
	}
	if utf8.RuneCountInString(strings.TrimSpace(n.Data)) <= MinTextLength {
		return jobs
	}

	s.processed[container] = struct{}{}
	s.stats.Submitted++
	return append(jobs, job{container: container, text: n.Data})
}

func (s *Scanner) classify(j job) {
	if s.ctx.Err() != nil {
		return
	}

	v := s.classifier.Classify(s.ctx, j.text)
	if v.Failed() {
		s.logger.Error("failed to analyze post", "error", v.Error)
		s.count(func(st *Stats) { st.Errors++ })
		return
	}

	if !IsToxic(v.Labels, s.thresholds) {
		s.m.ObserveVerdict(metrics.OutcomeClean)
		s.count(func(st *Stats) { st.Clean++ })
		return
	}
	s.m.ObserveVerdict(metrics.OutcomeToxic)

	// The page may have been torn down while the engine was busy.
	if s.ctx.Err() != nil {
		return
	}

	if s.debug {
		s.presenter.Annotate(j.container, v)
		s.m.ObserveSuppressed(s.site.Key, metrics.ActionAnnotated)
		s.count(func(st *Stats) { st.Toxic++; st.Annotated++ })
	} else {
		s.presenter.Hide(j.container)
		s.m.ObserveSuppressed(s.site.Key, metrics.ActionHidden)
		s.count(func(st *Stats) { st.Toxic++; st.Hidden++ })
	}
	s.logger.Debug("post suppressed", "debug", s.debug, "labels", presenter.BadgeText(v))
}

func (s *Scanner) count(fn func(*Stats)) {
	s.mu.Lock()
	fn(&s.stats)
	s.mu.Unlock()
}

// IsToxic reports whether any label scores strictly above its threshold.
// Labels without a threshold never count.
func IsToxic(labels []models.LabelScore, thresholds map[string]float64) bool {
	for _, l := range labels {
		threshold, ok := thresholds[l.Label]
		if ok && l.Score > threshold {
			return true
		}
	}
	return false
}

// Processed reports whether container has been submitted.
func (s *Scanner) Processed(container *html.Node) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[container]
	return ok
}

// Stats returns a snapshot of the counters.
func (s *Scanner) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Wait blocks until every submitted classification has been applied.
// Stop feeding Scan before calling it.
func (s *Scanner) Wait() {
	_ = s.group.Wait()
}

// Close abandons outstanding classifications and drops the processed set.
// Later calls to Scan do nothing.
func (s *Scanner) Close() {
	s.cancel()

	s.life.Lock()
	s.closed = true
	s.life.Unlock()

	_ = s.group.Wait()

	s.mu.Lock()
	s.processed = make(map[*html.Node]struct{})
	s.mu.Unlock()
}
