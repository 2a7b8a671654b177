package filter

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dtnitsch/ragebait-block/models"
	"github.com/dtnitsch/ragebait-block/pkg/blocker"
	"github.com/dtnitsch/ragebait-block/pkg/metrics"
	"github.com/dtnitsch/ragebait-block/pkg/parser"
	"github.com/dtnitsch/ragebait-block/pkg/report"
	"github.com/dtnitsch/ragebait-block/pkg/scanner"
	"github.com/dtnitsch/ragebait-block/pkg/sites"
	"github.com/dtnitsch/ragebait-block/pkg/storage"
)

// Fetcher returns a page's markup. *fetcher.Fetcher satisfies it.
type Fetcher interface {
	GetHtmlBytes(ctx context.Context, url string) ([]byte, error)
}

// Job is one URL to fetch and filter.
type Job struct {
	URL string
}

// pipeline holds what every worker shares.
type pipeline struct {
	fetcher    Fetcher
	parser     *parser.Parser
	storage    *storage.Storage
	settings   *models.Settings
	classifier scanner.Classifier
	scanners   int
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// run fans urls out to workerCount workers and collects one result per URL.
func run(ctx context.Context, p *pipeline, urls []string, workerCount int) []report.PageResult {
	if workerCount < 1 {
		workerCount = 1
	}

	p.logger.Info("Starting concurrent filter phase", "url_count", len(urls), "workers", workerCount)
	var wg sync.WaitGroup
	jobs := make(chan Job, len(urls))
	results := make(chan report.PageResult, len(urls))

	for w := 1; w <= workerCount; w++ {
		wg.Add(1)
		go worker(ctx, w, p, &wg, jobs, results)
	}

	for _, u := range urls {
		jobs <- Job{URL: u}
	}
	close(jobs)

	wg.Wait()
	close(results)
	p.logger.Info("All filter workers finished")

	all := make([]report.PageResult, 0, len(urls))
	for r := range results {
		all = append(all, r)
	}
	return all
}

func worker(ctx context.Context, id int, p *pipeline, wg *sync.WaitGroup, jobs <-chan Job, results chan<- report.PageResult) {
	defer wg.Done()
	for job := range jobs {
		if ctx.Err() != nil {
			results <- report.PageResult{URL: job.URL, Error: ctx.Err()}
			continue
		}
		p.logger.Info("Worker started job", "worker_id", id, "url", job.URL)

		raw, err := p.fetcher.GetHtmlBytes(ctx, job.URL)
		if err != nil {
			p.logger.Error("Error fetching HTML", "worker_id", id, "url", job.URL, "error", err)
			results <- report.PageResult{URL: job.URL, Error: err}
			continue
		}

		results <- p.process(ctx, job.URL, raw)
		p.logger.Info("Worker finished processing", "worker_id", id, "url", job.URL)
	}
}

// process filters one page and writes the result to storage.
func (p *pipeline) process(ctx context.Context, pageURL string, raw []byte) report.PageResult {
	result := report.PageResult{URL: pageURL}
	result.Info = p.describe(pageURL, raw)

	host, err := sites.Hostname(pageURL)
	if err != nil {
		result.Error = fmt.Errorf("invalid url: %w", err)
		return result
	}

	res, err := blocker.FilterHTML(ctx, bytes.NewReader(raw), blocker.Config{
		Hostname:   host,
		Settings:   p.settings,
		Classifier: p.classifier,
		Workers:    p.scanners,
		Metrics:    p.metrics,
		Logger:     p.logger,
	})
	if err != nil {
		p.logger.Error("Error filtering page", "url", pageURL, "error", err)
		result.Error = err
		return result
	}
	result.Site = res.Site
	result.PageID = res.PageID
	result.Stats = res.Stats
	result.Skipped = res.Skipped

	path, err := p.storage.SaveFile(storage.PageFileName(pageURL), res.HTML)
	if err != nil {
		result.Error = err
		return result
	}
	result.OutputPath = path
	result.SizeBytes = int64(len(res.HTML))
	return result
}

func (p *pipeline) describe(pageURL string, raw []byte) parser.PageInfo {
	if p.parser == nil {
		return parser.PageInfo{}
	}
	info, err := p.parser.Describe(pageURL, string(raw))
	if err != nil {
		p.logger.Debug("no readable content", "url", pageURL, "error", err)
	}
	return info
}
