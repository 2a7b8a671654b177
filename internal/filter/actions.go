package filter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/ragebait-block/internal/bootstrap"
	"github.com/dtnitsch/ragebait-block/internal/common"
	"github.com/dtnitsch/ragebait-block/internal/logging"
	"github.com/dtnitsch/ragebait-block/pkg/blocker"
	"github.com/dtnitsch/ragebait-block/pkg/browser"
	"github.com/dtnitsch/ragebait-block/pkg/caching"
	"github.com/dtnitsch/ragebait-block/pkg/dom"
	"github.com/dtnitsch/ragebait-block/pkg/fetcher"
	"github.com/dtnitsch/ragebait-block/pkg/parser"
	"github.com/dtnitsch/ragebait-block/pkg/report"
	"github.com/dtnitsch/ragebait-block/pkg/sites"
	"github.com/dtnitsch/ragebait-block/pkg/storage"
)

// FilterAction filters pages. With --file it filters one local HTML file,
// with --live it drives a browser, otherwise it fetches --urls concurrently
// and writes the filtered copies plus a summary to the output directory.
func FilterAction(c *cli.Context) error {
	cfg, logger, err := bootstrap.Configure(c)
	if err != nil {
		return err
	}
	if c.IsSet("out") {
		cfg.Fetch.OutputDir = c.String("out")
	}
	if c.IsSet("workers") {
		cfg.Fetch.Workers = c.Int("workers")
	}
	if c.IsSet("max-age") {
		cfg.Fetch.MaxAge = c.Duration("max-age")
	}
	if c.Bool("force-fetch") {
		cfg.Fetch.MaxAge = 0
	}

	ctx := c.Context
	rt, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	current, err := rt.Settings.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	if c.IsSet("file") {
		return filterFile(c, blocker.Config{
			Settings:   current,
			Classifier: rt.Classifier,
			Workers:    cfg.Scanner.Workers,
			Metrics:    rt.Metrics,
			Logger:     logger,
		})
	}

	urls := common.SplitList(c.String("urls"))
	if len(urls) == 0 {
		fmt.Fprintln(os.Stderr, "Error: No URLs provided")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, `  ragebait filter --urls "https://www.reddit.com/r/news"`)
		fmt.Fprintln(os.Stderr, `  ragebait filter --file page.html --host www.bbc.com`)
		fmt.Fprintln(os.Stderr, `  ragebait filter --live --watch 30s --urls "https://www.youtube.com"`)
		return cli.Exit("", 1)
	}

	sanitized, invalid := common.SanitizeAndValidateURLs(urls)
	if len(invalid) > 0 {
		fmt.Fprintf(os.Stderr, "Error: %d URL(s) are malformed (even after cleanup):\n", len(invalid))
		for _, u := range invalid {
			fmt.Fprintf(os.Stderr, "  - %s\n", u)
		}
		return cli.Exit("", 1)
	}

	store := storage.New(cfg.Fetch.OutputDir)
	started := time.Now()

	var results []report.PageResult
	if c.Bool("live") {
		results = runLive(ctx, c, sanitized, store, blocker.Config{
			Settings:   current,
			Classifier: rt.Classifier,
			Workers:    cfg.Scanner.Workers,
			Metrics:    rt.Metrics,
			Logger:     logger,
		})
	} else {
		cache, err := caching.NewCache(cfg.Fetch.CacheDir, cfg.Fetch.MaxAge)
		if err != nil {
			return err
		}
		f := fetcher.NewFetcher(fetcher.Config{
			UserAgent: cfg.Fetch.UserAgent,
			Cache:     cache,
			Logger:    logger,
		})
		results = run(ctx, &pipeline{
			fetcher:    f,
			parser:     &parser.Parser{},
			storage:    store,
			settings:   current,
			classifier: rt.Classifier,
			scanners:   cfg.Scanner.Workers,
			metrics:    rt.Metrics,
			logger:     logger,
		}, sanitized, cfg.Fetch.Workers)
	}

	rep := report.Build(results, time.Now())
	path, err := report.Save(rep, store, time.Now())
	if err != nil {
		return err
	}
	logger.Info("filter run complete",
		"urls", rep.TotalURLs,
		"filtered", rep.Filtered,
		"skipped", rep.Skipped,
		"failed", rep.Failed,
		"elapsed", time.Since(started).String(),
		"summary", path,
	)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return err
	}
	if rep.Failed > 0 {
		return cli.Exit("", 2)
	}
	return nil
}

// filterFile filters one local page and writes it to stdout or --out-file.
func filterFile(c *cli.Context, bc blocker.Config) error {
	host := c.String("host")
	if host == "" {
		return errors.New("--host is required with --file")
	}
	if h, err := sites.Hostname(host); err == nil && h != "" {
		host = h
	}
	bc.Hostname = host

	in, err := os.Open(c.String("file"))
	if err != nil {
		return fmt.Errorf("failed to open page: %w", err)
	}
	defer in.Close()

	res, err := blocker.FilterHTML(c.Context, in, bc)
	if err != nil {
		return err
	}
	if res.Skipped != nil {
		bc.Logger.Info("page left untouched", "host", host, "reason", res.Skipped.Error())
	} else {
		bc.Logger.Info("page filtered",
			"site", res.Site,
			"page_id", res.PageID,
			"submitted", res.Stats.Submitted,
			"hidden", res.Stats.Hidden,
			"annotated", res.Stats.Annotated,
		)
	}

	var out io.Writer = os.Stdout
	if p := c.String("out-file"); p != "" {
		f, err := os.Create(p)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	_, err = io.Copy(out, bytes.NewReader(res.HTML))
	return err
}

// runLive opens each URL in a browser, filters the loaded page, then keeps
// filtering what the page adds for the --watch duration.
func runLive(ctx context.Context, c *cli.Context, urls []string, store *storage.Storage, bc blocker.Config) []report.PageResult {
	results := make([]report.PageResult, 0, len(urls))
	for _, u := range urls {
		results = append(results, livePage(ctx, c, u, store, bc))
	}
	return results
}

func livePage(ctx context.Context, c *cli.Context, pageURL string, store *storage.Storage, bc blocker.Config) report.PageResult {
	result := report.PageResult{URL: pageURL}

	host, err := sites.Hostname(pageURL)
	if err != nil {
		result.Error = err
		return result
	}
	bc.Hostname = host
	if _, err := blocker.Resolve(host, bc.Settings); err != nil {
		result.Skipped = err
		return result
	}

	session, err := browser.Open(ctx, pageURL, browser.Config{
		RemoteURL: c.String("remote"),
		Logger:    bc.Logger,
	})
	if err != nil {
		result.Error = err
		return result
	}
	defer session.Close()

	markup, err := session.HTML(ctx)
	if err != nil {
		result.Error = err
		return result
	}
	if info, err := (&parser.Parser{}).Describe(pageURL, markup); err == nil {
		result.Info = info
	}
	doc, err := dom.ParseString(markup)
	if err != nil {
		result.Error = err
		return result
	}
	defer doc.Close()

	b, err := blocker.Attach(ctx, doc, bc)
	if err != nil {
		result.Error = err
		return result
	}
	logger := logging.WithPage(bc.Logger, pageURL, b.PageID())
	logger.Info("watching page", "duration", c.Duration("watch").String())

	watchCtx, cancel := context.WithTimeout(ctx, c.Duration("watch"))
	if err := session.Watch(watchCtx, doc); err != nil {
		logger.Warn("live watch failed", "error", err)
	}
	cancel()

	result.Stats = b.Finish()
	result.Site = b.Site.Key
	result.PageID = b.PageID()

	out, err := doc.HTML()
	if err != nil {
		result.Error = err
		return result
	}
	path, err := store.SaveFile(storage.PageFileName(pageURL), []byte(out))
	if err != nil {
		result.Error = err
		return result
	}
	result.OutputPath = path
	result.SizeBytes = int64(len(out))
	return result
}

// Flags for the filter command.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "urls", Aliases: []string{"u", "url"}, Usage: "Comma-separated list of page URLs"},
		&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Filter a local HTML file instead of fetching"},
		&cli.StringFlag{Name: "host", Usage: "Hostname or URL the --file page came from"},
		&cli.StringFlag{Name: "out-file", Aliases: []string{"o"}, Usage: "Write the filtered --file page here instead of stdout"},
		&cli.StringFlag{Name: "out", Usage: "Directory for filtered pages and the run summary"},
		&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "Number of concurrent page workers"},
		&cli.DurationFlag{Name: "max-age", Usage: "Reuse cached pages younger than this"},
		&cli.BoolFlag{Name: "force-fetch", Usage: "Ignore the page cache"},
		&cli.BoolFlag{Name: "live", Usage: "Load pages in Chrome and keep filtering content the page adds"},
		&cli.DurationFlag{Name: "watch", Value: 15 * time.Second, Usage: "How long --live keeps watching each page"},
		&cli.StringFlag{Name: "remote", Usage: "WebSocket URL of a running Chrome for --live"},
	}
}
