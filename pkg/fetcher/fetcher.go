package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/dtnitsch/ragebait-block/pkg/caching"
)

// DefaultUserAgent is sent when none is configured.
const DefaultUserAgent = "ragebait-block/1.0 (+https://github.com/dtnitsch/ragebait-block)"

// maxBodyBytes caps how much of a page is read.
const maxBodyBytes = 20 << 20

type Config struct {
	Timeout   time.Duration
	UserAgent string
	// Cache, when set, is consulted before the network and filled after.
	Cache  *caching.Cache
	Client *http.Client
	Logger *slog.Logger
}

type Fetcher struct {
	client    *http.Client
	cache     *caching.Cache
	userAgent string
	logger    *slog.Logger
}

func NewFetcher(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Fetcher{
		client:    client,
		cache:     cfg.Cache,
		userAgent: cfg.UserAgent,
		logger:    cfg.Logger,
	}
}

// GetHtmlBytes returns the page at url decoded to UTF-8.
func (f *Fetcher) GetHtmlBytes(ctx context.Context, url string) ([]byte, error) {
	if data, ok := f.cache.Get(url); ok {
		f.logger.Debug("cache hit", "url", url)
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch HTML, status code: %d", resp.StatusCode)
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("failed to detect charset: %w", err)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if err := f.cache.Set(url, data); err != nil {
		f.logger.Warn("failed to cache page", "url", url, "error", err)
	}
	return data, nil
}
