// Package browser loads pages in headless Chrome and streams the elements
// the page adds later into a dom.Document.
package browser

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/dtnitsch/ragebait-block/pkg/dom"
)

const bindingName = "__ragebait_binding"

var (
	//go:embed watch.js
	watchJS string
	//go:embed tag.js
	tagJS string
)

type Config struct {
	// RemoteURL is the WebSocket URL of a running Chrome. Empty launches
	// a local headless instance.
	RemoteURL  string
	NavTimeout time.Duration
	Logger     *slog.Logger
}

// Session is one browser tab.
type Session struct {
	browser *rod.Browser
	lnch    *launcher.Launcher
	page    *rod.Page
	url     string
	logger  *slog.Logger
}

// Open navigates a fresh tab to pageURL and waits for the load event.
func Open(ctx context.Context, pageURL string, cfg Config) (*Session, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}

	s := &Session{url: pageURL, logger: cfg.Logger}

	wsURL := cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(true)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch chrome: %w", err)
		}
		wsURL = u
		s.lnch = l
		cfg.Logger.Info("launched local chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to connect to chrome: %w", err)
	}
	s.browser = b

	page, err := b.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to create tab: %w", err)
	}
	s.page = page

	navCtx, cancel := context.WithTimeout(ctx, cfg.NavTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to navigate to %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		cfg.Logger.Warn("wait load timeout", "url", pageURL, "error", err)
	}
	return s, nil
}

// HTML stamps IDAttr on every element and returns the document markup.
func (s *Session) HTML(ctx context.Context) (string, error) {
	res, err := s.page.Context(ctx).Eval(tagJS)
	if err != nil {
		return "", fmt.Errorf("failed to read DOM: %w", err)
	}
	return res.Value.Str(), nil
}

// Watch injects a MutationObserver into the page and replays every node
// it reports into doc under the parent it was added to, until ctx ends.
// doc must come from HTML so its elements carry IDAttr. The Go document
// only grows; hiding applied to it is not pushed back into the browser.
func (s *Session) Watch(ctx context.Context, doc *dom.Document) error {
	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(s.page); err != nil {
		s.logger.Warn("add binding failed (may already exist)", "error", err)
	}

	m := newMirror(doc, s.logger)
	wait := s.page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name == bindingName {
			m.receive(e.Payload)
		}
	})

	if _, err := s.page.Eval(watchJS); err != nil {
		return fmt.Errorf("failed to inject observer: %w", err)
	}
	s.logger.Debug("observer injected", "url", s.url)

	wait()
	return nil
}

// Close closes the tab and the browser it started.
func (s *Session) Close() error {
	var err error
	if s.page != nil {
		err = s.page.Close()
	}
	s.cleanup()
	return err
}

func (s *Session) cleanup() {
	if s.browser != nil {
		_ = s.browser.Close()
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
	}
}
