// Package browser renders pages in headless Chrome so that script-built
// team listings are visible to extraction.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"vcscout/internal/config"
	"vcscout/internal/ports"
)

// structuredTextJS flattens the DOM into the pieces extraction cares about:
// headings, link targets, and short standalone text nodes such as names and
// titles.
const structuredTextJS = `() => {
	const parts = [];
	for (const h of document.querySelectorAll('h1, h2, h3, h4')) {
		const t = h.innerText.trim();
		if (t) parts.push('# ' + t);
	}
	for (const a of document.querySelectorAll('a[href]')) {
		const t = a.innerText.trim();
		if (t && t.length < 120) parts.push('[' + t + '](' + a.href + ')');
	}
	const walker = document.createTreeWalker(document.body, NodeFilter.SHOW_TEXT);
	while (walker.nextNode()) {
		const t = walker.currentNode.textContent.trim();
		if (t && t.length > 1 && t.length < 200) parts.push(t);
	}
	return parts.join('\n');
}`

// Renderer implements ports.PageRenderer on go-rod. The underlying browser
// is launched lazily on first use and shared across renders.
type Renderer struct {
	cfg    config.CrawlerConfig
	logger *slog.Logger

	mu      sync.Mutex
	browser *rod.Browser
}

var _ ports.PageRenderer = (*Renderer)(nil)

// NewRenderer wires crawler settings. Chrome is not started here.
func NewRenderer(cfg config.CrawlerConfig, logger *slog.Logger) *Renderer {
	return &Renderer{cfg: cfg, logger: logger}
}

// Render navigates to the URL, waits for the page to settle, and returns the
// HTML, a structured text digest, and a full-page screenshot.
func (r *Renderer) Render(ctx context.Context, url string) (*ports.RenderedPage, error) {
	browser, err := r.ensureBrowser()
	if err != nil {
		return nil, err
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	page = page.Context(ctx).Timeout(r.cfg.NavigationTimeout())

	if r.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: r.cfg.UserAgent}); err != nil {
			return nil, fmt.Errorf("set user agent: %w", err)
		}
	}

	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load %s: %w", url, err)
	}
	// Team grids are often populated after load; give scripts a beat.
	_ = page.WaitStable(2 * time.Second)

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read html %s: %w", url, err)
	}

	structured := ""
	if res, err := page.Eval(structuredTextJS); err == nil && res != nil && !res.Value.Nil() {
		structured = res.Value.String()
	} else if err != nil && r.logger != nil {
		r.logger.Debug("structured text eval failed", "url", url, "error", err)
	}

	var shot []byte
	if shot, err = page.Screenshot(true, nil); err != nil {
		if r.logger != nil {
			r.logger.Debug("screenshot failed", "url", url, "error", err)
		}
		shot = nil
	}

	return &ports.RenderedPage{
		URL:            url,
		HTML:           html,
		StructuredText: structured,
		Screenshot:     shot,
	}, nil
}

// Close shuts the shared browser down.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.browser = nil
	return err
}

func (r *Renderer) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		if _, err := r.browser.Version(); err == nil {
			return r.browser, nil
		}
		_ = r.browser.Close()
		r.browser = nil
	}

	controlURL, err := launcher.New().Headless(r.cfg.Headless).Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	// The browser outlives any single render; only pages are bound to the
	// caller's context.
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	r.browser = browser
	return browser, nil
}
