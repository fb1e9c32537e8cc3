// Package headless contains the fetcher that executes page scripts via a
// browser.
package headless

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/Bai-ee/Agent-cy/internal/scrape"
)

// Config controls the behavior of the rendered fetcher.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
}

// Fetcher implements scrape.Fetcher using chromedp and headless Chrome. It
// does not retry: a failed render is expensive to repeat blindly, so retry
// policy belongs to the caller.
type Fetcher struct {
	cfg         Config
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp creates a rendered fetcher backed by chromedp. A single exec
// allocator is shared; each fetch runs in its own tab.
func NewChromedp(cfg Config) (*Fetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 60 * time.Second
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context, tearing down the browser.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// Fetch navigates a fresh tab to the URL, waits for network quiescence, and
// captures markup, visible text and a viewport screenshot. The tab is closed
// on every exit path.
func (f *Fetcher) Fetch(ctx context.Context, url string) (scrape.FetchResult, error) {
	if err := f.acquire(ctx); err != nil {
		return scrape.FetchResult{}, err
	}
	defer f.release()

	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, f.cfg.NavigationTimeout)
	defer cancel()

	// Forward caller cancellation into the tab context.
	stop := forwardCancel(ctx, cancel)
	defer stop()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)
	idle := listenNetworkIdle(taskCtx)

	start := time.Now()

	var (
		html        string
		visibleText string
		title       string
		description string
		finalURL    string
		screenshot  []byte
	)
	actions := []chromedp.Action{
		f.setupAction(),
		chromedp.Navigate(url),
		waitNetworkIdle(idle, f.cfg.NavigationTimeout/2),
		chromedp.Title(&title),
		chromedp.Location(&finalURL),
		chromedp.Evaluate(metaDescriptionJS, &description),
		chromedp.Evaluate(visibleTextJS, &visibleText),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.CaptureScreenshot(&screenshot),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return scrape.FetchResult{}, &scrape.FetchError{URL: url, Last: fmt.Errorf("chromedp run: %w", err)}
	}

	status, metaURL := meta.snapshot()
	if status == 0 {
		status = 200
	}
	if finalURL == "" {
		finalURL = metaURL
	}
	if finalURL == "" {
		finalURL = url
	}

	return scrape.FetchResult{
		URL:         url,
		FinalURL:    finalURL,
		StatusCode:  status,
		Body:        []byte(html),
		Title:       title,
		Description: description,
		VisibleText: visibleText,
		Screenshot:  screenshot,
		Method:      scrape.StrategyRendered,
		Duration:    time.Since(start),
	}, nil
}

const (
	metaDescriptionJS = `(() => {
		const el = document.querySelector('meta[name="description"]') ||
			document.querySelector('meta[property="og:description"]');
		return el ? (el.getAttribute('content') || '') : '';
	})()`

	visibleTextJS = `document.body ? document.body.innerText : ''`
)

func (f *Fetcher) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return fmt.Errorf("enable lifecycle events: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// listenNetworkIdle returns a channel signaled each time the page reaches
// the networkIdle lifecycle state.
func listenNetworkIdle(ctx context.Context) <-chan struct{} {
	idle := make(chan struct{}, 1)
	chromedp.ListenTarget(ctx, func(ev any) {
		if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == "networkIdle" {
			select {
			case idle <- struct{}{}:
			default:
			}
		}
	})
	return idle
}

// waitNetworkIdle blocks until the page goes network-idle or the grace
// period elapses. The grace fallback keeps pages with long-polling
// connections from consuming the whole navigation budget.
func waitNetworkIdle(idle <-chan struct{}, grace time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-idle:
			return nil
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("wait network idle: %w", ctx.Err())
		}
	})
}

func (f *Fetcher) acquire(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	select {
	case f.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("render slot wait canceled: %w", ctx.Err())
	}
}

func (f *Fetcher) release() {
	if f.limiter == nil {
		return
	}
	select {
	case <-f.limiter:
	default:
	}
}

func forwardCancel(ctx context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// responseMeta records the main document response observed over CDP.
type responseMeta struct {
	mu     sync.RWMutex
	status int
	url    string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	m.mu.Lock()
	m.status = int(resp.Response.Status)
	m.url = resp.Response.URL
	m.mu.Unlock()
}

func (m *responseMeta) snapshot() (int, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status, m.url
}
