// Package collyfetcher implements the lightweight HTTP fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/Bai-ee/Agent-cy/internal/metrics"
	"github.com/Bai-ee/Agent-cy/internal/retry"
	"github.com/Bai-ee/Agent-cy/internal/scrape"
)

// userAgents is the rotation pool. Each attempt picks one at random so
// repeated retries against the same host do not present an identical client.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

// browserHeaders are sent with every attempt alongside the rotated
// user-agent.
var browserHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
	"Cache-Control":   "no-cache",
}

// Config controls fetcher behavior.
type Config struct {
	// Timeout applies per attempt, not per fetch.
	Timeout time.Duration
	// Retry governs the attempt budget and backoff.
	Retry retry.Spec
}

// domainLimiter paces outbound requests per domain.
type domainLimiter interface {
	Wait(ctx context.Context, url string) error
}

// Fetcher implements scrape.Fetcher over a Colly collector. It retries
// internally: callers see either a body or a scrape.FetchError with the last
// attempt's failure.
type Fetcher struct {
	cfg           Config
	limiter       domainLimiter
	logger        *zap.Logger
	baseCollector *colly.Collector
	pickAgent     func() string
}

// New builds a Fetcher. The limiter may be nil.
func New(cfg Config, limiter domainLimiter, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.DefaultSpec()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	// Retries revisit the same URL, so the dedupe cache must be off.
	c.AllowURLRevisit = true
	c.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:           cfg,
		limiter:       limiter,
		logger:        logger,
		baseCollector: c,
		pickAgent: func() string {
			return userAgents[rand.Intn(len(userAgents))]
		},
	}
}

// Fetch executes an HTTP GET with retry and returns the raw markup plus the
// resolved final URL.
func (f *Fetcher) Fetch(ctx context.Context, url string) (scrape.FetchResult, error) {
	var result scrape.FetchResult
	start := time.Now()
	attempt := 0

	err := retry.Do(ctx, f.cfg.Retry, func(ctx context.Context) error {
		if attempt > 0 {
			metrics.FetchRetried()
			f.logger.Debug("retrying lightweight fetch",
				zap.String("url", url),
				zap.Int("attempt", attempt+1),
			)
		}
		attempt++
		r, err := f.attempt(ctx, url)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return scrape.FetchResult{}, &scrape.FetchError{URL: url, Last: err}
	}

	result.URL = url
	result.Method = scrape.StrategyLightweight
	result.Duration = time.Since(start)
	return result, nil
}

func (f *Fetcher) attempt(ctx context.Context, url string) (scrape.FetchResult, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, url); err != nil {
			return scrape.FetchResult{}, err
		}
	}

	collector := f.baseCollector.Clone()
	collector.UserAgent = f.pickAgent()
	collector.SetRequestTimeout(f.cfg.Timeout)

	var (
		result   scrape.FetchResult
		fetchErr error
	)

	collector.OnRequest(func(r *colly.Request) {
		for key, value := range browserHeaders {
			r.Headers.Set(key, value)
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		status := r.StatusCode
		if status < 200 || status >= 300 {
			fetchErr = fmt.Errorf("unexpected status %d", status)
			return
		}
		result = scrape.FetchResult{
			FinalURL:   r.Request.URL.String(),
			StatusCode: status,
			Body:       append([]byte(nil), r.Body...),
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = fmt.Errorf("unexpected status %d: %w", r.StatusCode, err)
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return scrape.FetchResult{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return scrape.FetchResult{}, fmt.Errorf("visit failed: %w", err)
		}
		if fetchErr != nil {
			return scrape.FetchResult{}, fetchErr
		}
		return result, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
