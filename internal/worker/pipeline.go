package worker

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Bai-ee/Agent-cy/internal/extract"
	"github.com/Bai-ee/Agent-cy/internal/metrics"
	"github.com/Bai-ee/Agent-cy/internal/score"
	"github.com/Bai-ee/Agent-cy/internal/scrape"
	"github.com/Bai-ee/Agent-cy/internal/strategy"
	"github.com/Bai-ee/Agent-cy/internal/summarize"
)

// PipelineConfig controls per-URL processing.
type PipelineConfig struct {
	Strategy    strategy.Config
	BlobPrefix  string
	ContentType string
}

// Pipeline turns one URL into one PageResult: strategy selection, fetch,
// extraction, keyword scoring, summarization and artifact upload. It never
// returns an error; a failed URL becomes a failed result.
type Pipeline struct {
	lightweight scrape.Fetcher
	rendered    scrape.Fetcher
	summarizer  scrape.Summarizer
	blobStore   scrape.BlobStore
	hasher      scrape.Hasher
	clock       scrape.Clock
	ids         scrape.IDGenerator
	cfg         PipelineConfig
	logger      *zap.Logger
}

// NewPipeline constructs a Pipeline. The rendered fetcher, summarizer and
// blob store are optional; processing degrades without them.
func NewPipeline(
	lightweight scrape.Fetcher,
	rendered scrape.Fetcher,
	summarizer scrape.Summarizer,
	blobStore scrape.BlobStore,
	hasher scrape.Hasher,
	clock scrape.Clock,
	ids scrape.IDGenerator,
	cfg PipelineConfig,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	return &Pipeline{
		lightweight: lightweight,
		rendered:    rendered,
		summarizer:  summarizer,
		blobStore:   blobStore,
		hasher:      hasher,
		clock:       clock,
		ids:         ids,
		cfg:         cfg,
		logger:      logger,
	}
}

// Process runs the full per-URL pipeline and always returns a result.
func (p *Pipeline) Process(ctx context.Context, job scrape.Job, index int, url string) scrape.PageResult {
	result := scrape.PageResult{
		JobID:     job.ID,
		Index:     index,
		URL:       url,
		FetchedAt: p.clock.Now(),
	}
	if id, err := p.ids.NewID(); err == nil {
		result.ID = id
	} else {
		p.logger.Warn("result id generation failed", zap.Error(err))
	}

	method := p.selectStrategy(job, url)
	result.Method = method

	fetched, err := p.fetch(ctx, method, url)
	result.DurationMs = fetched.Duration.Milliseconds()
	if fetched.Method != "" {
		result.Method = fetched.Method
	}
	if err != nil {
		result.Success = false
		result.ErrorText = err.Error()
		metrics.PageProcessed(string(result.Method), "failure", fetched.Duration)
		p.logger.Warn("page fetch failed",
			zap.String("job_id", job.ID),
			zap.String("url", url),
			zap.Error(err))
		return result
	}

	// Attribute the result to where the fetch actually landed; the index
	// keeps the correspondence to the requested URL.
	if fetched.FinalURL != "" {
		result.URL = fetched.FinalURL
	}

	extracted, err := extract.Extract(string(fetched.Body))
	if err != nil {
		// The extractor only fails on unparseable input; goquery accepts
		// almost anything, so this is effectively unreachable for fetched
		// documents. Treat it as a page failure rather than dropping data.
		result.Success = false
		result.ErrorText = fmt.Sprintf("extract content: %v", err)
		metrics.PageProcessed(string(result.Method), "failure", fetched.Duration)
		return result
	}

	result.Success = true
	result.Title = firstNonEmpty(extracted.Title, fetched.Title)
	result.Description = firstNonEmpty(extracted.Description, fetched.Description)
	result.Headings = extracted.Headings
	result.Links = extracted.Links

	// Rendered fetches see the post-JavaScript DOM, so their visible text
	// is more faithful than re-parsing the serialized HTML.
	text := extracted.MainText
	if strings.TrimSpace(fetched.VisibleText) != "" {
		text = strings.Join(strings.Fields(fetched.VisibleText), " ")
	}
	result.Text = text
	result.TextLength = len(text)
	result.KeywordCounts, result.TotalMatches = score.Keywords(text, job.Keywords)

	if p.summarizer != nil && text != "" {
		summary := p.summarizer.Summarize(ctx, text, job.Keywords)
		if job.Options.MaxSummaryChars > 0 {
			summary.Text = summarize.Truncate(summary.Text, job.Options.MaxSummaryChars)
		}
		result.Summary = &summary
	}

	p.storeArtifacts(ctx, job.ID, &result, fetched)
	metrics.PageProcessed(string(result.Method), "success", fetched.Duration)
	return result
}

// selectStrategy applies per-job overrides on top of the service defaults and
// falls back to lightweight when no rendered fetcher is wired.
func (p *Pipeline) selectStrategy(job scrape.Job, url string) scrape.Strategy {
	cfg := p.cfg.Strategy
	if job.Options.RenderEnabledProvided {
		cfg.RenderEnabled = job.Options.RenderEnabled
	}
	method := strategy.Select(url, cfg)
	if method == scrape.StrategyRendered && p.rendered == nil {
		return scrape.StrategyLightweight
	}
	return method
}

func (p *Pipeline) fetch(ctx context.Context, method scrape.Strategy, url string) (scrape.FetchResult, error) {
	if method == scrape.StrategyRendered {
		return p.rendered.Fetch(ctx, url)
	}
	return p.lightweight.Fetch(ctx, url)
}

// storeArtifacts uploads the raw HTML and screenshot. Upload failures are
// logged and leave the URIs empty; they never fail the page.
func (p *Pipeline) storeArtifacts(ctx context.Context, jobID string, result *scrape.PageResult, fetched scrape.FetchResult) {
	if p.blobStore == nil {
		return
	}
	if len(fetched.Body) > 0 {
		hash, err := p.hasher.Hash(fetched.Body)
		if err != nil {
			p.logger.Warn("hash body failed", zap.String("url", result.URL), zap.Error(err))
			return
		}
		path := p.blobPath(jobID, "raw", hash+".html")
		uri, err := p.blobStore.PutObject(ctx, path, p.cfg.ContentType, fetched.Body)
		if err != nil {
			p.logger.Warn("raw html upload failed", zap.String("url", result.URL), zap.Error(err))
		} else {
			result.RawHTMLURI = uri
			metrics.ArtifactUploaded("raw_html")
		}
	}
	if len(fetched.Screenshot) > 0 {
		hash, err := p.hasher.Hash(fetched.Screenshot)
		if err != nil {
			p.logger.Warn("hash screenshot failed", zap.String("url", result.URL), zap.Error(err))
			return
		}
		path := p.blobPath(jobID, "screenshots", hash+".png")
		uri, err := p.blobStore.PutObject(ctx, path, "image/png", fetched.Screenshot)
		if err != nil {
			p.logger.Warn("screenshot upload failed", zap.String("url", result.URL), zap.Error(err))
		} else {
			result.ScreenshotURI = uri
			metrics.ArtifactUploaded("screenshot")
		}
	}
}

func (p *Pipeline) blobPath(jobID, kind, name string) string {
	prefix := strings.Trim(p.cfg.BlobPrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s/%s", jobID, kind, name)
	}
	return fmt.Sprintf("%s/%s/%s/%s", prefix, jobID, kind, name)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
