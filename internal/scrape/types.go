// Package scrape defines core types shared across subsystems.
package scrape

import (
	"fmt"
	"time"
)

// JobStatus represents the lifecycle state of a scrape job.
type JobStatus string

// Job status values persisted in the job store. Both terminal states are
// final; a job reaches exactly one of them.
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether the status is a final state.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Strategy identifies how a URL is fetched.
type Strategy string

// Fetch strategies recorded on each PageResult.
const (
	StrategyLightweight Strategy = "lightweight"
	StrategyRendered    Strategy = "rendered"
)

// Job represents the metadata persisted for each submitted scrape request.
type Job struct {
	ID        string      `json:"id"`
	TaskID    string      `json:"task_id,omitempty"`
	URLs      []string    `json:"urls"`
	Keywords  []string    `json:"keywords"`
	Status    JobStatus   `json:"status"`
	Submitted time.Time   `json:"submitted_at"`
	Started   *time.Time  `json:"started_at,omitempty"`
	Finished  *time.Time  `json:"finished_at,omitempty"`
	ErrorText string      `json:"error_text,omitempty"`
	Counters  JobCounters `json:"counters"`
	Options   JobOptions  `json:"options"`
}

// JobCounters tracks aggregate result stats per job.
type JobCounters struct {
	Results   int `json:"results"`
	Succeeded int `json:"succeeded"`
}

// JobOptions captures per-job knobs requested by the caller.
type JobOptions struct {
	RenderEnabled         bool `json:"render_enabled" mapstructure:"render_enabled"`
	RenderEnabledProvided bool `json:"-" mapstructure:"render_enabled_provided"`
	MaxSummaryChars       int  `json:"max_summary_chars,omitempty"`
	Concurrency           int  `json:"concurrency,omitempty"`
}

// Heading is one h1-h6 element found inside the main content region.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Link is one outbound anchor found inside the main content region.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// ExtractionResult is the intermediate structured output of the content
// extractor. It is produced fresh per fetch and folded into a PageResult.
type ExtractionResult struct {
	Title       string
	Description string
	MainText    string
	Headings    []Heading
	Links       []Link
}

// Summary is the output of the summarization fallback chain. Degraded marks
// the lowest tier, where the truncated raw text stands in for a summary.
type Summary struct {
	Text      string   `json:"text"`
	KeyPoints []string `json:"key_points,omitempty"`
	Topics    []string `json:"topics,omitempty"`
	Sentiment string   `json:"sentiment,omitempty"`
	Entities  []string `json:"entities,omitempty"`
	Degraded  bool     `json:"degraded"`
}

// PageResult is the per-URL outcome of the extraction pipeline. Exactly one
// of success-with-content or failure-with-error holds. Results are stored in
// the same order as the job's URL list.
type PageResult struct {
	ID            string         `json:"id"`
	JobID         string         `json:"job_id"`
	Index         int            `json:"index"`
	URL           string         `json:"url"`
	Success       bool           `json:"success"`
	Method        Strategy       `json:"method"`
	Title         string         `json:"title,omitempty"`
	Description   string         `json:"description,omitempty"`
	Text          string         `json:"text,omitempty"`
	TextLength    int            `json:"text_length"`
	Headings      []Heading      `json:"headings,omitempty"`
	Links         []Link         `json:"links,omitempty"`
	KeywordCounts map[string]int `json:"keyword_counts,omitempty"`
	TotalMatches  int            `json:"total_matches"`
	Summary       *Summary       `json:"summary,omitempty"`
	ScreenshotURI string         `json:"screenshot_uri,omitempty"`
	RawHTMLURI    string         `json:"raw_html_uri,omitempty"`
	FetchedAt     time.Time      `json:"fetched_at"`
	DurationMs    int64          `json:"duration_ms"`
	ErrorText     string         `json:"error_text,omitempty"`
}

// FetchResult is returned by both fetchers. VisibleText and Screenshot are
// only populated by the rendered fetcher.
type FetchResult struct {
	URL         string
	FinalURL    string
	StatusCode  int
	Body        []byte
	Title       string
	Description string
	VisibleText string
	Screenshot  []byte
	Method      Strategy
	Duration    time.Duration
}

// JobResult is returned by the API result endpoint.
type JobResult struct {
	Job     Job          `json:"job"`
	Results []PageResult `json:"results"`
}

// QueueItem wraps a job ready to run.
type QueueItem struct {
	JobID     string
	Submitted int64
}

// FetchError reports a fetch that failed after its retry budget was spent.
type FetchError struct {
	URL  string
	Last error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Last)
}

// Unwrap exposes the final attempt's error.
func (e *FetchError) Unwrap() error {
	return e.Last
}
