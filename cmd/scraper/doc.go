// Package main hosts the scrape service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, and scrape endpoints. A submission carries either a
//     URL, a URL list, or a free-text query that internal/discovery resolves into candidate URLs. Jobs are persisted
//     via the JobStore before being enqueued; a synchronous endpoint runs the pipeline inline for small requests.
//   - Dispatcher & queue: jobs flow through a bounded in-memory queue sized by config.Jobs.QueueDepth and are fanned
//     out to a fixed worker pool sized by config.Jobs.Workers. Context cancellation stops workers cleanly on
//     shutdown; URLs inside one job run with their own bounded parallelism while results keep submission order.
//   - Fetch pipeline: internal/strategy picks lightweight (Colly with retry/backoff and per-domain rate limiting) or
//     rendered (Chromedp with a network-idle wait and screenshot capture) per URL. Fetched documents pass through
//     the goquery-based content extractor, keyword scoring, and the staged summarization chain, which degrades to
//     truncated raw text rather than failing a page.
//   - Persistence & fanout: raw HTML, screenshots and a per-job results.json are written to the configured BlobStore
//     (local/GCS) under content-hash paths. Jobs and ordered page results persist to Postgres when a DSN is set,
//     memory otherwise. A completion event is published via Pub/Sub when a topic is configured.
//   - Configuration & plumbing: Viper populates config from env/files (SCRAPER_ prefix); zap provides structured
//     logging; Prometheus metrics are exported at /metrics.
//
// Operational notes:
//   - A failed page is recorded as data on the job; only a persistence failure marks the job itself failed.
//   - Rendered fetches never retry. Lightweight fetches retry internally with exponential backoff.
//   - Run locally: go run ./cmd/scraper -config config.yaml (or rely solely on env overrides).
package main
