package headless

import (
	"context"
	"errors"

	"github.com/Bai-ee/Agent-cy/internal/scrape"
)

// Noop is a scrape.Fetcher for deployments without a browser: every call
// fails, which sends pages back through the lightweight path.
type Noop struct{}

// NewNoop returns the browserless fetcher.
func NewNoop() *Noop {
	return &Noop{}
}

// Fetch always reports rendered fetching as unavailable.
func (Noop) Fetch(_ context.Context, _ string) (scrape.FetchResult, error) {
	return scrape.FetchResult{}, errors.New("rendered fetching unavailable: no browser configured")
}
