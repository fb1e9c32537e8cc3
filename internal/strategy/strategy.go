// Package strategy decides, per URL, whether a lightweight HTTP fetch is
// sufficient or a full browser render is warranted.
package strategy

import (
	"net/url"
	"strings"

	"github.com/Bai-ee/Agent-cy/internal/scrape"
)

// Config holds the selector inputs. Immutable after construction.
type Config struct {
	// RenderEnabled globally allows rendered fetches. When false every URL
	// is fetched lightweight.
	RenderEnabled bool
	// StaticDomains lists hosts (matched by suffix) that are known to be
	// server-rendered, where a browser gains nothing.
	StaticDomains []string
}

// DefaultStaticDomains covers encyclopedic and reference sites that serve
// complete markup without client-side rendering.
var DefaultStaticDomains = []string{
	"wikipedia.org",
	"wiktionary.org",
	"britannica.com",
	"merriam-webster.com",
	"archive.org",
}

// Select returns the fetch strategy for rawURL. It is a pure function of
// (rawURL, cfg): the same inputs always yield the same strategy. Rule order:
// render disabled wins, then the static-domain allow list, then rendered.
// Unparseable URLs fall back to lightweight so the cheap path gets a chance
// to surface the real error.
func Select(rawURL string, cfg Config) scrape.Strategy {
	if !cfg.RenderEnabled {
		return scrape.StrategyLightweight
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return scrape.StrategyLightweight
	}
	if matchesStatic(u.Hostname(), cfg.StaticDomains) {
		return scrape.StrategyLightweight
	}
	return scrape.StrategyRendered
}

func matchesStatic(host string, domains []string) bool {
	host = strings.ToLower(host)
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
