package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Bai-ee/Agent-cy/internal/scrape"
)

func TestSelect(t *testing.T) {
	t.Parallel()

	enabled := Config{RenderEnabled: true, StaticDomains: DefaultStaticDomains}
	disabled := Config{RenderEnabled: false, StaticDomains: DefaultStaticDomains}

	tests := []struct {
		name string
		url  string
		cfg  Config
		want scrape.Strategy
	}{
		{"render disabled wins", "https://app.example.com/dashboard", disabled, scrape.StrategyLightweight},
		{"encyclopedic host stays lightweight even when render enabled", "https://en.wikipedia.org/wiki/Go_(programming_language)", enabled, scrape.StrategyLightweight},
		{"bare static domain", "https://britannica.com/topic/quantum", enabled, scrape.StrategyLightweight},
		{"dynamic site renders", "https://weather.com/today", enabled, scrape.StrategyRendered},
		{"subdomain suffix match", "https://simple.wikipedia.org/wiki/Cat", enabled, scrape.StrategyLightweight},
		{"suffix must be on a label boundary", "https://notwikipedia.org/page", enabled, scrape.StrategyRendered},
		{"unparseable url falls back to lightweight", "://bad", enabled, scrape.StrategyLightweight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Select(tt.url, tt.cfg))
			// Pure function: repeated evaluation never changes the answer.
			assert.Equal(t, tt.want, Select(tt.url, tt.cfg))
		})
	}
}
