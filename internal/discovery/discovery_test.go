package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscover(t *testing.T) {
	t.Parallel()

	t.Run("interrogative query routes to encyclopedia", func(t *testing.T) {
		t.Parallel()
		urls := Discover("what is quantum computing", 3)
		require.NotEmpty(t, urls)
		assert.Equal(t, "https://en.wikipedia.org/wiki/Quantum_Computing", urls[0])
	})

	t.Run("weather query routes to weather portals", func(t *testing.T) {
		t.Parallel()
		urls := Discover("weather in chicago tomorrow", 3)
		require.NotEmpty(t, urls)
		assert.Equal(t, "https://weather.com", urls[0])
	})

	t.Run("news query routes to aggregators", func(t *testing.T) {
		t.Parallel()
		urls := Discover("latest news about ai", 3)
		require.NotEmpty(t, urls)
		assert.Equal(t, "https://news.google.com", urls[0])
	})

	t.Run("unmatched query falls back to search engines", func(t *testing.T) {
		t.Parallel()
		urls := Discover("gopher burrow construction techniques", 3)
		require.Len(t, urls, 3)
		assert.Contains(t, urls[0], "google.com/search?q=")
		assert.Contains(t, urls[0], "gopher+burrow")
	})

	t.Run("results truncated to maxResults", func(t *testing.T) {
		t.Parallel()
		urls := Discover("anything else entirely", 1)
		assert.Len(t, urls, 1)
	})

	t.Run("empty query yields empty slice", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, Discover("", 3))
		assert.Empty(t, Discover("   ", 3))
	})

	t.Run("zero budget yields empty slice", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, Discover("what is go", 0))
	})
}
