package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bai-ee/Agent-cy/internal/scrape"
)

func TestExtract_SemanticContainerWins(t *testing.T) {
	t.Parallel()

	html := `<html><head>
		<title>The Page</title>
		<meta name="description" content="A page about things.">
	</head><body>
		<nav><a href="/home">Home</a></nav>
		<article>
			<h1>Main Heading</h1>
			<p>Article body text with a <a href="/more">read more</a> link.</p>
			<h2>Sub Heading</h2>
		</article>
		<div>Sidebar chatter that should be ignored even if long enough.</div>
		<footer>copyright</footer>
	</body></html>`

	result, err := Extract(html)
	require.NoError(t, err)

	assert.Equal(t, "The Page", result.Title)
	assert.Equal(t, "A page about things.", result.Description)
	assert.Contains(t, result.MainText, "Article body text")
	assert.NotContains(t, result.MainText, "Sidebar chatter")
	assert.Equal(t, []scrape.Heading{
		{Level: 1, Text: "Main Heading"},
		{Level: 2, Text: "Sub Heading"},
	}, result.Headings)
	assert.Equal(t, []scrape.Link{{Text: "read more", Href: "/more"}}, result.Links)
}

func TestExtract_DensestBlockFallback(t *testing.T) {
	t.Parallel()

	short := strings.Repeat("a", 100)
	long := strings.Repeat("b", 500)
	html := fmt.Sprintf(`<html><body><div>%s</div><div>%s</div></body></html>`, short, long)

	result, err := Extract(html)
	require.NoError(t, err)
	assert.Equal(t, long, result.MainText)
}

func TestExtract_NoiseRemoval(t *testing.T) {
	t.Parallel()

	html := `<html><body><main>
		<script>var secret = 1;</script>
		<style>.x{color:red}</style>
		<div role="banner">big banner</div>
		<p>Actual content.</p>
	</main></body></html>`

	result, err := Extract(html)
	require.NoError(t, err)
	assert.Equal(t, "Actual content.", result.MainText)
}

func TestExtract_TitleFallsBackToHeading(t *testing.T) {
	t.Parallel()

	html := `<html><body><article><h1>  Heading   Title </h1><p>text</p></article></body></html>`
	result, err := Extract(html)
	require.NoError(t, err)
	assert.Equal(t, "Heading Title", result.Title)
}

func TestExtract_OGDescriptionFallback(t *testing.T) {
	t.Parallel()

	html := `<html><head><meta property="og:description" content="og text"></head>
		<body><article><p>x</p></article></body></html>`
	result, err := Extract(html)
	require.NoError(t, err)
	assert.Equal(t, "og text", result.Description)
}

func TestExtract_WhitespaceOnlyYieldsEmptyNotError(t *testing.T) {
	t.Parallel()

	html := `<html><body><div>   </div><div>
	</div></body></html>`
	result, err := Extract(html)
	require.NoError(t, err)
	assert.Empty(t, result.MainText)
	assert.Empty(t, result.Headings)
}

func TestExtract_LinksCappedAndFiltered(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	sb.WriteString(`<html><body><article>`)
	sb.WriteString(`<a href="#frag">fragment link</a>`)
	sb.WriteString(`<a href="/empty"></a>`)
	for i := 0; i < MaxLinks+5; i++ {
		fmt.Fprintf(&sb, `<a href="/l%d">link %d</a>`, i, i)
	}
	sb.WriteString(`</article></body></html>`)

	result, err := Extract(sb.String())
	require.NoError(t, err)
	require.Len(t, result.Links, MaxLinks)
	assert.Equal(t, scrape.Link{Text: "link 0", Href: "/l0"}, result.Links[0])
}

func TestExtract_Deterministic(t *testing.T) {
	t.Parallel()

	html := `<html><body><div>alpha beta</div><section>gamma delta epsilon</section></body></html>`
	first, err := Extract(html)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Extract(html)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
