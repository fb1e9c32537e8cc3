// Package extract locates the main content region of a page and produces a
// structured representation of it.
package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Bai-ee/Agent-cy/internal/scrape"
)

// MaxLinks bounds the outbound-link prefix kept per page.
const MaxLinks = 20

// noiseSelector matches boilerplate elements removed before any content
// heuristic runs.
const noiseSelector = "script, style, nav, footer, iframe, noscript, " +
	"[role=banner], [role=navigation]"

// candidateSelectors is the priority list of semantic containers tried before
// falling back to the densest block element.
var candidateSelectors = []string{
	"main",
	"article",
	"#content",
	"#main-content",
	"#post",
	"#article",
	".content",
	".post",
	".article",
	".post-content",
	".article-body",
}

// Extract parses raw markup and returns the structured main content. It is
// deterministic: identical markup always yields an identical result. Markup
// with no meaningful text yields empty fields, not an error.
func Extract(rawHTML string) (scrape.ExtractionResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return scrape.ExtractionResult{}, fmt.Errorf("parse markup: %w", err)
	}

	doc.Find(noiseSelector).Remove()

	result := scrape.ExtractionResult{
		Title:       extractTitle(doc),
		Description: extractDescription(doc),
	}

	region := mainRegion(doc)
	if region == nil {
		return result, nil
	}

	result.MainText = collapseWhitespace(region.Text())
	result.Headings = extractHeadings(region)
	result.Links = extractLinks(region)
	return result, nil
}

func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return collapseWhitespace(doc.Find("h1").First().Text())
}

func extractDescription(doc *goquery.Document) string {
	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		if desc = strings.TrimSpace(desc); desc != "" {
			return desc
		}
	}
	if desc, ok := doc.Find(`meta[property="og:description"]`).First().Attr("content"); ok {
		return strings.TrimSpace(desc)
	}
	return ""
}

// mainRegion applies the content heuristic: semantic containers in priority
// order, then the block container with the most trimmed text (first wins on
// ties), then the document body.
func mainRegion(doc *goquery.Document) *goquery.Selection {
	for _, selector := range candidateSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() > 0 && strings.TrimSpace(sel.Text()) != "" {
			return sel
		}
	}

	var best *goquery.Selection
	bestLen := 0
	doc.Find("div, section, td").Each(func(_ int, s *goquery.Selection) {
		textLen := len(strings.TrimSpace(s.Text()))
		if textLen > bestLen {
			best = s
			bestLen = textLen
		}
	})
	if best != nil {
		return best
	}

	body := doc.Find("body").First()
	if body.Length() > 0 {
		return body
	}
	return nil
}

func extractHeadings(region *goquery.Selection) []scrape.Heading {
	var headings []scrape.Heading
	region.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		text := collapseWhitespace(s.Text())
		if text == "" {
			return
		}
		level := 1
		if name := goquery.NodeName(s); len(name) == 2 {
			level = int(name[1] - '0')
		}
		headings = append(headings, scrape.Heading{Level: level, Text: text})
	})
	return headings
}

func extractLinks(region *goquery.Selection) []scrape.Link {
	var links []scrape.Link
	region.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		text := collapseWhitespace(s.Text())
		if text == "" || href == "" || strings.HasPrefix(href, "#") {
			return true
		}
		links = append(links, scrape.Link{Text: text, Href: href})
		return len(links) < MaxLinks
	})
	return links
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
