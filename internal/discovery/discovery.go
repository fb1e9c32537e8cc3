// Package discovery maps a topical query to candidate URLs when the caller
// supplies no explicit URL.
package discovery

import (
	"net/url"
	"regexp"
	"strings"
)

// Rule-based routes for common intents. Queries that match none of these get
// search-engine query URLs so there is always something to scrape.
var (
	weatherWords = []string{"weather", "forecast", "temperature", "rain", "snow"}
	newsWords    = []string{"news", "headlines", "breaking", "latest"}

	interrogative = regexp.MustCompile(`(?i)^(?:who|what|when|where)(?:'s|\s+is|\s+are|\s+was|\s+were)\s+(.+)$`)
)

var searchTemplates = []string{
	"https://www.google.com/search?q=%s",
	"https://duckduckgo.com/?q=%s",
	"https://www.bing.com/search?q=%s",
}

// Discover returns up to maxResults candidate URLs for the query. It never
// fails: an empty or unroutable query yields an empty slice and the caller
// decides there is nothing to scrape.
func Discover(query string, maxResults int) []string {
	query = strings.TrimSpace(query)
	if query == "" || maxResults <= 0 {
		return nil
	}

	var urls []string
	lower := strings.ToLower(query)

	switch {
	case containsAny(lower, weatherWords):
		urls = []string{
			"https://weather.com",
			"https://www.accuweather.com",
		}
	case containsAny(lower, newsWords):
		urls = []string{
			"https://news.google.com",
			"https://apnews.com",
		}
	case interrogative.MatchString(query):
		topic := interrogative.FindStringSubmatch(query)[1]
		if article := wikipediaURL(topic); article != "" {
			urls = []string{article}
		}
	}

	if len(urls) == 0 {
		escaped := url.QueryEscape(query)
		for _, tmpl := range searchTemplates {
			urls = append(urls, strings.Replace(tmpl, "%s", escaped, 1))
		}
	}

	if len(urls) > maxResults {
		urls = urls[:maxResults]
	}
	return urls
}

func wikipediaURL(topic string) string {
	topic = strings.TrimRight(strings.TrimSpace(topic), "?.!")
	if topic == "" {
		return ""
	}
	words := strings.Fields(topic)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return "https://en.wikipedia.org/wiki/" + url.PathEscape(strings.Join(words, "_"))
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
