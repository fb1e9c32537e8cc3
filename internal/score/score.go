// Package score counts keyword occurrences in extracted page text.
package score

import (
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

var (
	patternMu    sync.RWMutex
	patternCache = map[string]*regexp.Regexp{}
)

// Keywords counts case-insensitive whole-word occurrences of each keyword in
// text. Absent keywords count as zero. The returned total is the sum across
// all keywords. An empty keyword list yields an empty map and a zero total.
func Keywords(text string, keywords []string) (map[string]int, int) {
	counts := make(map[string]int, len(keywords))
	total := 0
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		n := countWord(text, kw)
		counts[kw] = n
		total += n
	}
	return counts, total
}

// countWord finds candidate matches with a case-insensitive pattern and then
// checks word boundaries on the surrounding runes. regexp's \b is ASCII-only,
// which would misjudge keywords that start or end outside ASCII ("café"), so
// the boundary check lives here instead of in the pattern.
func countWord(text, keyword string) int {
	re := patternFor(keyword)
	if re == nil {
		return 0
	}
	count := 0
	for _, loc := range re.FindAllStringIndex(text, -1) {
		if boundedMatch(text, keyword, loc[0], loc[1]) {
			count++
		}
	}
	return count
}

// boundedMatch reports whether the match at [start,end) stands on word
// boundaries. A boundary is only required on sides where the keyword itself
// starts or ends with a word rune, so "C++" matches "C++ code" even though
// '+' never sits at a boundary.
func boundedMatch(text, keyword string, start, end int) bool {
	first, _ := utf8.DecodeRuneInString(keyword)
	if isWordRune(first) && start > 0 {
		if prev, _ := utf8.DecodeLastRuneInString(text[:start]); isWordRune(prev) {
			return false
		}
	}
	last, _ := utf8.DecodeLastRuneInString(keyword)
	if isWordRune(last) && end < len(text) {
		if next, _ := utf8.DecodeRuneInString(text[end:]); isWordRune(next) {
			return false
		}
	}
	return true
}

func patternFor(keyword string) *regexp.Regexp {
	patternMu.RLock()
	re, ok := patternCache[keyword]
	patternMu.RUnlock()
	if ok {
		return re
	}

	re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(keyword))
	if err != nil {
		return nil
	}

	patternMu.Lock()
	patternCache[keyword] = re
	patternMu.Unlock()
	return re
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
