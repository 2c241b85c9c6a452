package services

import (
	"strings"
	"unicode/utf8"
)

// JunkOptions tunes IsJunk.
type JunkOptions struct {
	MinLength          int
	DuplicateThreshold float64
	MinUniqueRatio     float64
}

// JunkOption configures IsJunk.
type JunkOption func(*JunkOptions)

func WithMinLength(n int) JunkOption {
	return func(o *JunkOptions) { o.MinLength = n }
}

func WithDuplicateThreshold(t float64) JunkOption {
	return func(o *JunkOptions) { o.DuplicateThreshold = t }
}

func WithMinUniqueRatio(r float64) JunkOption {
	return func(o *JunkOptions) { o.MinUniqueRatio = r }
}

// IsJunk reports whether page text is too short, too repetitive or too low in
// vocabulary to be trusted, in which case the page is OCR'd instead.
//
// Note that a page with fewer than four distinct non-blank lines is always junk
// under the default duplicate threshold.
func IsJunk(text string, opts ...JunkOption) bool {
	o := JunkOptions{MinLength: 50, DuplicateThreshold: 0.25, MinUniqueRatio: 0.30}
	for _, opt := range opts {
		opt(&o)
	}

	if strings.TrimSpace(text) == "" || utf8.RuneCountInString(text) < o.MinLength {
		return true
	}

	counts := make(map[string]int)
	total, maxCount := 0, 0
	for _, l := range splitLines(text) {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		total++
		counts[l]++
		if counts[l] > maxCount {
			maxCount = counts[l]
		}
	}
	if total > 0 && float64(maxCount)/float64(total) > o.DuplicateThreshold {
		return true
	}

	tokens := strings.Fields(text)
	unique := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		unique[tok] = struct{}{}
	}
	return float64(len(unique))/float64(max(len(tokens), 1)) < o.MinUniqueRatio
}
