package services

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	biblioHeading = regexp.MustCompile(`(?i)^\s*(Text\s*Books?|References?)\s*:?\s*$`)

	// A line that looks like a new section or a numbered item ends a bibliography block.
	sectionHeading = regexp.MustCompile(`^[A-Z0-9 ]{5,}$`)
	numberedItem   = regexp.MustCompile(`^\d+[\.\)]`)

	biblioLinePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bISBN\b`),
		regexp.MustCompile(`(?i)\bPublisher\b`),
		regexp.MustCompile(`(?i)\bEdition\b`),
		regexp.MustCompile(`(?i)\bAuthor(s)?\b`),
		regexp.MustCompile(`(?i)\bText\s*Book\b`),
		regexp.MustCompile(`(?i)\bReference\b`),
	}

	// Watermarks stamped on pages downloaded from note-sharing sites.
	badPhrases = []string{"lOMoARcPSD", "Downloaded by"}
)

// CleanText strips watermark lines and bibliographic blocks from raw page text
// and normalizes line endings. It is idempotent.
//
// Joining hyphenated line breaks can form a line that only then matches a
// filter ("Refer-\nence"), so passes repeat until the text stops changing.
// Every pass that changes the text shortens it.
func CleanText(raw string) string {
	out := cleanOnce(raw)
	for {
		next := cleanOnce(out)
		if next == out {
			return out
		}
		out = next
	}
}

func cleanOnce(raw string) string {
	if raw == "" {
		return ""
	}

	kept := make([]string, 0, 64)
	skipRefs := false
	for _, rawLine := range splitLines(raw) {
		line := strings.TrimSpace(rawLine)

		if biblioHeading.MatchString(line) {
			skipRefs = true
			continue
		}
		if skipRefs {
			if !sectionHeading.MatchString(line) && !numberedItem.MatchString(line) {
				continue
			}
			skipRefs = false
		}
		if containsBadPhrase(line) || isBiblioLine(line) {
			continue
		}
		kept = append(kept, line)
	}

	cleaned := strings.Join(kept, "\n")
	cleaned = strings.ReplaceAll(cleaned, "-\n", "")
	cleaned = strings.ReplaceAll(cleaned, "\r\n", "\n")
	cleaned = strings.ReplaceAll(cleaned, "\r", "\n")

	lines := strings.Split(cleaned, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRightFunc(l, unicode.IsSpace)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func containsBadPhrase(line string) bool {
	for _, bad := range badPhrases {
		if strings.Contains(line, bad) {
			return true
		}
	}
	return false
}

func isBiblioLine(line string) bool {
	for _, re := range biblioLinePatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// splitLines splits s on every line boundary extracted PDF text may contain:
// \n, \r\n, \r, vertical tab, form feed, the file/group/record separators,
// NEL and the Unicode line and paragraph separators. A trailing boundary does
// not produce an empty final line.
func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch r {
		case '\r':
			lines = append(lines, s[start:i])
			if i+1 < len(s) && s[i+1] == '\n' {
				size = 2
			}
			start = i + size
		case '\n', '\v', '\f', 0x1c, 0x1d, 0x1e, 0x85, 0x2028, 0x2029:
			lines = append(lines, s[start:i])
			start = i + size
		}
		i += size
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
