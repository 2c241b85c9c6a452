package services

import (
	"regexp"
	"strings"
)

var (
	outermostArray = regexp.MustCompile(`(?s)\[.*\]`)
	controlChars   = regexp.MustCompile(`[\x00-\x1F\x7F]`)
	trailingComma  = regexp.MustCompile(`,\s*(\]|\})`)
)

// RepairJSONArray fixes the usual defects of model-written JSON arrays: prose
// around the array, raw control characters and trailing commas.
func RepairJSONArray(raw string) string {
	part := raw
	if m := outermostArray.FindString(raw); m != "" {
		part = m
	}
	part = controlChars.ReplaceAllString(part, " ")
	part = trailingComma.ReplaceAllString(part, "$1")
	return strings.TrimSpace(part)
}
