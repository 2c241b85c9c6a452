package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", "  \n\t\n ", ""},
		{
			name: "watermarks dropped",
			in:   "lOMoARcPSD|1234\nGradient descent minimises loss.\nDownloaded by someone (x@y.z)",
			want: "Gradient descent minimises loss.",
		},
		{
			name: "lines trimmed and crlf normalized",
			in:   "  first line  \r\n\tsecond line\r\n",
			want: "first line\nsecond line",
		},
		{
			name: "hyphenated line breaks joined",
			in:   "back-\npropagation works",
			want: "backpropagation works",
		},
		{
			name: "bibliographic lines dropped",
			in:   "Unit 1 covers search.\nISBN 978-0-13-604259-4\nPublisher: Pearson\nThird Edition\nAuthors: Russell\nText Book on AI\nSee Reference 2\nUnit 2 covers logic.",
			want: "Unit 1 covers search.\nUnit 2 covers logic.",
		},
		{
			name: "bibliography block skipped until section heading",
			in:   "Intro text\nREFERENCES:\nRussell and Norvig, AI a modern approach\nMitchell, Machine Learning\nUNIT III LEARNING\nDecision trees",
			want: "Intro text\nUNIT III LEARNING\nDecision trees",
		},
		{
			name: "bibliography block skipped until numbered item",
			in:   "Text Books\nSome book title\n2) Bayesian networks\nmore",
			want: "2) Bayesian networks\nmore",
		},
		{
			name: "line ending a block still filtered",
			in:   "References\nfoo bar\n1. Author list here",
			want: "",
		},
		{
			name: "heading dropped even when nothing follows",
			in:   "Textbooks:",
			want: "",
		},
		{
			name: "form feed splits lines",
			in:   "page one\fpage two",
			want: "page one\npage two",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}

func TestCleanText_Idempotent(t *testing.T) {
	inputs := []string{
		"UNIT I INTRODUCTION\nAgents and environments.\r\nReferences\nNorvig\nUNIT II SEARCH\nA* search-\nalgorithms\n\n\n",
		"lOMoARcPSD\n   spaced   \n\nDownloaded by x\nplain",
		"Heuristics\n\n\nAdmissible heuristics never overestimate.",
		"Read the Refer-\nence manual for details on search.",
		"ISB-\nN 978-0-13-604259-4\nUnit II: Search",
		"Refer-\nences:\nRussell and Norvig\nUnit II",
	}
	for _, in := range inputs {
		once := CleanText(in)
		assert.Equal(t, once, CleanText(once))
	}
}

func TestCleanText_NoForbiddenContent(t *testing.T) {
	in := strings.Join([]string{
		"Syllabus for machine learning",
		"lOMoARcPSD|998877",
		"Edition 4",
		"Text Books:",
		"Bishop, Pattern Recognition",
		"1. Linear regression",
		"Downloaded by student",
		"publisher details",
	}, "\n")

	out := CleanText(in)
	for _, line := range strings.Split(out, "\n") {
		assert.NotContains(t, line, "lOMoARcPSD")
		assert.NotContains(t, line, "Downloaded by")
		assert.False(t, isBiblioLine(line), "bibliographic line survived: %q", line)
		assert.False(t, biblioHeading.MatchString(line), "heading survived: %q", line)
	}
	assert.Equal(t, "Syllabus for machine learning\n1. Linear regression", out)
}

func TestCleanText_HyphenJoinFormsFilteredLine(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"joined reference word", "Read the Refer-\nence manual for details on search.", ""},
		{"joined isbn", "ISB-\nN 978-0-13-604259-4\nUnit II: Search", "Unit II: Search"},
		{"joined heading", "Refer-\nences:\nRussell and Norvig\nUnit II", ""},
		{"join kept", "A* search-\nalgorithms expand nodes", "A* searchalgorithms expand nodes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := CleanText(tt.in)
			assert.Equal(t, tt.want, out)
			for _, line := range strings.Split(out, "\n") {
				assert.False(t, isBiblioLine(line), "bibliographic line survived: %q", line)
				assert.False(t, biblioHeading.MatchString(line), "heading survived: %q", line)
			}
		})
	}
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "", "c"}, splitLines("a\r\nb\r\rc\n"))
	assert.Equal(t, []string{"x", "y"}, splitLines("x y"))
	assert.Nil(t, splitLines(""))
}
