package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/itish2003/studyrag/models"
)

type fakeCompleter struct {
	out  string
	err  error
	reqs []CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req CompletionRequest) (string, error) {
	f.reqs = append(f.reqs, req)
	return f.out, f.err
}

func (f *fakeCompleter) Name() string { return "fake" }

func TestRepairJSONArray(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "prose and trailing comma",
			in:   `Here you go: [{"question":"Q1","options":["a","b","c","d"],"correct_option":"A"},] Thanks`,
			want: `[{"question":"Q1","options":["a","b","c","d"],"correct_option":"A"}]`,
		},
		{
			name: "trailing comma in object",
			in:   `[{"front":"x","back":"y",}]`,
			want: `[{"front":"x","back":"y"}]`,
		},
		{
			name: "control chars replaced",
			in:   "[{\"front\":\"a\tb\",\n\"back\":\"c\"}]",
			want: `[{"front":"a b", "back":"c"}]`,
		},
		{
			name: "no array returns trimmed input",
			in:   "  sorry, I cannot help  ",
			want: "sorry, I cannot help",
		},
		{
			name: "greedy span from first to last bracket",
			in:   `[1] and [2]`,
			want: `[1] and [2]`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RepairJSONArray(tt.in))
		})
	}
}

func TestMCQGenerator_TrailingCommaOutput(t *testing.T) {
	fc := &fakeCompleter{out: `Here you go: [{"question":"Q1","options":["a","b","c","d"],"correct_option":"A"},] Thanks`}
	g := NewMCQGenerator(fc, zap.NewNop())

	mcqs, err := g.Generate(context.Background(), models.StudentInfo{SubjectCode: "CS3491"}, "Some context about search.")
	require.NoError(t, err)
	require.Len(t, mcqs, 1)
	assert.Equal(t, models.MCQ{Question: "Q1", Options: []string{"a", "b", "c", "d"}, CorrectOption: "A"}, mcqs[0])

	require.Len(t, fc.reqs, 1)
	assert.Equal(t, OutputMCQs, fc.reqs[0].Kind)
	assert.Contains(t, fc.reqs[0].Prompt, "Some context about search.")
	assert.Contains(t, fc.reqs[0].Prompt, `"subject_code":"CS3491"`)
	assert.Contains(t, fc.reqs[0].Prompt, "Generate exactly 10 MCQs")
}

func TestMCQGenerator_BlankContextSkipsModel(t *testing.T) {
	fc := &fakeCompleter{}
	g := NewMCQGenerator(fc, zap.NewNop())

	mcqs, err := g.Generate(context.Background(), models.StudentInfo{}, "  \n ")
	require.NoError(t, err)
	assert.Empty(t, mcqs)
	assert.Empty(t, fc.reqs)
}

func TestMCQGenerator_UnparseableOutput(t *testing.T) {
	g := NewMCQGenerator(&fakeCompleter{out: "I could not produce questions."}, zap.NewNop())

	mcqs, err := g.Generate(context.Background(), models.StudentInfo{}, "context")
	require.NoError(t, err)
	assert.NotNil(t, mcqs)
	assert.Empty(t, mcqs)
}

func TestMCQGenerator_CompletionError(t *testing.T) {
	g := NewMCQGenerator(&fakeCompleter{err: context.DeadlineExceeded}, zap.NewNop())

	_, err := g.Generate(context.Background(), models.StudentInfo{}, "context")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMCQGenerator_ContextCapped(t *testing.T) {
	fc := &fakeCompleter{out: "[]"}
	g := NewMCQGenerator(fc, zap.NewNop())

	long := strings.Repeat("x", MaxContextChars) + "TAIL"
	_, err := g.Generate(context.Background(), models.StudentInfo{}, long)
	require.NoError(t, err)
	assert.NotContains(t, fc.reqs[0].Prompt, "TAIL")
}

func TestValidateMCQs(t *testing.T) {
	var items []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(`[
		{"question":" What is A*? ","options":["a","b","c","d"],"correct_option":"B"},
		{"question":"What is A*?","options":["e","f","g","h"],"correct_option":"C"},
		{"question":"Three options","options":["a","b","c"],"correct_option":"A"},
		{"question":"Bad key","options":["a","b","c","d"],"correct_option":"E"},
		{"question":"Lowercase key","options":["a","b","c","d"],"correct_option":"a"},
		{"question":"Numeric options","options":[1,2,3,4],"correct_option":"A"},
		{"options":["a","b","c","d"],"correct_option":"A"},
		{"question":null,"options":["a","b","c","d"],"correct_option":"A"},
		{"question":"   ","options":["a","b","c","d"],"correct_option":"B"},
		"not an object",
		{"question":"What is BFS?","options":["a","b","c","d"],"correct_option":"D"}
	]`), &items))

	got := ValidateMCQs(items)
	require.Len(t, got, 2)
	assert.Equal(t, "What is A*?", got[0].Question)
	assert.Equal(t, "B", got[0].CorrectOption)
	assert.Equal(t, "What is BFS?", got[1].Question)
}

func TestFlashcardGenerator(t *testing.T) {
	fc := &fakeCompleter{out: "```json\n[{\"front\":\" Heuristic \",\"back\":\" An estimate of cost \"},{\"front\":\"Heuristic\",\"back\":\"dup\"},{\"front\":\"\",\"back\":\"x\"},{\"front\":\"Agent\"},{\"front\":\"PEAS\",\"back\":\"Performance, environment, actuators, sensors\"},]\n```"}
	g := NewFlashcardGenerator(fc, zap.NewNop())

	cards, err := g.Generate(context.Background(), models.StudentInfo{SubjectCode: "CS3491"}, "context", 0)
	require.NoError(t, err)
	assert.Equal(t, []models.Flashcard{
		{Front: "Heuristic", Back: "An estimate of cost"},
		{Front: "PEAS", Back: "Performance, environment, actuators, sensors"},
	}, cards)

	require.Len(t, fc.reqs, 1)
	assert.Equal(t, OutputFlashcards, fc.reqs[0].Kind)
	assert.Contains(t, fc.reqs[0].Prompt, "create exactly 8 pairs")
}

func TestFlashcardGenerator_NumCardsInPrompt(t *testing.T) {
	fc := &fakeCompleter{out: "[]"}
	g := NewFlashcardGenerator(fc, zap.NewNop())

	_, err := g.Generate(context.Background(), models.StudentInfo{}, "context", 3)
	require.NoError(t, err)
	assert.Contains(t, fc.reqs[0].Prompt, "Generate exactly 3 flashcards")
}

// slowCompleter blocks until its context is done.
type slowCompleter struct{}

func (slowCompleter) Complete(ctx context.Context, _ CompletionRequest) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (slowCompleter) Name() string { return "slow" }

func TestInstrumentedCompleter_Timeout(t *testing.T) {
	c := NewInstrumentedCompleter(slowCompleter{}, 20*time.Millisecond, zap.NewNop())

	_, err := c.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type fakeInputRunner struct {
	stdin string
	name  string
	args  []string
	out   []byte
	err   error
}

func (f *fakeInputRunner) RunWithInput(_ context.Context, stdin, name string, args ...string) ([]byte, error) {
	f.stdin, f.name, f.args = stdin, name, args
	return f.out, f.err
}

func TestCLICompleter(t *testing.T) {
	r := &fakeInputRunner{out: []byte(`[{"front":"a","back":"b"}]`)}
	c := NewCLICompleter("ollama", "llama3.1:8b", r)

	out, err := c.Complete(context.Background(), CompletionRequest{System: "sys", Prompt: "prompt"})
	require.NoError(t, err)
	assert.Equal(t, `[{"front":"a","back":"b"}]`, out)
	assert.Equal(t, "ollama", r.name)
	assert.Equal(t, []string{"run", "llama3.1:8b"}, r.args)
	assert.Equal(t, "sys\n\nprompt", r.stdin)

	r.err = errors.New("exit status 1")
	_, err = c.Complete(context.Background(), CompletionRequest{Prompt: "prompt"})
	assert.Error(t, err)
}

func TestResponseSchema(t *testing.T) {
	assert.Nil(t, ResponseSchema(OutputText))
	mcq := ResponseSchema(OutputMCQs)
	require.NotNil(t, mcq)
	assert.ElementsMatch(t, []string{"question", "options", "correct_option"}, mcq.Items.Required)
	cards := ResponseSchema(OutputFlashcards)
	require.NotNil(t, cards)
	assert.ElementsMatch(t, []string{"front", "back"}, cards.Items.Required)
}
