package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"google.golang.org/genai"

	"github.com/itish2003/studyrag/models"
)

// MaxContextChars caps the retrieved context placed into a generation prompt.
const MaxContextChars = 12000

// GetSystemPrompt is the system instruction shared by both generators.
func GetSystemPrompt() string {
	return `You generate study material for university students from extracted course content.
Base every item solely on the concepts in the provided context. Never invent facts that the context does not support.
Reply with a JSON array only, without markdown fences or commentary.`
}

// systemInstruction wraps the system prompt for the Gemini API.
func systemInstruction(prompt string) *genai.Content {
	contents := genai.Text(prompt)
	if len(contents) == 0 {
		return nil
	}
	return contents[0]
}

// PrepareContext trims ctx and caps it at MaxContextChars characters.
func PrepareContext(ctx string) string {
	ctx = strings.TrimSpace(ctx)
	if utf8.RuneCountInString(ctx) <= MaxContextChars {
		return ctx
	}
	return string([]rune(ctx)[:MaxContextChars])
}

func formatStudentInfo(info models.StudentInfo) string {
	b, err := json.Marshal(info)
	if err != nil {
		return info.SubjectCode
	}
	return string(b)
}

// BuildMCQPrompt renders the fixed MCQ prompt around an already prepared context.
func BuildMCQPrompt(info models.StudentInfo, ctx string) string {
	return fmt.Sprintf(`You are a question paper generator.
Given the following extracted exam content, create original MCQs based solely on the concepts in the text.

Rules:
- Generate ONLY new MCQs, do not answer them.
- Avoid copying exact wording from the text; rephrase concepts.
- Each MCQ must have 4 options: A, B, C, D.
- Randomize the position of the correct answer.
- Provide the correct answer key separately.
- Output format must be STRICT JSON array of objects with keys:
  "question" (string),
  "options" (array of 4 strings),
  "correct_option" ("A","B","C","D")

Student info: %s

Context:
"""%s"""

Generate exactly 10 MCQs from the above context.
`, formatStudentInfo(info), ctx)
}

// BuildFlashcardPrompt renders the fixed flashcard prompt around an already prepared context.
func BuildFlashcardPrompt(info models.StudentInfo, ctx string, numCards int) string {
	return fmt.Sprintf(`You are a flashcard content generator.
Given the following extracted learning material, create exactly %[1]d pairs of flashcards
to help the student strengthen their knowledge of the key concepts.

Rules:
- Each flashcard must have:
    "front": a concise question or term (string), do not give any options here
    "back": the clear, correct answer/definition/explanation (string)
- Do not include any extra commentary.
- Do not frame questions directly based on the syllabus, or frame questions based on authors or books etc.
- Output must be STRICT JSON array of objects with keys: "front", "back".

Student info: %[2]s

Context:
"""%[3]s"""

Generate exactly %[1]d flashcards from the above context.
`, numCards, formatStudentInfo(info), ctx)
}
