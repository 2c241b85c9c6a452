package services

import "google.golang.org/genai"

// OutputKind names the shape a completion is expected to return.
type OutputKind string

const (
	OutputText       OutputKind = ""
	OutputMCQs       OutputKind = "mcqs"
	OutputFlashcards OutputKind = "flashcards"
)

// ResponseSchema returns the Gemini response schema for kind, or nil for free text.
func ResponseSchema(kind OutputKind) *genai.Schema {
	switch kind {
	case OutputMCQs:
		return &genai.Schema{
			Type:        genai.TypeArray,
			Description: "Multiple-choice questions generated from the context.",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"question": {
						Type:        genai.TypeString,
						Description: "The question text, rephrased from the context.",
					},
					"options": {
						Type:        genai.TypeArray,
						Description: "Exactly four answer options, in A, B, C, D order.",
						Items:       &genai.Schema{Type: genai.TypeString},
					},
					"correct_option": {
						Type:        genai.TypeString,
						Description: "Letter of the correct option.",
						Enum:        []string{"A", "B", "C", "D"},
					},
				},
				Required: []string{"question", "options", "correct_option"},
			},
		}
	case OutputFlashcards:
		return &genai.Schema{
			Type:        genai.TypeArray,
			Description: "Flashcards generated from the context.",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"front": {
						Type:        genai.TypeString,
						Description: "A concise question or term, without options.",
					},
					"back": {
						Type:        genai.TypeString,
						Description: "The answer, definition or explanation.",
					},
				},
				Required: []string{"front", "back"},
			},
		}
	default:
		return nil
	}
}
