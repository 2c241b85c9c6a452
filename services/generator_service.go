package services

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/itish2003/studyrag/metrics"
	"github.com/itish2003/studyrag/models"
)

// DefaultNumCards is used when a flashcard request does not say how many.
const DefaultNumCards = 8

var correctOptions = map[string]bool{"A": true, "B": true, "C": true, "D": true}

// MCQGenerator turns retrieved context into validated multiple-choice questions.
type MCQGenerator struct {
	completer Completer
	logger    *zap.Logger
}

func NewMCQGenerator(completer Completer, logger *zap.Logger) *MCQGenerator {
	return &MCQGenerator{completer: completer, logger: logger.Named("generator.mcq")}
}

// Generate returns the valid MCQs the model produced for the retrieved context. Blank
// context and unparseable output yield an empty list; only completion
// failures are returned as errors.
func (g *MCQGenerator) Generate(ctx context.Context, info models.StudentInfo, retrieved string) ([]models.MCQ, error) {
	prepared := PrepareContext(retrieved)
	if prepared == "" {
		return []models.MCQ{}, nil
	}

	out, err := g.completer.Complete(ctx, CompletionRequest{
		System: GetSystemPrompt(),
		Prompt: BuildMCQPrompt(info, prepared),
		Kind:   OutputMCQs,
	})
	if err != nil {
		return nil, err
	}

	items, ok := parseJSONArray(out)
	if !ok {
		g.logger.Warn("model output was not valid JSON even after repairs", zap.Int("chars", len(out)))
		return []models.MCQ{}, nil
	}
	mcqs := ValidateMCQs(items)
	metrics.GeneratedItemsTotal.WithLabelValues("mcq").Add(float64(len(mcqs)))
	g.logger.Info("generated mcqs", zap.String("subject", info.SubjectCode),
		zap.Int("returned", len(items)), zap.Int("valid", len(mcqs)))
	return mcqs, nil
}

// FlashcardGenerator turns retrieved context into validated flashcards.
type FlashcardGenerator struct {
	completer Completer
	logger    *zap.Logger
}

func NewFlashcardGenerator(completer Completer, logger *zap.Logger) *FlashcardGenerator {
	return &FlashcardGenerator{completer: completer, logger: logger.Named("generator.flashcards")}
}

// Generate returns the valid flashcards the model produced; numCards <= 0 means DefaultNumCards.
func (g *FlashcardGenerator) Generate(ctx context.Context, info models.StudentInfo, retrieved string, numCards int) ([]models.Flashcard, error) {
	prepared := PrepareContext(retrieved)
	if prepared == "" {
		return []models.Flashcard{}, nil
	}
	if numCards <= 0 {
		numCards = DefaultNumCards
	}

	out, err := g.completer.Complete(ctx, CompletionRequest{
		System: GetSystemPrompt(),
		Prompt: BuildFlashcardPrompt(info, prepared, numCards),
		Kind:   OutputFlashcards,
	})
	if err != nil {
		return nil, err
	}

	items, ok := parseJSONArray(out)
	if !ok {
		g.logger.Warn("model output was not valid JSON even after repairs", zap.Int("chars", len(out)))
		return []models.Flashcard{}, nil
	}
	cards := ValidateFlashcards(items)
	metrics.GeneratedItemsTotal.WithLabelValues("flashcard").Add(float64(len(cards)))
	g.logger.Info("generated flashcards", zap.String("subject", info.SubjectCode),
		zap.Int("returned", len(items)), zap.Int("valid", len(cards)))
	return cards, nil
}

func parseJSONArray(out string) ([]json.RawMessage, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(RepairJSONArray(out)), &items); err != nil {
		return nil, false
	}
	return items, true
}

// ValidateMCQs keeps items that have a non-blank question, exactly four string options
// and a correct option in A-D, dropping repeated questions.
func ValidateMCQs(items []json.RawMessage) []models.MCQ {
	out := []models.MCQ{}
	seen := make(map[string]bool)
	for _, raw := range items {
		var m map[string]json.RawMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		var (
			question, correct string
			options           []string
		)
		if json.Unmarshal(m["question"], &question) != nil ||
			json.Unmarshal(m["options"], &options) != nil ||
			json.Unmarshal(m["correct_option"], &correct) != nil {
			continue
		}
		if len(options) != 4 || !correctOptions[correct] {
			continue
		}
		question = strings.TrimSpace(question)
		if question == "" || seen[question] {
			continue
		}
		seen[question] = true
		out = append(out, models.MCQ{Question: question, Options: options, CorrectOption: correct})
	}
	return out
}

// ValidateFlashcards keeps items with a non-blank front and back, dropping repeated fronts.
func ValidateFlashcards(items []json.RawMessage) []models.Flashcard {
	out := []models.Flashcard{}
	seen := make(map[string]bool)
	for _, raw := range items {
		var c struct {
			Front *string `json:"front"`
			Back  *string `json:"back"`
		}
		if err := json.Unmarshal(raw, &c); err != nil || c.Front == nil || c.Back == nil {
			continue
		}
		front, back := strings.TrimSpace(*c.Front), strings.TrimSpace(*c.Back)
		if front == "" || back == "" || seen[front] {
			continue
		}
		seen[front] = true
		out = append(out, models.Flashcard{Front: front, Back: back})
	}
	return out
}
