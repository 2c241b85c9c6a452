package models

import "fmt"

// Category is the kind of study material a PDF belongs to.
type Category string

const (
	CategorySyllabus   Category = "syllabus"
	CategoryNotes      Category = "notes"
	CategoryPastPapers Category = "past_papers"
)

// AllCategories lists the categories in ingestion order.
var AllCategories = []Category{CategorySyllabus, CategoryNotes, CategoryPastPapers}

// ParseCategory returns the Category named by s.
func ParseCategory(s string) (Category, error) {
	for _, c := range AllCategories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q (must be one of syllabus, notes, past_papers)", ErrInvalidCategory, s)
}

func (c Category) String() string { return string(c) }
