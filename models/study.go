package models

// MCQ is a single multiple-choice question with four options labelled A-D.
type MCQ struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectOption string   `json:"correct_option"`
}

// Flashcard is a front/back study card.
type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// StudentInfo describes who the material is generated for. It is rendered into prompts.
type StudentInfo struct {
	SubjectCode string `json:"subject_code"`
	Name        string `json:"name,omitempty"`
	Age         int    `json:"age,omitempty"`
	Batch       string `json:"batch,omitempty"`
	Regulation  string `json:"regulation,omitempty"`
}
