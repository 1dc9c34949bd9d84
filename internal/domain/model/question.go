package model

import "time"

// DefaultCategoryLabel is reported for questions without a category.
const DefaultCategoryLabel = "General"

// Category groups questions by topic.
type Category struct {
	ID    int64  `json:"id"`
	Slug  string `json:"slug"`
	Label string `json:"label"`
}

// Question is a numeric trivia prompt with a known answer.
type Question struct {
	ID            int64      `json:"id"`
	Prompt        string     `json:"text"`
	CorrectAnswer float64    `json:"answer"`
	Unit          string     `json:"unit"`
	Categories    []Category `json:"categories"`
	Version       int        `json:"version"`
	CreatedBy     string     `json:"created_by,omitempty"`
	LastEditedBy  string     `json:"last_edited_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Creator       *Profile   `json:"creator,omitempty"`
	LastEditor    *Profile   `json:"last_editor,omitempty"`
}

// CategoryLabel returns the first category label or the default one.
func (q Question) CategoryLabel() string {
	if len(q.Categories) == 0 {
		return DefaultCategoryLabel
	}
	return q.Categories[0].Label
}

// QuestionDraft is the input for creating or editing a question. On update,
// nil fields are left unchanged and a nil CategoryIDs keeps existing links.
type QuestionDraft struct {
	Prompt        *string  `json:"prompt,omitempty"`
	CorrectAnswer *float64 `json:"correct_answer,omitempty"`
	Unit          *string  `json:"unit,omitempty"`
	CategoryIDs   []int64  `json:"category_ids,omitempty"`
}

// QuestionFilter narrows a question listing.
type QuestionFilter struct {
	CategorySlug   string
	IncludeCreator bool
	Limit          int
}
