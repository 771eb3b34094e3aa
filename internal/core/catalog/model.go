package catalog

import "time"

// Entry is a canonical product record keyed by a normalized slug id. Field
// names are stable, existing catalog data depends on them.
type Entry struct {
	ProductID       string    `json:"product_id" db:"product_id"`
	Name            string    `json:"name" db:"name"`
	ImageURL        string    `json:"image_url" db:"image_url"`
	Description     *string   `json:"description" db:"description"`
	Source          *string   `json:"source" db:"source"`
	Unit            string    `json:"unit" db:"unit"`
	Score           int64     `json:"score" db:"score"`
	IsHumanReviewed bool      `json:"is_human_reviewed" db:"is_human_reviewed"`
	SearchTerms     []string  `json:"search_terms" db:"search_terms"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// MatchResult carries the winning entry of a keyword match and its relevance,
// the count of overlapping keywords.
type MatchResult struct {
	Entry     *Entry
	Relevance int
}
