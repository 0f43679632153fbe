package types

import (
	"time"

	"github.com/google/uuid"
)

// SuggestionCategory is the closed set of advisory categories.
type SuggestionCategory string

const (
	CategoryEfficiency    SuggestionCategory = "efficiency"
	CategoryUIImprovement SuggestionCategory = "ui_improvement"
	CategoryPerformance   SuggestionCategory = "performance"
	CategoryFeature       SuggestionCategory = "feature"
)

// ValidSuggestionCategory reports whether c is a known category.
func ValidSuggestionCategory(c SuggestionCategory) bool {
	switch c {
	case CategoryEfficiency, CategoryUIImprovement, CategoryPerformance, CategoryFeature:
		return true
	}
	return false
}

type SuggestionStatus string

const (
	SuggestionPending   SuggestionStatus = "pending"
	SuggestionAccepted  SuggestionStatus = "accepted"
	SuggestionDismissed SuggestionStatus = "dismissed"
)

func ValidSuggestionStatus(s SuggestionStatus) bool {
	switch s {
	case SuggestionPending, SuggestionAccepted, SuggestionDismissed:
		return true
	}
	return false
}

// Suggestion is an advisory record attached to a user. Priority runs
// 1..10 (10 highest).
type Suggestion struct {
	ID        uuid.UUID          `json:"id"`
	UserID    uuid.UUID          `json:"user_id"`
	Category  SuggestionCategory `json:"category"`
	Title     string             `json:"title"`
	Content   string             `json:"content"`
	Status    SuggestionStatus   `json:"status"`
	Priority  int                `json:"priority"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt *time.Time         `json:"updated_at,omitempty"`
}
