package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// RecommendationType identifies which rule category produced a recommendation.
type RecommendationType string

const (
	TypeAlert    RecommendationType = "alerta"
	TypeWeather  RecommendationType = "clima"
	TypeCrop     RecommendationType = "cultivo"
	TypeSeasonal RecommendationType = "general"
)

// Priority is the urgency assigned at generation time.
type Priority string

const (
	PriorityHigh   Priority = "alto"
	PriorityMedium Priority = "medio"
	PriorityLow    Priority = "bajo"
)

// Rank orders priorities for sorting (higher is more urgent).
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Actions is the ordered list of suggested next steps. It implements
// sql.Scanner and driver.Valuer so it can live in a JSON text column.
type Actions []string

// Scan implements the sql.Scanner interface.
func (a *Actions) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("actions: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, a)
}

// Value implements the driver.Valuer interface.
func (a Actions) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Recommendation is a piece of advice surfaced to the farmer.
//
// Only IsRead and the presence of the entry in the store change after
// creation; every other field is fixed when the rule fires.
type Recommendation struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	Type         RecommendationType `json:"type"`
	Priority     Priority           `json:"priority"`
	Actions      Actions            `json:"actions"`
	RelatedCrop  string             `json:"relatedCrop,omitempty"`
	RelatedAlert string             `json:"relatedAlert,omitempty"`
	IsRead       bool               `json:"isRead"`
	CreatedAt    time.Time          `json:"createdAt"`
	ValidUntil   *time.Time         `json:"validUntil,omitempty"`
}

// Expired reports whether the entry's validity window has closed at now.
// Entries without ValidUntil never expire on their own.
func (r Recommendation) Expired(now time.Time) bool {
	return r.ValidUntil != nil && !r.ValidUntil.After(now)
}

// Equivalent reports whether two entries carry the same advice for the
// same crop. This is the duplicate predicate used by reconciliation.
func (r Recommendation) Equivalent(other Recommendation) bool {
	return r.Title == other.Title && r.RelatedCrop == other.RelatedCrop
}
