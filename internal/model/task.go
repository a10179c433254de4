package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxTitleLength is the longest task title accepted, counted in characters.
const MaxTitleLength = 100

var (
	// ErrInvalidTitle indicates an empty, blank or over-long task title.
	ErrInvalidTitle = errors.New("title must be 1-100 characters and not blank")
	// ErrInvalidPriority indicates a priority outside low|medium|high.
	ErrInvalidPriority = errors.New("priority must be one of low, medium, high")
	// ErrInvalidStatus indicates a status filter outside completed|pending.
	ErrInvalidStatus = errors.New("status must be one of completed, pending")
	// ErrInvalidSortBy indicates an unknown sort key.
	ErrInvalidSortBy = errors.New("sort_by must be one of created_at, priority, title")
)

// Priority is the closed set of task priorities.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority converts a raw value into a Priority.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(s); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPriority, s)
}

// IsValid checks if the priority is one of the known values.
func (p Priority) IsValid() bool {
	_, err := ParsePriority(string(p))
	return err == nil
}

// StatusFilter selects tasks by completion.
type StatusFilter string

const (
	StatusAny       StatusFilter = ""
	StatusCompleted StatusFilter = "completed"
	StatusPending   StatusFilter = "pending"
)

// ParseStatus converts a query value into a StatusFilter. Empty means any.
func ParseStatus(s string) (StatusFilter, error) {
	switch f := StatusFilter(s); f {
	case StatusAny, StatusCompleted, StatusPending:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// SortBy is the closed set of list orderings.
type SortBy string

const (
	SortCreatedAt SortBy = "created_at"
	SortPriority  SortBy = "priority"
	SortTitle     SortBy = "title"
)

// ParseSortBy converts a query value into a SortBy. Empty means created_at.
func ParseSortBy(s string) (SortBy, error) {
	if s == "" {
		return SortCreatedAt, nil
	}
	switch b := SortBy(s); b {
	case SortCreatedAt, SortPriority, SortTitle:
		return b, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSortBy, s)
}

// Task is a single to-do item owned by an account.
type Task struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	UserID      string    `json:"user_id" gorm:"index;type:varchar(36);not null"`
	Title       string    `json:"title" gorm:"index;size:100;not null"`
	Description *string   `json:"description"`
	IsCompleted bool      `json:"is_completed" gorm:"not null;default:false"`
	Priority    Priority  `json:"priority" gorm:"type:varchar(10);not null;default:medium;check:priority IN ('low','medium','high')"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime:false"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime:false"`
}

// TableName pins the table name used by gorm.
func (Task) TableName() string { return "tasks" }

// TaskFilter narrows and orders a task listing.
type TaskFilter struct {
	Status   StatusFilter
	Priority *Priority
	Search   string
	SortBy   SortBy
}

// OptionalString is a nullable patch field that tells an omitted JSON key
// (Set false) apart from an explicit null (Set true, Value nil).
type OptionalString struct {
	Set   bool
	Value *string
}

// SetString returns an OptionalString holding s.
func SetString(s string) OptionalString {
	return OptionalString{Set: true, Value: &s}
}

// UnmarshalJSON runs only when the key is present, null included.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// MarshalJSON writes the value, or null when unset or cleared.
func (o OptionalString) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

// TaskPatch lists the fields a client may change. Nil, or an unset
// Description, means unchanged; a set Description with a nil Value clears it.
type TaskPatch struct {
	Title       *string
	Description OptionalString
	IsCompleted *bool
	Priority    *Priority
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && !p.Description.Set && p.IsCompleted == nil && p.Priority == nil
}

// Apply copies the set fields onto t.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description.Set {
		if p.Description.Value == nil {
			t.Description = nil
		} else {
			d := *p.Description.Value
			t.Description = &d
		}
	}
	if p.IsCompleted != nil {
		t.IsCompleted = *p.IsCompleted
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
}

// Validate checks every set field.
func (p TaskPatch) Validate() error {
	if p.Title != nil {
		if err := ValidateTitle(*p.Title); err != nil {
			return err
		}
	}
	if p.Priority != nil && !p.Priority.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, *p.Priority)
	}
	return nil
}

// ValidateTitle checks the 1-100 character rule and rejects blank titles.
func ValidateTitle(title string) error {
	n := utf8.RuneCountInString(title)
	if n == 0 || n > MaxTitleLength || strings.TrimSpace(title) == "" {
		return ErrInvalidTitle
	}
	return nil
}

// NextUpdatedAt returns the timestamp a mutation must record so that
// updated_at never moves backwards.
func NextUpdatedAt(now, prev time.Time) time.Time {
	if now.Before(prev) {
		return prev
	}
	return now
}
