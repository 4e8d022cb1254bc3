package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// BookmarkNote is a saved URL owned by exactly one user.
//
// Category1..3 are three independent, optional facets. They are not ordered
// and the same value may appear in more than one slot.
//
// SOFT DELETE:
// Rows are never removed. Deleting sets IsDeleted and DeletedAt, and every
// read path filters them out, so a deleted bookmark behaves exactly like one
// that never existed.
type BookmarkNote struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Category1   *string    `json:"category1"`
	Category2   *string    `json:"category2"`
	Category3   *string    `json:"category3"`
	Description *string    `json:"description"`
	UserID      int64      `json:"user_id"`
	IsDeleted   bool       `json:"is_deleted"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at"`
}

// Categories returns the non-empty category slots in slot order.
func (b *BookmarkNote) Categories() []string {
	var out []string
	for _, c := range []*string{b.Category1, b.Category2, b.Category3} {
		if c != nil && *c != "" {
			out = append(out, *c)
		}
	}
	return out
}

// OptionalString distinguishes the three states a JSON field can be in:
// omitted (Set == false), explicit null (Set == true, Value == nil) and a
// string value. encoding/json only calls UnmarshalJSON for keys that are
// present, so an omitted key leaves the zero value.
type OptionalString struct {
	Set   bool
	Value *string
}

// Some returns an OptionalString holding s.
func Some(s string) OptionalString {
	return OptionalString{Set: true, Value: &s}
}

// Null returns an OptionalString that explicitly clears the field.
func Null() OptionalString {
	return OptionalString{Set: true}
}

func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
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

// CategoryPatch is a partial update of the three category slots.
type CategoryPatch struct {
	Category1 OptionalString `json:"category1"`
	Category2 OptionalString `json:"category2"`
	Category3 OptionalString `json:"category3"`
}

// BookmarkPage is one page of a filtered bookmark listing.
type BookmarkPage struct {
	Items []BookmarkNote `json:"items"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
	Pages int            `json:"pages"`
}
