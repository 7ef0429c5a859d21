package domain

import (
	"encoding/json"
	"strings"
)

// Quote is a single quotation with the category it is filed under.
// ID is only set for records that originated on the remote source.
type Quote struct {
	// ID identifies remote-originated quotes. Nil for locally created ones.
	ID *int64 `json:"id,omitempty"`

	// Text is the quotation itself.
	Text string `json:"text"`

	// Category groups quotes for filtering.
	Category string `json:"category"`
}

// NewQuote builds a local quote (no ID) from trimmed input.
// Returns a ValidationError if either field is blank.
func NewQuote(text, category string) (Quote, error) {
	q := Quote{
		Text:     strings.TrimSpace(text),
		Category: strings.TrimSpace(category),
	}

	if err := q.Validate(); err != nil {
		return Quote{}, err
	}

	return q, nil
}

// Int64 returns a pointer to v. Handy for building remote quotes.
func Int64(v int64) *int64 {
	return &v
}

// HasID reports whether the quote carries a remote identifier.
func (q Quote) HasID() bool {
	return q.ID != nil
}

// SameID reports whether both quotes carry the same remote identifier.
func (q Quote) SameID(other Quote) bool {
	return q.ID != nil && other.ID != nil && *q.ID == *other.ID
}

// Equal reports structural equality: same ID (or both absent), text and category.
func (q Quote) Equal(other Quote) bool {
	if (q.ID == nil) != (other.ID == nil) {
		return false
	}

	if q.ID != nil && *q.ID != *other.ID {
		return false
	}

	return q.Text == other.Text && q.Category == other.Category
}

// Key returns the canonical serialized form used for structural dedup.
func (q Quote) Key() string {
	b, err := json.Marshal(q)
	if err != nil {
		// Marshalling a struct of strings and an int pointer cannot fail.
		return q.Category + "\x00" + q.Text
	}

	return string(b)
}

// Clone returns a deep copy so callers can't mutate shared ID pointers.
func (q Quote) Clone() Quote {
	if q.ID != nil {
		q.ID = Int64(*q.ID)
	}

	return q
}

// Validate checks that text and category are present.
func (q Quote) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return NewValidationError("text", "is required")
	}

	if strings.TrimSpace(q.Category) == "" {
		return NewValidationError("category", "is required")
	}

	return nil
}

// CloneQuotes deep-copies a slice of quotes.
func CloneQuotes(quotes []Quote) []Quote {
	out := make([]Quote, len(quotes))
	for i, q := range quotes {
		out[i] = q.Clone()
	}

	return out
}

// Categories returns the distinct categories in first-seen order.
func Categories(quotes []Quote) []string {
	seen := make(map[string]struct{}, len(quotes))
	out := make([]string, 0)

	for _, q := range quotes {
		if _, ok := seen[q.Category]; ok {
			continue
		}

		seen[q.Category] = struct{}{}
		out = append(out, q.Category)
	}

	return out
}

// FilterByCategory returns the quotes filed under category.
// An empty category or "all" matches everything.
func FilterByCategory(quotes []Quote, category string) []Quote {
	if category == "" || category == AllCategories {
		return quotes
	}

	out := make([]Quote, 0, len(quotes))
	for _, q := range quotes {
		if q.Category == category {
			out = append(out, q)
		}
	}

	return out
}

// AllCategories is the selector value meaning "no category filter".
const AllCategories = "all"
