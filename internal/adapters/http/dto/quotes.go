package dto

import (
	"time"

	"github.com/jsamuelsen/quotesync/internal/domain"
)

// AddQuoteRequest is the body of POST /quotes.
type AddQuoteRequest struct {
	Text     string `json:"text"     validate:"notempty,max=1000"`
	Category string `json:"category" validate:"notempty,max=100"`
}

// SelectCategoryRequest is the body of PUT /categories/selected.
type SelectCategoryRequest struct {
	Category string `json:"category" validate:"notempty"`
}

// ResolveConflictRequest is the body of POST /sync/conflicts/:id/resolve.
type ResolveConflictRequest struct {
	Choice string `json:"choice" validate:"required,oneof=server local"`
}

// RandomQuoteQuery holds the query of GET /quotes/random.
type RandomQuoteQuery struct {
	Category string `form:"category" json:"category"`
}

// QuoteResponse is a quote on the wire.
type QuoteResponse struct {
	ID       *int64 `json:"id,omitempty"`
	Text     string `json:"text"`
	Category string `json:"category"`
}

// NewQuoteResponse converts a domain quote.
func NewQuoteResponse(q domain.Quote) QuoteResponse {
	return QuoteResponse{ID: q.ID, Text: q.Text, Category: q.Category}
}

// NewQuoteResponses converts a list, never returning nil.
func NewQuoteResponses(quotes []domain.Quote) []QuoteResponse {
	out := make([]QuoteResponse, len(quotes))
	for i, q := range quotes {
		out[i] = NewQuoteResponse(q)
	}

	return out
}

// CategoriesResponse lists categories and the persisted selection.
type CategoriesResponse struct {
	Categories []string `json:"categories"`
	Selected   string   `json:"selected"`
}

// ImportResponse reports an import.
type ImportResponse struct {
	Imported int `json:"imported"`
	Total    int `json:"total"`
}

// ConflictResponse shows both versions of a conflicting quote.
type ConflictResponse struct {
	ID     int64         `json:"id"`
	Server QuoteResponse `json:"server"`
	Local  QuoteResponse `json:"local"`
}

// NewConflictResponses converts pending conflicts, never returning nil.
func NewConflictResponses(conflicts []domain.Conflict) []ConflictResponse {
	out := make([]ConflictResponse, len(conflicts))
	for i, c := range conflicts {
		out[i] = ConflictResponse{
			ID:     c.ID,
			Server: NewQuoteResponse(c.Server),
			Local:  NewQuoteResponse(c.Local),
		}
	}

	return out
}

// SyncResponse reports one sync cycle.
type SyncResponse struct {
	State      string             `json:"state"`
	Fetched    int                `json:"fetched"`
	Added      int                `json:"added"`
	Conflicts  []ConflictResponse `json:"conflicts"`
	Error      string             `json:"error,omitempty"`
	DurationMS int64              `json:"durationMs"`
}

// NotificationResponse is an active notification.
type NotificationResponse struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewNotificationResponses converts notifications, never returning nil.
func NewNotificationResponses(ns []domain.Notification) []NotificationResponse {
	out := make([]NotificationResponse, len(ns))
	for i, n := range ns {
		out[i] = NotificationResponse{Level: string(n.Level), Message: n.Message, CreatedAt: n.CreatedAt}
	}

	return out
}
