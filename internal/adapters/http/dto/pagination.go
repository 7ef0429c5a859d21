package dto

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

const offsetField = "offset"

// ErrInvalidCursor is returned when a cursor cannot be decoded.
var ErrInvalidCursor = errors.New("invalid cursor")

// PaginationRequest holds the paging query parameters.
type PaginationRequest struct {
	// Cursor is an opaque string from a previous response's NextCursor.
	Cursor string `form:"cursor"`

	Limit int `form:"limit" json:"limit" validate:"omitempty,gte=1,lte=100"`
}

// GetLimit returns the limit with defaults applied.
func (p *PaginationRequest) GetLimit() int {
	if p.Limit <= 0 {
		return DefaultLimit
	}

	return min(p.Limit, MaxLimit)
}

// Offset returns the position the cursor points at, 0 without a cursor.
func (p *PaginationRequest) Offset() (int, error) {
	if p.Cursor == "" {
		return 0, nil
	}

	data, err := DecodeCursor(p.Cursor)
	if err != nil {
		return 0, err
	}

	if data.Field != offsetField {
		return 0, ErrInvalidCursor
	}

	offset, err := strconv.Atoi(data.Value)
	if err != nil || offset < 0 {
		return 0, ErrInvalidCursor
	}

	return offset, nil
}

// PaginatedResponse is one page of items.
type PaginatedResponse[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
	HasMore    bool   `json:"hasMore"`
	Total      int    `json:"total"`
}

// Paginate slices all by the request's cursor and limit. The quote list is
// ordered by insertion, so an offset is a stable position.
func Paginate[T any](all []T, req *PaginationRequest) (*PaginatedResponse[T], error) {
	offset, err := req.Offset()
	if err != nil {
		return nil, err
	}

	limit := req.GetLimit()
	start := min(offset, len(all))
	end := min(start+limit, len(all))

	page := &PaginatedResponse[T]{
		Items:   append([]T{}, all[start:end]...),
		HasMore: end < len(all),
		Total:   len(all),
	}

	if page.HasMore {
		page.NextCursor = EncodeCursor(&CursorData{Field: offsetField, Value: strconv.Itoa(end)})
	}

	return page, nil
}

// CursorData is the content of a cursor.
type CursorData struct {
	Field string `json:"f"`
	Value string `json:"v"`
}

// EncodeCursor encodes cursor data as URL-safe base64 JSON.
func EncodeCursor(data *CursorData) string {
	if data == nil {
		return ""
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return ""
	}

	return base64.URLEncoding.EncodeToString(raw)
}

// DecodeCursor reverses EncodeCursor.
func DecodeCursor(encoded string) (*CursorData, error) {
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	var data CursorData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, ErrInvalidCursor
	}

	return &data, nil
}
