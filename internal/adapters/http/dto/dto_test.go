package dto

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quotesync/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHTTPStatusFromCode(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{ErrorCodeNotFound, http.StatusNotFound},
		{ErrorCodeConflict, http.StatusConflict},
		{ErrorCodeValidation, http.StatusBadRequest},
		{ErrorCodeBadRequest, http.StatusBadRequest},
		{ErrorCodeForbidden, http.StatusForbidden},
		{ErrorCodeUnauthorized, http.StatusUnauthorized},
		{ErrorCodeUnavailable, http.StatusServiceUnavailable},
		{ErrorCodeTimeout, http.StatusGatewayTimeout},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusFromCode(tt.code))
		})
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantDetail map[string]string
	}{
		{
			name:       "domain validation carries field",
			err:        domain.NewValidationError("quotes[2].text", "must be a non-empty string"),
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrorCodeValidation,
			wantDetail: map[string]string{"quotes[2].text": "must be a non-empty string"},
		},
		{
			name:       "not found",
			err:        fmt.Errorf("lookup: %w", domain.NewNotFoundError("conflict", "7")),
			wantStatus: http.StatusNotFound,
			wantCode:   ErrorCodeNotFound,
		},
		{
			name:       "conflict",
			err:        domain.NewConflictError("sync", "a synchronization cycle is already running"),
			wantStatus: http.StatusConflict,
			wantCode:   ErrorCodeConflict,
		},
		{
			name:       "forbidden",
			err:        domain.NewForbiddenError("import", "read only"),
			wantStatus: http.StatusForbidden,
			wantCode:   ErrorCodeForbidden,
		},
		{
			name:       "unavailable",
			err:        domain.NewUnavailableError("remote-quotes", "down"),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   ErrorCodeUnavailable,
		},
		{
			name:       "binding",
			err:        fmt.Errorf("%w: unexpected EOF", ErrBinding),
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrorCodeBadRequest,
		},
		{
			name:       "unknown",
			err:        errors.New("disk on fire"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   ErrorCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := MapError(tt.err)

			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, tt.wantDetail, resp.Error.Details)
		})
	}
}

func TestMapError_HidesInternalText(t *testing.T) {
	_, resp := MapError(errors.New("connection string secret=abc"))
	assert.Equal(t, "an internal error occurred", resp.Error.Message)
}

func TestMapError_StructValidation(t *testing.T) {
	err := Validate(&AddQuoteRequest{Text: "   ", Category: ""})
	require.Error(t, err)

	status, resp := MapError(err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, ErrorCodeValidation, resp.Error.Code)
	assert.Equal(t, map[string]string{
		"text":     "must not be empty",
		"category": "must not be empty",
	}, resp.Error.Details)
}

func TestHandleError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	HandleError(c, domain.NewNotFoundError("category", "fiction"))

	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ErrorCodeNotFound, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "fiction")
	assert.Empty(t, resp.TraceID)
}

func TestRespondWithCode(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	RespondWithCode(c, ErrorCodeBadRequest, "quote ID must be an integer")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":{"code":"BAD_REQUEST","message":"quote ID must be an integer"}}`, w.Body.String())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		wantErr map[string]string
	}{
		{
			name:  "valid add",
			input: &AddQuoteRequest{Text: "Stay hungry.", Category: "motivation"},
		},
		{
			name:    "text too long",
			input:   &AddQuoteRequest{Text: strings.Repeat("x", 1001), Category: "c"},
			wantErr: map[string]string{"text": "must be at most 1000 characters"},
		},
		{
			name:    "unknown choice",
			input:   &ResolveConflictRequest{Choice: "both"},
			wantErr: map[string]string{"choice": "must be one of: server local"},
		},
		{
			name:    "missing choice",
			input:   &ResolveConflictRequest{},
			wantErr: map[string]string{"choice": "this field is required"},
		},
		{
			name:    "blank category",
			input:   &SelectCategoryRequest{Category: "\t"},
			wantErr: map[string]string{"category": "must not be empty"},
		},
		{
			name:    "limit out of range",
			input:   &PaginationRequest{Limit: 500},
			wantErr: map[string]string{"limit": "must be less than or equal to 100"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.input)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, ErrValidation)
			assert.True(t, IsValidationError(err))
			assert.Equal(t, tt.wantErr, ValidationErrors(err))
		})
	}
}

func TestBindAndValidate(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantErr  error
		wantText string
	}{
		{"valid", `{"text":"hi","category":"c"}`, nil, "hi"},
		{"malformed", `{"text":`, ErrBinding, ""},
		{"wrong type", `{"text":1,"category":"c"}`, ErrBinding, ""},
		{"empty", `{"text":"","category":"c"}`, ErrValidation, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			var req AddQuoteRequest
			err := BindAndValidate(c, &req)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantText, req.Text)
		})
	}
}

func TestBindQueryAndValidate(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?limit=abc", nil)

	var req PaginationRequest
	assert.ErrorIs(t, BindQueryAndValidate(c, &req), ErrBinding)
}

func TestPaginationRequest_GetLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, (&PaginationRequest{}).GetLimit())
	assert.Equal(t, 5, (&PaginationRequest{Limit: 5}).GetLimit())
	assert.Equal(t, MaxLimit, (&PaginationRequest{Limit: 1000}).GetLimit())
}

func TestPaginate(t *testing.T) {
	items := []int{0, 1, 2, 3, 4, 5, 6}

	first, err := Paginate(items, &PaginationRequest{Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, first.Items)
	assert.True(t, first.HasMore)
	assert.Equal(t, 7, first.Total)
	require.NotEmpty(t, first.NextCursor)

	second, err := Paginate(items, &PaginationRequest{Cursor: first.NextCursor, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4, 5}, second.Items)

	last, err := Paginate(items, &PaginationRequest{Cursor: second.NextCursor, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, []int{6}, last.Items)
	assert.False(t, last.HasMore)
	assert.Empty(t, last.NextCursor)
}

func TestPaginate_PastTheEnd(t *testing.T) {
	cursor := EncodeCursor(&CursorData{Field: "offset", Value: "50"})

	page, err := Paginate([]string{"a"}, &PaginationRequest{Cursor: cursor})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)
	assert.False(t, page.HasMore)
}

func TestPaginate_InvalidCursor(t *testing.T) {
	tests := map[string]string{
		"not base64":  "%%%",
		"not json":    "bm90IGpzb24=",
		"wrong field": EncodeCursor(&CursorData{Field: "created_at", Value: "1"}),
		"negative":    EncodeCursor(&CursorData{Field: "offset", Value: "-1"}),
		"non-numeric": EncodeCursor(&CursorData{Field: "offset", Value: "ten"}),
	}

	for name, cursor := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Paginate([]int{1}, &PaginationRequest{Cursor: cursor})
			assert.ErrorIs(t, err, ErrInvalidCursor)
		})
	}
}

func TestNewQuoteResponses(t *testing.T) {
	got := NewQuoteResponses([]domain.Quote{
		{Text: "a", Category: "x"},
		{ID: domain.Int64(4), Text: "b", Category: "Server"},
	})

	raw, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"text":"a","category":"x"},{"id":4,"text":"b","category":"Server"}]`, string(raw))

	assert.NotNil(t, NewQuoteResponses(nil))
}

func TestNewConflictResponses(t *testing.T) {
	got := NewConflictResponses([]domain.Conflict{{
		ID:     1,
		Server: domain.Quote{ID: domain.Int64(1), Text: "server", Category: "Server"},
		Local:  domain.Quote{ID: domain.Int64(1), Text: "local", Category: "life"},
	}})

	require.Len(t, got, 1)
	assert.Equal(t, "server", got[0].Server.Text)
	assert.Equal(t, "local", got[0].Local.Text)
	assert.NotNil(t, NewConflictResponses(nil))
}
