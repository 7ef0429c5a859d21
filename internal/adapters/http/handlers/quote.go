package handlers

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quotesync/internal/adapters/http/dto"
	"github.com/jsamuelsen/quotesync/internal/app"
	"github.com/jsamuelsen/quotesync/internal/domain"
	"github.com/jsamuelsen/quotesync/internal/platform/logging"
)

const (
	importFormField     = "file"
	exportFileName      = "quotes.json"
	headerQuotesVersion = "X-Quotes-Version"
)

// QuoteHandler serves the local quote list and categories.
type QuoteHandler struct {
	store *app.QuoteStore
}

// NewQuoteHandler creates a new quote handler.
func NewQuoteHandler(store *app.QuoteStore) *QuoteHandler {
	return &QuoteHandler{store: store}
}

// ListQuotes handles GET /api/v1/quotes with cursor pagination.
func (h *QuoteHandler) ListQuotes(c *gin.Context) {
	var req dto.PaginationRequest
	if err := dto.BindQueryAndValidate(c, &req); err != nil {
		dto.HandleError(c, err)
		return
	}

	page, err := dto.Paginate(dto.NewQuoteResponses(h.store.Quotes()), &req)
	if err != nil {
		dto.HandleError(c, domain.NewValidationError("cursor", err.Error()))
		return
	}

	c.JSON(http.StatusOK, page)
}

// GetRandomQuote handles GET /api/v1/quotes/random. Without a category
// query it uses the persisted selection.
func (h *QuoteHandler) GetRandomQuote(c *gin.Context) {
	ctx := c.Request.Context()

	var query dto.RandomQuoteQuery
	if err := dto.BindQueryAndValidate(c, &query); err != nil {
		dto.HandleError(c, err)
		return
	}

	category := query.Category
	if category == "" {
		selected, err := h.store.SelectedCategory(ctx)
		if err != nil {
			dto.HandleError(c, err)
			return
		}

		category = selected
	}

	q, err := h.store.Random(category)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteResponse(q))
}

// AddQuote handles POST /api/v1/quotes.
func (h *QuoteHandler) AddQuote(c *gin.Context) {
	var req dto.AddQuoteRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleError(c, err)
		return
	}

	q, err := h.store.Add(c.Request.Context(), req.Text, req.Category)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewQuoteResponse(q))
}

// ExportQuotes handles GET /api/v1/quotes/export.
func (h *QuoteHandler) ExportQuotes(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.store.ExportSnapshot(&buf); err != nil {
		dto.HandleError(c, err)
		return
	}

	// Clients compare the version across exports to tell whether anything changed.
	if v, err := h.store.Version(c.Request.Context()); err == nil && v > 0 {
		c.Header(headerQuotesVersion, strconv.FormatInt(v, 10))
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFileName))
	c.Data(http.StatusOK, "application/json", buf.Bytes())
}

// ImportQuotes handles POST /api/v1/quotes/import. The payload is either
// the raw JSON body or the multipart form field "file".
func (h *QuoteHandler) ImportQuotes(c *gin.Context) {
	ctx := c.Request.Context()

	data, err := readImportPayload(c)
	if err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "reading import payload failed", slog.Any("error", err))
		dto.RespondWithCode(c, dto.ErrorCodeBadRequest, "could not read import payload")

		return
	}

	imported, err := h.store.ImportJSON(ctx, data)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ImportResponse{Imported: imported, Total: h.store.Len()})
}

func readImportPayload(c *gin.Context) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))
	if mediaType != "multipart/form-data" {
		return io.ReadAll(c.Request.Body)
	}

	header, err := c.FormFile(importFormField)
	if err != nil {
		return nil, err
	}

	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

// ListCategories handles GET /api/v1/categories.
func (h *QuoteHandler) ListCategories(c *gin.Context) {
	selected, err := h.store.SelectedCategory(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.CategoriesResponse{
		Categories: h.store.Categories(),
		Selected:   selected,
	})
}

// SelectCategory handles PUT /api/v1/categories/selected.
func (h *QuoteHandler) SelectCategory(c *gin.Context) {
	var req dto.SelectCategoryRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleError(c, err)
		return
	}

	ctx := c.Request.Context()

	if err := h.store.SelectCategory(ctx, req.Category); err != nil {
		dto.HandleError(c, err)
		return
	}

	h.ListCategories(c)
}

// RegisterQuoteRoutes registers quote and category routes. Mutating routes
// run behind guard.
func (h *QuoteHandler) RegisterQuoteRoutes(rg *gin.RouterGroup, guard gin.HandlerFunc) {
	quotes := rg.Group("/quotes")
	quotes.GET("", h.ListQuotes)
	quotes.GET("/random", h.GetRandomQuote)
	quotes.GET("/export", h.ExportQuotes)
	quotes.POST("", guard, h.AddQuote)
	quotes.POST("/import", guard, h.ImportQuotes)

	categories := rg.Group("/categories")
	categories.GET("", h.ListCategories)
	categories.PUT("/selected", guard, h.SelectCategory)
}
