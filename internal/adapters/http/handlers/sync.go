package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quotesync/internal/adapters/http/dto"
	"github.com/jsamuelsen/quotesync/internal/app"
)

// SyncHandler exposes the synchronizer.
type SyncHandler struct {
	sync *app.Synchronizer
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(s *app.Synchronizer) *SyncHandler {
	return &SyncHandler{sync: s}
}

// RunSync handles POST /api/v1/sync. A failed fetch still answers 200 with
// the error in the report; an overlapping cycle answers 409.
func (h *SyncHandler) RunSync(c *gin.Context) {
	report, err := h.sync.Sync(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SyncResponse{
		State:      string(report.State),
		Fetched:    report.Fetched,
		Added:      report.Added,
		Conflicts:  dto.NewConflictResponses(report.Conflicts),
		Error:      report.Error,
		DurationMS: report.Duration.Milliseconds(),
	})
}

// Status handles GET /api/v1/sync/status.
func (h *SyncHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.sync.Status())
}

// ListConflicts handles GET /api/v1/sync/conflicts.
func (h *SyncHandler) ListConflicts(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewConflictResponses(h.sync.Conflicts()))
}

// ResolveConflict handles POST /api/v1/sync/conflicts/:id/resolve.
func (h *SyncHandler) ResolveConflict(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		dto.RespondWithCode(c, dto.ErrorCodeBadRequest, "conflict id must be an integer")
		return
	}

	var req dto.ResolveConflictRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleError(c, err)
		return
	}

	if err := h.sync.ResolveConflict(c.Request.Context(), id, req.Choice); err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.sync.Status())
}

// PushLocal handles POST /api/v1/sync/push.
func (h *SyncHandler) PushLocal(c *gin.Context) {
	c.JSON(http.StatusOK, h.sync.PushLocal(c.Request.Context()))
}

// RegisterSyncRoutes registers the sync routes. Mutating routes run behind
// guard.
func (h *SyncHandler) RegisterSyncRoutes(rg *gin.RouterGroup, guard gin.HandlerFunc) {
	sync := rg.Group("/sync")
	sync.GET("/status", h.Status)
	sync.GET("/conflicts", h.ListConflicts)
	sync.POST("", guard, h.RunSync)
	sync.POST("/push", guard, h.PushLocal)
	sync.POST("/conflicts/:id/resolve", guard, h.ResolveConflict)
}
