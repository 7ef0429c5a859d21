package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quotesync/internal/adapters/http/dto"
	"github.com/jsamuelsen/quotesync/internal/domain"
)

// NotificationSource lists the notifications still on display.
type NotificationSource interface {
	Active() []domain.Notification
}

// NotificationHandler serves transient notifications.
type NotificationHandler struct {
	source NotificationSource
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(source NotificationSource) *NotificationHandler {
	return &NotificationHandler{source: source}
}

// ListActive handles GET /api/v1/notifications.
func (h *NotificationHandler) ListActive(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewNotificationResponses(h.source.Active()))
}

// RegisterNotificationRoutes registers the notification route.
func (h *NotificationHandler) RegisterNotificationRoutes(rg *gin.RouterGroup) {
	rg.GET("/notifications", h.ListActive)
}
