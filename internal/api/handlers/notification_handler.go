package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"silent-auction/internal/domain"
	"silent-auction/pkg/logger"
)

type NotificationReader interface {
	ListForUser(ctx context.Context, userID string) ([]*domain.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, notificationID, userID string) error
}

type NotificationHandler struct {
	notifications NotificationReader
	log           logger.Logger
}

func NewNotificationHandler(notifications NotificationReader, log logger.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, log: log}
}

func (h *NotificationHandler) Register(g *echo.Group) {
	g.GET("/users/:id/notifications", h.List)
	g.GET("/users/:id/notifications/unread-count", h.UnreadCount)
	g.PATCH("/notifications/:id/read", h.MarkRead)
}

func (h *NotificationHandler) fail(c echo.Context, handler string, err error) error {
	status := StatusForError(err)
	logError(h.log, handler, status, err)
	return c.JSON(status, errorResponse{Error: publicMessage(status, err)})
}

func (h *NotificationHandler) List(c echo.Context) error {
	notifications, err := h.notifications.ListForUser(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "ListNotifications", err)
	}
	return c.JSON(http.StatusOK, notifications)
}

func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	count, err := h.notifications.UnreadCount(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "UnreadCount", err)
	}
	return c.JSON(http.StatusOK, map[string]int{"count": count})
}

func (h *NotificationHandler) MarkRead(c echo.Context) error {
	userID := userFromHeader(c.Request())
	if userID == "" {
		return unauthorized(c)
	}

	if err := h.notifications.MarkRead(c.Request().Context(), c.Param("id"), userID); err != nil {
		return h.fail(c, "MarkRead", err)
	}
	return c.NoContent(http.StatusNoContent)
}
