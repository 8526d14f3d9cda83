package handler

import (
	"github.com/labstack/echo/v4"

	"agrolink/internal/usecase"
	"agrolink/pkg/errors"
	"agrolink/pkg/response"
	"agrolink/pkg/utils"
)

type NotificationHandler struct {
	notificationUseCase *usecase.NotificationUseCase
}

var notificationHandler *NotificationHandler

func NewNotificationHandler(notificationUseCase *usecase.NotificationUseCase) *NotificationHandler {
	return &NotificationHandler{
		notificationUseCase: notificationUseCase,
	}
}

func SetupNotificationHandler(notificationUseCase *usecase.NotificationUseCase) {
	notificationHandler = NewNotificationHandler(notificationUseCase)
}

func GetNotificationHandler() *NotificationHandler {
	return notificationHandler
}

func (h *NotificationHandler) ListNotifications(c echo.Context) error {
	uid := c.Get("uid").(string)
	pagination := utils.GetPaginationParams(c)

	notifications, total, err := h.notificationUseCase.ListNotifications(c.Request().Context(), uid, pagination.PageSize, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, notifications, total, pagination.Page, pagination.PageSize)
}

func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	uid := c.Get("uid").(string)

	count, err := h.notificationUseCase.GetUnreadNotificationCount(c.Request().Context(), uid)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]int64{"count": count})
}

type markReadRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=500,dive,required"`
}

// MarkAsRead only ever touches the caller's own notifications.
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	uid := c.Get("uid").(string)

	var req markReadRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	updated, err := h.notificationUseCase.MarkNotificationsAsRead(c.Request().Context(), uid, req.IDs)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]int64{"updated": updated})
}
