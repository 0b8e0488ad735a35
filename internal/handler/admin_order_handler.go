package handler

import (
	"net/http"

	"marketplace/internal/config"
	"marketplace/internal/domain/model"
	"marketplace/internal/repository"
	"marketplace/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminOrderHandler struct {
	uc *usecase.AdminOrderUsecase
}

func NewAdminOrderHandler(uc *usecase.AdminOrderUsecase) *AdminOrderHandler {
	return &AdminOrderHandler{uc: uc}
}

type OrderStatusUpdateRequest struct {
	Status string `json:"status"`
}

type DeliveryStatusUpdateRequest struct {
	DeliveryStatus string `json:"delivery_status"`
}

func (h *AdminOrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	admin := e.Group("/admin", authed(cfg, userRepo, model.RoleAdmin)...)

	admin.GET("/orders", h.list)
	admin.PUT("/orders/:id/status", h.updateStatus)
	admin.PUT("/orders/:id/delivery-status", h.updateDeliveryStatus)
}

func (h *AdminOrderHandler) list(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}

	page, ok := queryInt(c, "page", 1)
	if !ok {
		return badRequest(c, "invalid page")
	}
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		return badRequest(c, "invalid limit")
	}
	userID, ok := queryInt64Ptr(c, "user_id")
	if !ok {
		return badRequest(c, "invalid user_id")
	}
	courierID, ok := queryInt64Ptr(c, "courier_id")
	if !ok {
		return badRequest(c, "invalid courier_id")
	}

	// 値の検証はusecase側
	out, err := h.uc.List(c.Request().Context(), actor, usecase.AdminOrderListInput{
		Page:           page,
		Limit:          limit,
		Status:         c.QueryParam("status"),
		DeliveryStatus: c.QueryParam("delivery_status"),
		RefundStatus:   c.QueryParam("refund_status"),
		UserID:         userID,
		CourierID:      courierID,
		From:           c.QueryParam("from"),
		To:             c.QueryParam("to"),
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) updateStatus(c echo.Context) error {
	orderID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req OrderStatusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	// 操作した管理者（監査ログ用）
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.uc.ForceSetStatus(c.Request().Context(), actor, orderID, req.Status)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) updateDeliveryStatus(c echo.Context) error {
	orderID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req DeliveryStatusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.uc.ForceSetDeliveryStatus(c.Request().Context(), actor, orderID, req.DeliveryStatus)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}
