package handler

import (
	"net/http"

	"marketplace/internal/config"
	"marketplace/internal/domain/model"
	"marketplace/internal/repository"
	"marketplace/internal/usecase"

	"github.com/labstack/echo/v4"
)

// InventoryUpdateRequest は在庫更新の入力です。
type InventoryUpdateRequest struct {
	Stock  *int64 `json:"stock"`
	Reason string `json:"reason"`
}

// /admin/inventory
type AdminProductHandler struct {
	uc *usecase.ProductUsecase
}

// DI
func NewAdminProductHandler(uc *usecase.ProductUsecase) *AdminProductHandler {
	return &AdminProductHandler{uc: uc}
}

// adminを登録
func (h *AdminProductHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	admin := e.Group("/admin", authed(cfg, userRepo, model.RoleAdmin)...)

	admin.PUT("/inventory/:product_id", h.updateInventory)
}

func (h *AdminProductHandler) updateInventory(c echo.Context) error {
	productID, ok := pathID(c, "product_id")
	if !ok {
		return badRequest(c, "invalid product_id")
	}

	var req InventoryUpdateRequest
	if err := c.Bind(&req); err != nil || req.Stock == nil {
		return badRequest(c, "invalid body")
	}

	// 操作した管理者（監査ログ用）
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}

	if err := h.uc.AdminUpdateInventory(
		c.Request().Context(),
		actor,
		productID,
		*req.Stock,
		req.Reason,
	); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{Message: "stock updated"})
}
