package handler

import (
	"net/http"

	"marketplace/internal/config"
	"marketplace/internal/repository"
	"marketplace/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /products の公開APIと出品者の操作
type ProductHandler struct {
	uc *usecase.ProductUsecase
}

// DI
func NewProductHandler(uc *usecase.ProductUsecase) *ProductHandler {
	return &ProductHandler{uc: uc}
}

type ProductCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Stock       int64  `json:"stock"`
	IsActive    bool   `json:"is_active"`
}

type ProductActiveRequest struct {
	IsActive *bool `json:"is_active"`
}

// 商品のルートを登録
func (h *ProductHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	e.GET("/products", h.list)
	e.GET("/products/:id", h.detail)

	g := e.Group("/products", authed(cfg, userRepo)...)
	g.POST("", h.create)
	g.PUT("/:id/active", h.setActive)
	g.DELETE("/:id", h.delete)
}

func (h *ProductHandler) list(c echo.Context) error {
	// page（default 1）
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return badRequest(c, "invalid page")
	}

	// limit（default 20）
	limit, ok := queryInt(c, "limit", 20)
	if !ok {
		return badRequest(c, "invalid limit")
	}

	out, err := h.uc.ListPublicProducts(c.Request().Context(), page, limit)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *ProductHandler) detail(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	p, err := h.uc.GetProductDetail(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, p)
}

func (h *ProductHandler) create(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}

	var req ProductCreateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	p, err := h.uc.CreateProduct(c.Request().Context(), actor, usecase.CreateProductInput{
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Stock:       req.Stock,
		IsActive:    req.IsActive,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, p)
}

// 一時停止 / 再開
func (h *ProductHandler) setActive(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req ProductActiveRequest
	if err := c.Bind(&req); err != nil || req.IsActive == nil {
		return badRequest(c, "invalid body")
	}

	if err := h.uc.SetProductActive(c.Request().Context(), actor, id, *req.IsActive); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "updated"})
}

func (h *ProductHandler) delete(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	if err := h.uc.DeleteProduct(c.Request().Context(), actor, id); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "deleted"})
}
