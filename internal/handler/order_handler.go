package handler

import (
	"net/http"

	"marketplace/internal/config"
	"marketplace/internal/repository"
	"marketplace/internal/usecase"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	uc *usecase.OrderUsecase
}

func NewOrderHandler(uc *usecase.OrderUsecase) *OrderHandler {
	return &OrderHandler{uc: uc}
}

type OrderItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type OrderCreateRequest struct {
	Items            []OrderItemRequest `json:"items"`
	DeliveryMethod   string             `json:"delivery_method"`
	CustomerName     string             `json:"customer_name"`
	CustomerEmail    string             `json:"customer_email"`
	CustomerPhone    string             `json:"customer_phone"`
	ShippingAddress  string             `json:"shipping_address"`
	ShippingCity     string             `json:"shipping_city"`
	ShippingPostcode string             `json:"shipping_postcode"`
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/orders", authed(cfg, userRepo)...)

	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.detail)
}

func (h *OrderHandler) create(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}

	var req OrderCreateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	//二重送信防止キーはヘッダーから受け取る（bodyには入れない）
	idemKey := c.Request().Header.Get("X-Idempotency-Key")

	items := make([]usecase.PlaceOrderItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, usecase.PlaceOrderItemInput{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	out, err := h.uc.PlaceOrder(c.Request().Context(), actor, usecase.PlaceOrderInput{
		Items:            items,
		DeliveryMethod:   req.DeliveryMethod,
		CustomerName:     req.CustomerName,
		CustomerEmail:    req.CustomerEmail,
		CustomerPhone:    req.CustomerPhone,
		ShippingAddress:  req.ShippingAddress,
		ShippingCity:     req.ShippingCity,
		ShippingPostcode: req.ShippingPostcode,
		IdempotencyKey:   idemKey,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) list(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return badRequest(c, "invalid page")
	}
	limit, ok := queryInt(c, "limit", 20)
	if !ok {
		return badRequest(c, "invalid limit")
	}

	out, err := h.uc.ListMyOrders(c.Request().Context(), actor, page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}

	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.GetOrderDetail(c.Request().Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
