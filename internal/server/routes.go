package server

import (
	"net/http"

	"marketplace/internal/config"
	"marketplace/internal/handler"
	"marketplace/internal/repository"

	"github.com/labstack/echo/v4"
)

// 各handlerのルート
type Handlers struct {
	Auth         *handler.AuthHandler
	Product      *handler.ProductHandler
	AdminProduct *handler.AdminProductHandler
	Order        *handler.OrderHandler
	Fulfillment  *handler.FulfillmentHandler
	Dispute      *handler.DisputeHandler
	AdminOrder   *handler.AdminOrderHandler
	AdminUser    *handler.AdminUserHandler
	Logistics    *handler.LogisticsHandler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository, h Handlers) {
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	h.Auth.RegisterRoutes(e, cfg, userRepo)
	h.Product.RegisterRoutes(e, cfg, userRepo)
	h.AdminProduct.RegisterRoutes(e, cfg, userRepo)
	h.Order.RegisterRoutes(e, cfg, userRepo)
	h.Fulfillment.RegisterRoutes(e, cfg, userRepo)
	h.Dispute.RegisterRoutes(e, cfg, userRepo)
	h.AdminOrder.RegisterRoutes(e, cfg, userRepo)
	h.AdminUser.RegisterRoutes(e, cfg, userRepo)
	h.Logistics.RegisterRoutes(e, cfg, userRepo)
}
