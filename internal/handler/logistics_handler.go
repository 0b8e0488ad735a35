package handler

import (
	"net/http"

	"marketplace/internal/config"
	"marketplace/internal/domain/model"
	"marketplace/internal/repository"
	"marketplace/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 物流会社オーナー用
type LogisticsHandler struct {
	uc *usecase.LogisticsUsecase
}

func NewLogisticsHandler(uc *usecase.LogisticsUsecase) *LogisticsHandler {
	return &LogisticsHandler{uc: uc}
}

type CompanyCreateRequest struct {
	Name string `json:"name"`
}

type AddWorkerRequest struct {
	UserID int64 `json:"user_id"`
}

func (h *LogisticsHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/logistics", authed(cfg, userRepo, model.RoleLogisticsAdmin)...)

	g.POST("/company", h.registerCompany)
	g.GET("/workers", h.listWorkers)
	g.POST("/workers", h.addWorker)
	g.DELETE("/workers/:id", h.removeWorker)
}

func (h *LogisticsHandler) registerCompany(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}

	var req CompanyCreateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.RegisterCompany(c.Request().Context(), actor, req.Name)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *LogisticsHandler) listWorkers(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.uc.ListWorkers(c.Request().Context(), actor)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *LogisticsHandler) addWorker(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}

	var req AddWorkerRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	if err := h.uc.AddWorker(c.Request().Context(), actor, req.UserID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "added"})
}

func (h *LogisticsHandler) removeWorker(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}
	workerID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	if err := h.uc.RemoveWorker(c.Request().Context(), actor, workerID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "removed"})
}
