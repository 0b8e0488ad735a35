package handler

import (
	"net/http"

	"marketplace/internal/config"
	"marketplace/internal/domain/model"
	"marketplace/internal/repository"
	"marketplace/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminUserHandler struct {
	uc    *usecase.AdminUserUsecase
	audit *usecase.AuditLogUsecase
}

func NewAdminUserHandler(uc *usecase.AdminUserUsecase, audit *usecase.AuditLogUsecase) *AdminUserHandler {
	return &AdminUserHandler{uc: uc, audit: audit}
}

type AdminUserUpdateRequest struct {
	Role       string `json:"role"`
	IsVerified *bool  `json:"is_verified"`
}

func (h *AdminUserHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	// /admin 配下は全部「JWT必須 + token_version一致 + ADMIN限定」
	admin := e.Group("/admin", authed(cfg, userRepo, model.RoleAdmin)...)

	admin.POST("/users/:id/deactivate", h.deactivate)
	admin.PATCH("/users/:id", h.update)
	admin.GET("/audit-logs", h.listAuditLogs)
}

// 停止（発行済みtokenも無効になる）
func (h *AdminUserHandler) deactivate(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}
	userID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid user_id")
	}

	if err := h.uc.DeactivateUser(c.Request().Context(), actor, userID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "deactivated"})
}

func (h *AdminUserHandler) update(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}
	userID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid user_id")
	}

	var req AdminUserUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.UpdateUser(c.Request().Context(), actor, userID, usecase.AdminUpdateUserInput{
		Role:       req.Role,
		IsVerified: req.IsVerified,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminUserHandler) listAuditLogs(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}

	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		return badRequest(c, "invalid limit")
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return badRequest(c, "invalid offset")
	}
	actorID, ok := queryInt64Ptr(c, "actor_user_id")
	if !ok {
		return badRequest(c, "invalid actor_user_id")
	}
	resourceID, ok := queryInt64Ptr(c, "resource_id")
	if !ok {
		return badRequest(c, "invalid resource_id")
	}

	logs, err := h.audit.List(c.Request().Context(), actor, usecase.AuditLogListInput{
		ActorUserID:  actorID,
		Action:       c.QueryParam("action"),
		ResourceType: c.QueryParam("resource_type"),
		ResourceID:   resourceID,
		From:         c.QueryParam("from"),
		To:           c.QueryParam("to"),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, logs)
}
