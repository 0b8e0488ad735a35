package handler

import (
	"context"
	"net/http"

	"marketplace/internal/config"
	"marketplace/internal/domain/model"
	"marketplace/internal/repository"
	"marketplace/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 注文チャットと返金・クレーム
type DisputeHandler struct {
	uc *usecase.DisputeUsecase
}

func NewDisputeHandler(uc *usecase.DisputeUsecase) *DisputeHandler {
	return &DisputeHandler{uc: uc}
}

type SendMessageRequest struct {
	Body          string `json:"body"`
	AttachmentURL string `json:"attachment_url"`
}

type RefundRequest struct {
	Reason string `json:"reason"`
}

type UnpauseResponse struct {
	Unpaused int64 `json:"unpaused"`
}

func (h *DisputeHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/orders", authed(cfg, userRepo)...)

	g.GET("/:id/messages", h.listMessages)
	g.POST("/:id/messages", h.sendMessage)

	g.POST("/:id/refund/request", h.requestRefund)
	g.POST("/:id/refund/mediation", h.transition(h.uc.RequestMediation))
	g.POST("/:id/refund/process", h.transition(h.uc.ProcessRefund))
	g.POST("/:id/claim/close", h.transition(h.uc.CloseClaim))
	g.POST("/:id/claim/cancel", h.transition(h.uc.CancelClaim))
	g.POST("/:id/products/unpause", h.unpause)
}

func (h *DisputeHandler) listMessages(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.ListMessages(c.Request().Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *DisputeHandler) sendMessage(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	msg, err := h.uc.SendMessage(c.Request().Context(), actor, id, usecase.SendMessageInput{
		Body:          req.Body,
		AttachmentURL: req.AttachmentURL,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, msg)
}

func (h *DisputeHandler) requestRefund(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req RefundRequest
	//理由は任意
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "invalid body")
		}
	}

	out, err := h.uc.RequestRefund(c.Request().Context(), actor, id, req.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// bodyなしの遷移はどれも同じ形
func (h *DisputeHandler) transition(op func(ctx context.Context, actor model.Actor, orderID int64) (usecase.OrderOutput, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, ok := getActor(c)
		if !ok {
			return unauthorized(c)
		}
		id, ok := pathID(c, "id")
		if !ok {
			return badRequest(c, "invalid id")
		}

		out, err := op(c.Request().Context(), actor, id)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, out)
	}
}

func (h *DisputeHandler) unpause(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	n, err := h.uc.UnpauseProduct(c.Request().Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, UnpauseResponse{Unpaused: n})
}
