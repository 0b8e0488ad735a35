package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"marketplace/internal/config"
	"marketplace/internal/domain/model"
	"marketplace/internal/repository"
	"marketplace/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// 証明写真の最大サイズ
const maxProofBytes = 10 << 20

// 証明写真の保存先（minio）
type ProofStorage interface {
	UploadProof(ctx context.Context, orderID int64, filename string, r io.Reader, size int64, contentType string) (string, error)
}

// 配達の受注・割当・完了
type FulfillmentHandler struct {
	uc     *usecase.FulfillmentUsecase
	proofs ProofStorage
}

// proofsがnilなら写真アップロードは使えない（proof_urlを直接渡す）
func NewFulfillmentHandler(uc *usecase.FulfillmentUsecase, proofs ProofStorage) *FulfillmentHandler {
	return &FulfillmentHandler{uc: uc, proofs: proofs}
}

type AssignCourierRequest struct {
	CourierID int64 `json:"courier_id"`
}

type CompleteDeliveryRequest struct {
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
	ProofURL string   `json:"proof_url"`
}

func (h *FulfillmentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	d := e.Group("/deliveries", authed(cfg, userRepo, model.RoleDriver, model.RoleAdmin)...)
	d.GET("/available", h.listAvailable)
	d.GET("/mine", h.listMine)

	g := e.Group("/orders", authed(cfg, userRepo)...)
	g.POST("/:id/claim", h.claim)
	g.POST("/:id/assign", h.assign)
	g.POST("/:id/complete", h.complete)
}

func (h *FulfillmentHandler) listAvailable(c echo.Context) error {
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

	out, err := h.uc.ListAvailable(c.Request().Context(), actor, page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *FulfillmentHandler) listMine(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.uc.ListAssignments(c.Request().Context(), actor)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 配達員が自分で取る
func (h *FulfillmentHandler) claim(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.Claim(c.Request().Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 管理者/物流会社が割り当てる
func (h *FulfillmentHandler) assign(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req AssignCourierRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.Assign(c.Request().Context(), actor, id, req.CourierID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// JSON（proof_url）か multipart（photo + lat/lng）
func (h *FulfillmentHandler) complete(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var in usecase.CompleteDeliveryInput
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		parsed, err := h.completeFromMultipart(c, actor, id)
		if err != nil {
			return writeError(c, err)
		}
		in = parsed
	} else {
		var req CompleteDeliveryRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "invalid body")
		}
		in = usecase.CompleteDeliveryInput{Lat: req.Lat, Lng: req.Lng, ProofURL: req.ProofURL}
	}

	out, err := h.uc.CompleteDelivery(c.Request().Context(), actor, id, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 写真をストレージに上げてURLを作る。上げるのは完了できる相手のときだけ
func (h *FulfillmentHandler) completeFromMultipart(c echo.Context, actor model.Actor, orderID int64) (usecase.CompleteDeliveryInput, error) {
	var in usecase.CompleteDeliveryInput

	lat, ok := formFloat(c, "lat")
	if !ok {
		return in, usecase.NewHTTPError(http.StatusBadRequest, "invalid lat")
	}
	lng, ok := formFloat(c, "lng")
	if !ok {
		return in, usecase.NewHTTPError(http.StatusBadRequest, "invalid lng")
	}
	in.Lat, in.Lng = lat, lng

	fh, err := c.FormFile("photo")
	if err != nil {
		return in, usecase.NewHTTPError(http.StatusBadRequest, "photo required")
	}
	if fh.Size <= 0 || fh.Size > maxProofBytes {
		return in, usecase.NewHTTPError(http.StatusBadRequest, "invalid photo size")
	}

	//権限・座標・状態を確認してからストレージに書く
	if err := h.uc.AuthorizeCompletion(c.Request().Context(), actor, orderID, lat, lng); err != nil {
		return in, err
	}
	if h.proofs == nil {
		return in, usecase.NewHTTPError(http.StatusServiceUnavailable, "photo upload not configured")
	}

	f, err := fh.Open()
	if err != nil {
		return in, usecase.NewHTTPError(http.StatusBadRequest, "invalid photo")
	}
	defer f.Close()

	url, err := h.proofs.UploadProof(c.Request().Context(), orderID, fh.Filename, f, fh.Size, fh.Header.Get(echo.HeaderContentType))
	if err != nil {
		log.Error().Err(err).Int64("order_id", orderID).Msg("proof upload failed")
		return in, usecase.NewHTTPError(http.StatusBadGateway, "photo upload failed")
	}
	in.ProofURL = url
	return in, nil
}

func formFloat(c echo.Context, name string) (*float64, bool) {
	v := strings.TrimSpace(c.FormValue(name))
	if v == "" {
		return nil, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, false
	}
	return &f, true
}
