package handler

import (
	"net/http"
	"strconv"

	"marketplace/internal/config"
	"marketplace/internal/domain/model"
	"marketplace/internal/middleware"
	"marketplace/internal/repository"
	"marketplace/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{Error: he.Message, Kind: string(he.Kind)})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Kind: string(usecase.KindInternal)})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Kind: string(usecase.KindInvalidArgument)})
}

// JWT必須 + token_version一致（+ role制限）
func authed(cfg config.Config, userRepo repository.UserRepository, roles ...model.Role) []echo.MiddlewareFunc {
	mws := []echo.MiddlewareFunc{
		middleware.AuthJWT(cfg),
		middleware.TokenVersionGuard(userRepo),
	}
	if len(roles) > 0 {
		mws = append(mws, middleware.RoleGuard(roles...))
	}
	return mws
}

// middleware.TokenVersionGuard が c.Set した Actor を取り出す
func getActor(c echo.Context) (model.Actor, bool) {
	return middleware.ActorFrom(c)
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Kind: string(usecase.KindUnauthorized)})
}

// パスパラメータのid
func pathID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// クエリの整数（なければdef）
func queryInt(c echo.Context, name string, def int) (int, bool) {
	v := c.QueryParam(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func queryInt64Ptr(c echo.Context, name string) (*int64, bool) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, true
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, false
	}
	return &n, true
}
