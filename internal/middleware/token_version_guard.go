package middleware

import (
	"net/http"

	"marketplace/internal/domain/model"
	"marketplace/internal/repository"

	"github.com/labstack/echo/v4"
)

// JWTのtvとDBのtoken_versionの一致するか確認。
// 通ったらDBの最新行からActorを組み立ててcontextに入れる
func TokenVersionGuard(userRepo repository.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			//AuthJWTが入れたuser_id を取得する
			rawUserID := c.Get(CtxUserIDKey)
			userID, ok := rawUserID.(int64)
			if !ok || userID <= 0 {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//AuthJWTが入れたtoken_version(tv)を取得する
			rawTV := c.Get(CtxTokenVersionKey)
			tv, ok := rawTV.(int)
			if !ok || tv < 0 {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//DBから最新のuserを取得する
			user, err := userRepo.FindByID(c.Request().Context(), userID)
			if err != nil || user == nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//token_version が一致しなければ強制ログアウト扱い（401）
			if user.TokenVersion != tv {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			//停止中
			if !user.IsActive {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//roleはtokenではなくDBの値を使う
			c.Set(CtxUserRoleKey, string(user.Role))
			c.Set(CtxActorKey, model.ActorFromUser(*user))

			return next(c)
		}
	}
}

// TokenVersionGuardが入れたActorを取り出す
func ActorFrom(c echo.Context) (model.Actor, bool) {
	a, ok := c.Get(CtxActorKey).(model.Actor)
	if !ok || a.ID <= 0 {
		return model.Actor{}, false
	}
	return a, true
}
