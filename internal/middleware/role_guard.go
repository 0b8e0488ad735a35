package middleware

import (
	"net/http"

	"marketplace/internal/domain/model"

	"github.com/labstack/echo/v4"
)

// Actorのroleが許可リストにあるか確認します。
// TokenVersionGuardの後ろで使う
func RoleGuard(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := ActorFrom(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			if _, ok := allowed[actor.Role]; !ok {
				return c.JSON(http.StatusForbidden, forbiddenJSON("forbidden"))
			}

			return next(c)
		}
	}
}

func AdminRoleGuard() echo.MiddlewareFunc {
	return RoleGuard(model.RoleAdmin)
}
