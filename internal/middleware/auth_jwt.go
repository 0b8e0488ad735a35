package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"marketplace/internal/config"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey       = "user_id"       // int64
	CtxUserRoleKey     = "user_role"     // string
	CtxTokenVersionKey = "token_version" // int
	CtxActorKey        = "actor"         // model.Actor
)

// bearerAuth用のJWT検証ミドルウェア。
func AuthJWT(cfg config.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			//Authorizationヘッダを取得
			authz := c.Request().Header.Get("Authorization")
			if authz == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//Bearer形式か確認してtokenを抜く
			parts := strings.SplitN(authz, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			rawToken := strings.TrimSpace(parts[1])
			if rawToken == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			claims, err := parseAccessToken(rawToken, cfg.JWTSecret)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			userID, err := strconv.ParseInt(claims.Sub.String(), 10, 64)
			if err != nil || userID <= 0 {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			//USER/DRIVER/LOGISTICS_ADMIN/ADMIN のどれか。未知のroleはRoleGuardで弾く
			if claims.Role == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			if claims.TV == nil || *claims.TV < 0 {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			role, tv := claims.Role, *claims.TV

			//contextへ保存
			c.Set(CtxUserIDKey, userID)
			c.Set(CtxUserRoleKey, role)
			c.Set(CtxTokenVersionKey, tv)

			return next(c)
		}
	}
}

// handlerのErrorResponseと同じ形
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg, Kind: "UNAUTHORIZED"}
}

func forbiddenJSON(msg string) errorResponse {
	return errorResponse{Error: msg, Kind: "PERMISSION_DENIED"}
}

// アクセストークンのclaims。subはuser.IDを数値のまま発行している（文字列でも受ける）
type accessClaims struct {
	Sub       json.Number      `json:"sub"`
	Role      string           `json:"role"`
	TV        *int             `json:"tv"`
	ExpiresAt *jwt.NumericDate `json:"exp,omitempty"`
	IssuedAt  *jwt.NumericDate `json:"iat,omitempty"`
}

// exp/iatの検証はRegisteredClaimsに任せる
func (c accessClaims) Valid() error {
	return jwt.RegisteredClaims{ExpiresAt: c.ExpiresAt, IssuedAt: c.IssuedAt}.Valid()
}

var accessTokenParser = jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

func parseAccessToken(raw, secret string) (*accessClaims, error) {
	claims := &accessClaims{}
	token, err := accessTokenParser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
