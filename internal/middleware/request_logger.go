package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// 1リクエスト1行のアクセスログ
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				//echoのエラーハンドラでレスポンスを確定させる
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			ev := log.Info()
			if res.Status >= 500 {
				ev = log.Error().Err(err)
			}
			ev = ev.
				Str("method", req.Method).
				Str("path", c.Path()).
				Str("uri", req.RequestURI).
				Int("status", res.Status).
				Int64("bytes", res.Size).
				Dur("latency", time.Since(start))
			if uid, ok := c.Get(CtxUserIDKey).(int64); ok {
				ev = ev.Int64("user_id", uid)
			}
			ev.Msg("request")

			return nil
		}
	}
}
