package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/middleware"
	"marketplace/internal/repository"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

func New(cfg config.Config, userRepo repository.UserRepository, h Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger())
	//証明写真のmultipartが入るので少し大きめ
	e.Use(echomw.BodyLimit("12M"))

	RegisterRoutes(e, cfg, userRepo, h)
	return e
}

// ctxが終わるまで待ち受けて、終わったら処理中のリクエストを待って止める
func Run(ctx context.Context, e *echo.Echo, port string) error {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("Server stopped")
	return nil
}
