package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"marketplace/internal/config"
	"marketplace/internal/handler"
	"marketplace/internal/infra/cache"
	"marketplace/internal/infra/db"
	infraRepo "marketplace/internal/infra/repository"
	"marketplace/internal/infra/storage"
	"marketplace/internal/logging"
	"marketplace/internal/server"
	"marketplace/internal/usecase"
	"marketplace/internal/validator"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	//.envは任意（本番は環境変数だけ）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Setup("marketplace-api", "info", true)
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logging.Setup("marketplace-api", cfg.LogLevel, !cfg.IsProd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := db.Migrate(cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	//注文詳細・担当一覧のキャッシュ（REDIS_HOSTが空なら無効）
	var viewCache usecase.ViewCache = cache.NopViewCache{}
	if cfg.RedisHost != "" {
		client, err := cache.NewRedisClient(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		defer client.Close()
		viewCache = cache.NewRedisViewCache(client, cfg.OrderViewTTL)
	} else {
		log.Warn().Msg("REDIS_HOST is empty, order view cache disabled")
	}

	//配達証明写真（MINIO_ENDPOINTが空ならproof_url直接指定のみ）
	var proofs handler.ProofStorage
	if cfg.MinioEndpoint != "" {
		store, err := storage.NewMinioProofStore(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to object storage")
		}
		proofs = store
	} else {
		log.Warn().Msg("MINIO_ENDPOINT is empty, proof photo upload disabled")
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	//Usecase生成
	authUC := usecase.NewAuthUsecase(cfg.JWTSecret, userRepo, validator.NewAuthValidator(userRepo))
	productUC := usecase.NewProductUsecase(productRepo, txm)
	orderUC := usecase.NewOrderUsecase(txm, viewCache)
	fulfillmentUC := usecase.NewFulfillmentUsecase(txm, viewCache)
	disputeUC := usecase.NewDisputeUsecase(txm, viewCache)
	adminOrderUC := usecase.NewAdminOrderUsecase(txm, viewCache)
	adminUserUC := usecase.NewAdminUserUsecase(txm)
	logisticsUC := usecase.NewLogisticsUsecase(txm)
	auditUC := usecase.NewAuditLogUsecase(auditRepo)

	//Handler生成
	e := server.New(cfg, userRepo, server.Handlers{
		Auth:         handler.NewAuthHandler(authUC),
		Product:      handler.NewProductHandler(productUC),
		AdminProduct: handler.NewAdminProductHandler(productUC),
		Order:        handler.NewOrderHandler(orderUC),
		Fulfillment:  handler.NewFulfillmentHandler(fulfillmentUC, proofs),
		Dispute:      handler.NewDisputeHandler(disputeUC),
		AdminOrder:   handler.NewAdminOrderHandler(adminOrderUC),
		AdminUser:    handler.NewAdminUserHandler(adminUserUC, auditUC),
		Logistics:    handler.NewLogisticsHandler(logisticsUC),
	})

	//Server起動（SIGINT/SIGTERMで停止）
	if err := server.Run(ctx, e, cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
