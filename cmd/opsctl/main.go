package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/domain/model"
	"marketplace/internal/infra/db"
	infraRepo "marketplace/internal/infra/repository"
	"marketplace/internal/logging"
	repo "marketplace/internal/repository"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// 運用向けの読み取り専用レポート
//
//	opsctl available [-limit 20]
//	opsctl disputes  [-limit 50]
//	opsctl audit     [-limit 50] [-action CLOSE_CLAIM,PROCESS_REFUND]
func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd := os.Args[1]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	limit := fs.Int("limit", 50, "max rows")
	action := fs.String("action", "", "audit action filter")
	_ = fs.Parse(os.Args[2:])

	cfg, err := config.Load()
	if err != nil {
		logging.Setup("opsctl", "info", true)
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logging.Setup("opsctl", cfg.LogLevel, true)

	gormDB, err := db.Connect(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	orders := infraRepo.NewOrderGormRepository(gormDB)

	switch cmd {
	case "available":
		list, total, err := orders.ListAvailable(ctx, 1, *limit)
		if err != nil {
			log.Fatal().Err(err).Msg("list available failed")
		}
		err = renderOrders(os.Stdout, list)
		fmt.Printf("total: %d\n", total)
		exitOn(err)

	case "disputes":
		var all []model.Order
		for _, st := range []model.RefundStatus{model.RefundStatusRequested, model.RefundStatusMediation} {
			list, _, err := orders.ListAdmin(ctx, repo.AdminOrderListFilter{Page: 1, Limit: *limit, RefundStatus: string(st)})
			if err != nil {
				log.Fatal().Err(err).Msg("list disputes failed")
			}
			all = append(all, list...)
		}
		exitOn(renderOrders(os.Stdout, all))

	case "audit":
		f := repo.AuditLogFilter{Limit: *limit, Actions: model.ParseAuditActions(*action)}
		logs, err := infraRepo.NewAuditLogGormRepository(gormDB).List(ctx, f)
		if err != nil {
			log.Fatal().Err(err).Msg("list audit logs failed")
		}
		exitOn(renderAuditLogs(os.Stdout, logs))

	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: opsctl <available|disputes|audit> [-limit N] [-action ACTION[,ACTION]]")
}

func exitOn(err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("render failed")
	}
}
