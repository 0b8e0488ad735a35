package db

import (
	"marketplace/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect はDBに接続して *gorm.DB を返す。
func Connect(cfg config.Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{}
	if cfg.IsProd() {
		gcfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	return gorm.Open(postgres.Open(cfg.PostgresDSN()), gcfg)
}
