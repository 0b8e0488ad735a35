package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DatabaseURL      string // あれば最優先（POSTGRES_*より優先）
	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）
	PostgresSSLMode  string // disable / require
	MigrationsPath   string // golang-migrateのSQL置き場

	JWTSecret string // JWT署名シークレット

	GoEnv    string // dev/prod
	LogLevel string // debug/info/warn/error

	RedisHost     string        // 空ならキャッシュ無効
	RedisPassword string        //
	OrderViewTTL  time.Duration // 注文詳細キャッシュの有効期限

	MinioEndpoint  string // 配達証明写真の保存先
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

// Loadは環境変数
func Load() (Config, error) {
	cfg := Config{
		Port: getenv("PORT", "8080"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),
		MigrationsPath:   getenv("MIGRATIONS_PATH", "migrations"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		GoEnv:    os.Getenv("GO_ENV"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		RedisHost:     os.Getenv("REDIS_HOST"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getenv("MINIO_BUCKET", "delivery-proofs"),
	}

	pgPort, err := atoiOr("POSTGRES_PORT", 5432)
	if err != nil {
		return Config{}, err
	}
	cfg.PostgresPort = pgPort

	ttl, err := durationOr("ORDER_VIEW_TTL", 5*time.Minute)
	if err != nil {
		return Config{}, err
	}
	cfg.OrderViewTTL = ttl

	useSSL, err := boolOr("MINIO_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	cfg.MinioUseSSL = useSSL

	//必須チェック
	if cfg.DatabaseURL == "" {
		if cfg.PostgresUser == "" {
			return Config{}, fmt.Errorf("POSTGRES_USER is required")
		}
		if cfg.PostgresPassword == "" {
			return Config{}, fmt.Errorf("POSTGRES_PASSWORD is required")
		}
		if cfg.PostgresDB == "" {
			return Config{}, fmt.Errorf("POSTGRES_DB is required")
		}
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.GoEnv == "" {
		return Config{}, fmt.Errorf("GO_ENV is required")
	}
	if cfg.MinioEndpoint != "" && (cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "") {
		return Config{}, fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required with MINIO_ENDPOINT")
	}

	return cfg, nil
}

func (c Config) IsProd() bool {
	return c.GoEnv == "prod"
}

// gorm/golang-migrate用の接続文字列
func (c Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

// golang-migrate(pgx5ドライバ)用のURL
func (c Config) MigrateURL() string {
	if c.DatabaseURL != "" {
		for _, prefix := range []string{"postgres://", "postgresql://"} {
			if strings.HasPrefix(c.DatabaseURL, prefix) {
				return "pgx5://" + strings.TrimPrefix(c.DatabaseURL, prefix)
			}
		}
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"pgx5://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSLMode,
	)
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoiOr(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func durationOr(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	return d, nil
}

func boolOr(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be bool: %w", key, err)
	}
	return b, nil
}
