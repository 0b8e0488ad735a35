package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"marketplace/internal/config"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// 配達証明写真の保存先（MinIO / S3互換）
type MinioProofStore struct {
	client   *minio.Client
	bucket   string
	endpoint string
	secure   bool
}

func NewMinioProofStore(ctx context.Context, cfg config.Config) (*MinioProofStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		log.Info().Str("bucket", cfg.MinioBucket).Msg("Created proof bucket")
	}

	log.Info().Str("endpoint", cfg.MinioEndpoint).Msg("Connected to MinIO")
	return &MinioProofStore{
		client:   client,
		bucket:   cfg.MinioBucket,
		endpoint: cfg.MinioEndpoint,
		secure:   cfg.MinioUseSSL,
	}, nil
}

// 写真を保存して参照URLを返す。キーは推測されないようにuuidにする
func (s *MinioProofStore) UploadProof(ctx context.Context, orderID int64, filename string, r io.Reader, size int64, contentType string) (string, error) {
	key := ObjectKey(orderID, filename, uuid.NewString())

	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", err
	}

	scheme := "http"
	if s.secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.endpoint, s.bucket, key), nil
}

// orders/<orderID>/<id><ext>
func ObjectKey(orderID int64, filename string, id string) string {
	ext := strings.ToLower(path.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".heic":
	default:
		ext = ""
	}
	return fmt.Sprintf("orders/%d/%s%s", orderID, id, ext)
}
