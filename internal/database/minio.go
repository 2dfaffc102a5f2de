package database

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
	"github.com/stemsi/oralexam/internal/config"
)

// NewMinioClient connects to the object store and makes sure the bucket exists.
func NewMinioClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*minio.Client, error) {
	sc := cfg.Storage
	client, err := minio.New(sc.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(sc.MinioAccessKey, sc.MinioSecretKey, ""),
		Secure: sc.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, sc.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", sc.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, sc.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", sc.MinioBucket, err)
		}
		log.Info().Str("bucket", sc.MinioBucket).Msg("Created bucket")
	}

	log.Info().
		Str("endpoint", sc.MinioEndpoint).
		Str("bucket", sc.MinioBucket).
		Msg("MinIO connected")

	return client, nil
}
