package storage

import (
	"context"
	"fmt"

	"github.com/arjunkorath02/DigiData/internal/config"
	"github.com/arjunkorath02/DigiData/internal/storage/local"
	s3backend "github.com/arjunkorath02/DigiData/internal/storage/s3"
)

// Open creates the Backend selected by the configuration.
func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.StorageBackend {
	case "s3":
		return s3backend.New(ctx, s3backend.Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
		})
	case "local", "":
		return local.New(cfg.LocalStoragePath)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.StorageBackend)
	}
}
