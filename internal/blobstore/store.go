// Package blobstore provides the host durable byte store: a flat map from
// string keys to opaque byte values. The database image, the session record,
// the per-install token secret and stand-in file uploads all live here.
//
// Implementations:
//
//   - FileStore - one file per key on an afero.Fs (OS directory or in-memory)
//   - S3Store   - one object per key in an S3-compatible bucket
//
// Get reports a missing key with an error matching common.ErrNotFound.
package blobstore

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/brainbox/internal/common"
	"github.com/dmitrijs2005/brainbox/internal/config"
	"github.com/dmitrijs2005/brainbox/internal/filex"
	"github.com/spf13/afero"
)

// Store is a durable key/value store for opaque byte values.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

func notFound(key string) error {
	return fmt.Errorf("key %q: %w", key, common.ErrNotFound)
}

// FromConfig opens the store backend selected by cfg.StoreBackend.
func FromConfig(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StoreBackend {
	case config.BackendFile, "":
		fs := afero.NewOsFs()
		dir, err := filex.EnsureDir(fs, cfg.DataDir)
		if err != nil {
			return nil, err
		}
		return NewFileStore(fs, dir), nil
	case config.BackendMemory:
		return NewFileStore(afero.NewMemMapFs(), "/"), nil
	case config.BackendS3:
		return NewS3Store(ctx, S3Config{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
