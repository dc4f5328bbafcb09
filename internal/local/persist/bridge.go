// Package persist makes the in-memory database durable: it reads and writes
// the full database image under one fixed key of the host byte store.
//
// Every mutating operation ends with Save. There is no batching and no
// write-ahead log; each mutation rewrites the whole image. Save is called
// inside the engine's critical section, so two sequential mutations are
// flushed in the order they ran. Flushes from separate processes sharing a
// store are not ordered: the last one to finish wins.
package persist

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/brainbox/internal/blobstore"
	"github.com/dmitrijs2005/brainbox/internal/common"
	"github.com/dmitrijs2005/brainbox/internal/logging"
	"github.com/dmitrijs2005/brainbox/internal/metrics"
	"github.com/dustin/go-humanize"
)

// Exporter produces the current database image (engine.Conn satisfies it).
type Exporter interface {
	Export(ctx context.Context) ([]byte, error)
}

// Bridge moves database images between the engine and the host store.
type Bridge struct {
	store blobstore.Store
	key   string
	log   logging.Logger
}

func NewBridge(store blobstore.Store, key string, log logging.Logger) *Bridge {
	if log == nil {
		log = logging.Nop()
	}
	return &Bridge{store: store, key: key, log: log.With("component", "persist", "key", key)}
}

// Load returns the saved image, or nil on first run.
func (b *Bridge) Load(ctx context.Context) ([]byte, error) {
	image, err := b.store.Get(ctx, b.key)
	if errors.Is(err, common.ErrNotFound) {
		b.log.Info(ctx, "no saved image, starting blank")
		return nil, nil
	}
	if err != nil {
		return nil, common.NewError(common.KindPersistence, "failed to load database image", err)
	}
	b.log.Info(ctx, "image loaded", "size", humanize.Bytes(uint64(len(image))))
	return image, nil
}

// Save exports the current image from src and overwrites the stored one.
// Errors are *common.Error of kind persistence. The in-memory change that
// preceded the call is not rolled back when Save fails.
func (b *Bridge) Save(ctx context.Context, src Exporter) error {
	image, err := src.Export(ctx)
	if err != nil {
		metrics.ImageFlushesTotal.WithLabelValues(metrics.Fail).Inc()
		b.log.Error(ctx, "image export failed", "err", err)
		return common.NewError(common.KindPersistence, "failed to export database image", err)
	}

	if err := b.store.Put(ctx, b.key, image); err != nil {
		metrics.ImageFlushesTotal.WithLabelValues(metrics.Fail).Inc()
		b.log.Error(ctx, "image write failed", "err", err)
		return common.NewError(common.KindPersistence, "failed to persist database image", err)
	}

	metrics.ImageFlushesTotal.WithLabelValues(metrics.Ok).Inc()
	metrics.ImageBytes.Set(float64(len(image)))
	b.log.Debug(ctx, "image saved", "size", humanize.Bytes(uint64(len(image))))
	return nil
}

// Key returns the store key holding the image.
func (b *Bridge) Key() string { return b.key }
