package persist

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/brainbox/internal/blobstore"
	"github.com/dmitrijs2005/brainbox/internal/common"
	"github.com/dmitrijs2005/brainbox/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticExporter struct {
	image []byte
	err   error
}

func (s staticExporter) Export(context.Context) ([]byte, error) { return s.image, s.err }

type failingStore struct {
	blobstore.Store
	putErr error
	getErr error
}

func (f failingStore) Put(ctx context.Context, key string, v []byte) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.Store.Put(ctx, key, v)
}

func (f failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.Store.Get(ctx, key)
}

func memStore() blobstore.Store {
	return blobstore.NewFileStore(afero.NewMemMapFs(), "/")
}

func TestBridge_LoadFirstRun(t *testing.T) {
	b := NewBridge(memStore(), "brainbox.sqlite", nil)

	image, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, image)
}

func TestBridge_SaveThenLoad(t *testing.T) {
	ctx := context.Background()
	b := NewBridge(memStore(), "brainbox.sqlite", nil)

	before := testutil.ToFloat64(metrics.ImageFlushesTotal.WithLabelValues(metrics.Ok))
	require.NoError(t, b.Save(ctx, staticExporter{image: []byte("v1")}))
	require.NoError(t, b.Save(ctx, staticExporter{image: []byte("v2")}))
	assert.Equal(t, before+2, testutil.ToFloat64(metrics.ImageFlushesTotal.WithLabelValues(metrics.Ok)))

	image, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), image, "last flush wins")
}

func TestBridge_SaveFailuresArePersistenceErrors(t *testing.T) {
	ctx := context.Background()

	b := NewBridge(failingStore{Store: memStore(), putErr: errors.New("disk full")}, "k", nil)
	err := b.Save(ctx, staticExporter{image: []byte("x")})
	require.Error(t, err)
	assert.Equal(t, common.KindPersistence, common.KindOf(err))
	assert.Contains(t, err.Error(), "disk full")

	b = NewBridge(memStore(), "k", nil)
	err = b.Save(ctx, staticExporter{err: errors.New("serialize failed")})
	assert.Equal(t, common.KindPersistence, common.KindOf(err))
}

func TestBridge_LoadStoreUnavailable(t *testing.T) {
	b := NewBridge(failingStore{Store: memStore(), getErr: errors.New("unreachable")}, "k", nil)

	_, err := b.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, common.KindPersistence, common.KindOf(err))
}
