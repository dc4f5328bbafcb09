package blobstore

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/brainbox/internal/common"
	"github.com/dmitrijs2005/brainbox/internal/config"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	s := NewFileStore(fs, "/data")

	_, err := s.Get(ctx, "brainbox.sqlite")
	require.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, s.Put(ctx, "brainbox.sqlite", []byte{1, 2, 3}))
	got, err := s.Get(ctx, "brainbox.sqlite")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)

	require.NoError(t, s.Put(ctx, "storage/previews/u1/a.png", []byte("png")))
	ok, err := afero.Exists(fs, "/data/storage/previews/u1/a.png")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "brainbox.sqlite"))
	require.NoError(t, s.Delete(ctx, "brainbox.sqlite"), "second delete is a no-op")
	_, err = s.Get(ctx, "brainbox.sqlite")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestFileStore_RejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(afero.NewMemMapFs(), "/data")

	for _, key := range []string{"", "/", "../etc/passwd", "a/../../b"} {
		err := s.Put(ctx, key, []byte("x"))
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestFromConfig_MemoryAndUnknown(t *testing.T) {
	ctx := context.Background()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.StoreBackend = config.BackendMemory

	s, err := FromConfig(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "k", []byte("v")))

	cfg.StoreBackend = "floppy"
	_, err = FromConfig(ctx, cfg)
	assert.Error(t, err)
}

func TestFromConfig_FileBackendCreatesDir(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DataDir = t.TempDir() + "/nested"

	s, err := FromConfig(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), "k", []byte("v")))
}
