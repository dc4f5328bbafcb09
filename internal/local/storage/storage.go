// Package storage is the local stand-in for hosted file storage. Each file is
// kept as one self-contained record (metadata plus base64 content) in the
// host byte store under "storage/<bucket>/<path>".
//
// Signed URLs are data: URLs carrying the whole file. They never expire and
// grant nothing beyond what the caller already holds; the expiry argument is
// accepted for call compatibility and ignored.
package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/brainbox/internal/blobstore"
	"github.com/dmitrijs2005/brainbox/internal/common"
	"github.com/dmitrijs2005/brainbox/internal/logging"
	"github.com/dmitrijs2005/brainbox/internal/timex"
	"github.com/dustin/go-humanize"
)

const keyPrefix = "storage/"

// Object is a stored file.
type Object struct {
	Bucket      string    `json:"bucket"`
	Path        string    `json:"path"`
	ContentType string    `json:"content_type"`
	Size        int       `json:"size"`
	Data        []byte    `json:"data"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// UploadOptions tune Upload.
type UploadOptions struct {
	// ContentType overrides detection from the path extension and content.
	ContentType string
	// Upsert replaces an existing file instead of failing.
	Upsert bool
}

// Service hands out buckets over one byte store.
type Service struct {
	store blobstore.Store
	clock *timex.Clock
	log   logging.Logger
}

func New(store blobstore.Store, clock *timex.Clock, log logging.Logger) *Service {
	if clock == nil {
		clock = timex.NewClock(nil)
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Service{store: store, clock: clock, log: log.With("component", "storage")}
}

// Bucket addresses files under one bucket name.
type Bucket struct {
	svc  *Service
	name string
}

// From returns the bucket called name.
func (s *Service) From(name string) *Bucket {
	return &Bucket{svc: s, name: name}
}

func (b *Bucket) key(p string) (string, error) {
	if b.name == "" || strings.ContainsAny(b.name, "/\\") || strings.Contains(b.name, "..") {
		return "", common.NewError(common.KindInvalid, fmt.Sprintf("invalid bucket name %q", b.name), nil)
	}
	clean := strings.TrimPrefix(path.Clean("/"+p), "/")
	if p == "" || clean == "" || strings.Contains(p, "..") {
		return "", common.NewError(common.KindInvalid, fmt.Sprintf("invalid file path %q", p), nil)
	}
	return keyPrefix + b.name + "/" + clean, nil
}

// Upload stores data at p. Without Upsert an existing file is a constraint
// error.
func (b *Bucket) Upload(ctx context.Context, p string, data []byte, opts UploadOptions) (*Object, error) {
	key, err := b.key(p)
	if err != nil {
		return nil, err
	}

	if !opts.Upsert {
		_, err := b.svc.store.Get(ctx, key)
		switch {
		case err == nil:
			return nil, common.NewError(common.KindConstraint, "the resource already exists", nil)
		case !errors.Is(err, common.ErrNotFound):
			return nil, common.NewError(common.KindPersistence, "failed to check existing file", err)
		}
	}

	obj := &Object{
		Bucket:      b.name,
		Path:        strings.TrimPrefix(key, keyPrefix+b.name+"/"),
		ContentType: contentType(p, data, opts.ContentType),
		Size:        len(data),
		Data:        data,
		UploadedAt:  b.svc.clock.Now(),
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, common.NewError(common.KindInternal, "", err)
	}
	if err := b.svc.store.Put(ctx, key, raw); err != nil {
		return nil, common.NewError(common.KindPersistence, "failed to store file", err)
	}

	b.svc.log.Info(ctx, "file uploaded", "bucket", b.name, "path", obj.Path, "size", humanize.Bytes(uint64(obj.Size)))
	return obj, nil
}

// Download returns the stored file.
func (b *Bucket) Download(ctx context.Context, p string) (*Object, error) {
	key, err := b.key(p)
	if err != nil {
		return nil, err
	}
	raw, err := b.svc.store.Get(ctx, key)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.NewError(common.KindNotFound, "object not found", err)
	}
	if err != nil {
		return nil, common.NewError(common.KindPersistence, "failed to read file", err)
	}

	var obj Object
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, common.NewError(common.KindMalformed, "stored file is unreadable", err)
	}
	return &obj, nil
}

// CreateSignedURL returns a data: URL embedding the file. expiresIn is not
// enforced.
func (b *Bucket) CreateSignedURL(ctx context.Context, p string, expiresIn time.Duration) (string, error) {
	obj, err := b.Download(ctx, p)
	if err != nil {
		return "", err
	}
	return DataURL(obj.ContentType, obj.Data), nil
}

// Remove deletes the files at paths. Missing files are skipped.
func (b *Bucket) Remove(ctx context.Context, paths ...string) error {
	for _, p := range paths {
		key, err := b.key(p)
		if err != nil {
			return err
		}
		if err := b.svc.store.Delete(ctx, key); err != nil {
			return common.NewError(common.KindPersistence, "failed to remove file", err)
		}
	}
	return nil
}

// DataURL renders data as a base64 data: URL.
func DataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func contentType(p string, data []byte, override string) string {
	if override != "" {
		return override
	}
	if ct := mime.TypeByExtension(path.Ext(p)); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
