package cli

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/brainbox/internal/local/query"
	"github.com/dmitrijs2005/brainbox/internal/local/storage"
	"github.com/dmitrijs2005/brainbox/internal/models"
	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
)

const signedURLValidity = time.Hour

// Upload stores a local file in the attachments bucket and saves an item
// pointing at it. Uploading the same file name again replaces the file.
func (a *App) Upload(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: upload <file>")
	}
	uid, err := a.userID(ctx)
	if err != nil {
		return err
	}

	data, err := afero.ReadFile(a.fs, args[0])
	if err != nil {
		return err
	}

	name := filepath.Base(args[0])
	obj, err := a.client.Storage().From(filesBucket).Upload(ctx, uid+"/"+name, data, storage.UploadOptions{Upsert: true})
	if err != nil {
		return err
	}
	printlnFn(a.out, "Uploaded", name, humanize.Bytes(uint64(obj.Size)), obj.ContentType)

	return a.insertItem(ctx, query.Row{
		"type":    itemTypeFor(obj.ContentType),
		"title":   name,
		"content": obj.Path,
		"tags":    []string{},
		"user_id": uid,
	})
}

// URL prints a link to a previously uploaded file.
func (a *App) URL(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: url <file>")
	}
	uid, err := a.userID(ctx)
	if err != nil {
		return err
	}

	p := args[0]
	if !strings.HasPrefix(p, uid+"/") {
		p = uid + "/" + filepath.Base(p)
	}
	u, err := a.client.Storage().From(filesBucket).CreateSignedURL(ctx, p, signedURLValidity)
	if err != nil {
		return err
	}
	printlnFn(a.out, u)
	return nil
}

func itemTypeFor(contentType string) models.ItemType {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return models.ItemImage
	case strings.HasPrefix(contentType, "video/"):
		return models.ItemVideo
	case strings.HasPrefix(contentType, "text/"),
		strings.HasPrefix(contentType, "application/pdf"),
		strings.Contains(contentType, "document"):
		return models.ItemDocument
	default:
		return models.ItemFile
	}
}
