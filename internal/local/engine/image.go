package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/brainbox/internal/dbx"
)

// Implemented by the modernc.org/sqlite driver connection. Its Deserialize
// counterpart is not used: the driver hands sqlite a buffer that sqlite later
// frees with its own allocator, which crashes the connection on Close.
type serializer interface {
	Serialize() ([]byte, error)
}

var ErrEmptyImage = errors.New("empty database image")

func export(ctx context.Context, db *sql.DB) ([]byte, error) {
	c, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer c.Close()

	var (
		image     []byte
		supported bool
	)
	err = c.Raw(func(dc any) error {
		s, ok := dc.(serializer)
		if !ok {
			return nil
		}
		supported = true
		var serr error
		image, serr = s.Serialize()
		return serr
	})
	if err != nil {
		return nil, fmt.Errorf("serialize: %w", err)
	}
	if supported {
		return image, nil
	}
	return vacuumInto(ctx, c)
}

// vacuumInto is the export path for drivers without Serialize: write a
// compacted copy to a temporary file and read it back.
func vacuumInto(ctx context.Context, c *sql.Conn) ([]byte, error) {
	dir, err := os.MkdirTemp("", "brainbox-image-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "image.db")
	if _, err := c.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return nil, fmt.Errorf("vacuum into: %w", err)
	}
	return os.ReadFile(path)
}

// importImage loads image into the connection's empty main database by
// attaching it as a file and copying every object across.
func importImage(ctx context.Context, db *sql.DB, image []byte) error {
	if len(image) == 0 {
		return ErrEmptyImage
	}

	c, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer c.Close()

	return attachCopy(ctx, c, image)
}

type schemaObject struct {
	kind, name, sql string
}

// attachCopy attaches the image as a file and recreates its objects, rows
// included, in main.
func attachCopy(ctx context.Context, c *sql.Conn, image []byte) error {
	dir, err := os.MkdirTemp("", "brainbox-image-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "image.db")
	if err := os.WriteFile(path, image, 0o600); err != nil {
		return err
	}

	if _, err := c.ExecContext(ctx, `ATTACH DATABASE ? AS image`, path); err != nil {
		return fmt.Errorf("attach image: %w", err)
	}
	defer c.ExecContext(context.WithoutCancel(ctx), `DETACH DATABASE image`)

	objects, err := listObjects(ctx, c)
	if err != nil {
		return err
	}

	if _, err := c.ExecContext(ctx, `PRAGMA foreign_keys = OFF`); err != nil {
		return err
	}
	defer c.ExecContext(context.WithoutCancel(ctx), `PRAGMA foreign_keys = ON`)

	return dbx.WithTx(ctx, c, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, o := range objects {
			if _, err := tx.ExecContext(ctx, o.sql); err != nil {
				return fmt.Errorf("create %s %s: %w", o.kind, o.name, err)
			}
			if o.kind != "table" {
				continue
			}
			q := fmt.Sprintf(`INSERT INTO main.%s SELECT * FROM image.%s`, quoteIdent(o.name), quoteIdent(o.name))
			if _, err := tx.ExecContext(ctx, q); err != nil {
				return fmt.Errorf("copy table %s: %w", o.name, err)
			}
		}
		return nil
	})
}

func listObjects(ctx context.Context, c *sql.Conn) ([]schemaObject, error) {
	rows, err := c.QueryContext(ctx, `
		SELECT type, name, sql FROM image.sqlite_master
		WHERE sql IS NOT NULL AND name NOT LIKE 'sqlite_%'
		ORDER BY CASE type WHEN 'table' THEN 0 ELSE 1 END, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list image objects: %w", err)
	}
	defer rows.Close()

	var objects []schemaObject
	for rows.Next() {
		var o schemaObject
		if err := rows.Scan(&o.kind, &o.name, &o.sql); err != nil {
			return nil, err
		}
		objects = append(objects, o)
	}
	return objects, rows.Err()
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
