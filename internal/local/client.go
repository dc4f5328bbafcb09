// Package local is the embedded data layer behind the application: an
// in-memory SQLite database made durable by flushing its full image to a
// host byte store, reached through a fluent query builder, plus local
// accounts and stand-ins for hosted file storage, functions and RPC.
//
//	c, err := local.Open(ctx, local.Options{Store: store})
//	if err != nil { ... }
//	defer c.Close()
//
//	if _, err := c.Auth().SignIn(ctx, email, password); err != nil { ... }
//	res := c.Table("items").Select().Eq("user_id", uid).Execute(ctx)
//
// A Client owns its engine. Clients opened on the same store in one process
// should share a broadcast.Bus so that session changes reach each other.
// Image flushes from separate clients are not coordinated: the last flush
// wins.
package local

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/brainbox/internal/blobstore"
	"github.com/dmitrijs2005/brainbox/internal/config"
	"github.com/dmitrijs2005/brainbox/internal/cryptox"
	"github.com/dmitrijs2005/brainbox/internal/local/auth"
	"github.com/dmitrijs2005/brainbox/internal/local/broadcast"
	"github.com/dmitrijs2005/brainbox/internal/local/engine"
	"github.com/dmitrijs2005/brainbox/internal/local/functions"
	"github.com/dmitrijs2005/brainbox/internal/local/persist"
	"github.com/dmitrijs2005/brainbox/internal/local/query"
	"github.com/dmitrijs2005/brainbox/internal/local/schema"
	"github.com/dmitrijs2005/brainbox/internal/local/storage"
	"github.com/dmitrijs2005/brainbox/internal/logging"
	"github.com/dmitrijs2005/brainbox/internal/timex"
)

// Options configure Open. Only Store is required.
type Options struct {
	Store blobstore.Store

	// ImageKey and SessionKey name the database image and the session slot
	// in Store.
	ImageKey   string
	SessionKey string

	// Secret signs session tokens. Empty means a per-install secret kept in
	// Store under auth.SecretKey.
	Secret          []byte
	SessionValidity time.Duration
	HashParams      cryptox.Params

	Bus    *broadcast.Bus
	Clock  *timex.Clock
	Logger logging.Logger
}

// OptionsFromConfig maps the loaded configuration onto Options.
func OptionsFromConfig(cfg *config.Config, store blobstore.Store, log logging.Logger) Options {
	return Options{
		Store:           store,
		ImageKey:        cfg.ImageKey,
		SessionKey:      cfg.SessionKey,
		Secret:          []byte(cfg.SecretKey),
		SessionValidity: cfg.SessionValidity,
		Logger:          log,
	}
}

// Client is the façade over one embedded database.
type Client struct {
	eng       *engine.Engine
	bridge    *persist.Bridge
	tr        *query.Translator
	auth      *auth.Service
	storage   *storage.Service
	functions *functions.Service
	log       logging.Logger
}

// Open rehydrates the database from the store (or starts blank), ensures the
// schema and wires the subsystems. A schema failure is fatal.
func Open(ctx context.Context, opts Options) (*Client, error) {
	if opts.Store == nil {
		return nil, errors.New("local: no store")
	}
	if opts.ImageKey == "" {
		opts.ImageKey = config.DefaultImageKey
	}
	if opts.SessionKey == "" {
		opts.SessionKey = config.DefaultSessionKey
	}
	if opts.Clock == nil {
		opts.Clock = timex.NewClock(nil)
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	log := opts.Logger

	eng, err := engine.Open(ctx, log)
	if err != nil {
		return nil, err
	}
	c := &Client{eng: eng, log: log.With("component", "client")}
	c.bridge = persist.NewBridge(opts.Store, opts.ImageKey, log)

	if err := c.restore(ctx, opts.Store, opts.Clock); err != nil {
		_ = eng.Close()
		return nil, err
	}

	applied, err := schema.Ensure(ctx, eng, log)
	if err != nil {
		_ = eng.Close()
		return nil, err
	}
	if applied > 0 {
		if err := c.Flush(ctx); err != nil {
			_ = eng.Close()
			return nil, err
		}
	}

	c.tr = query.NewTranslator(eng, c.bridge, opts.Clock, log)

	secret := opts.Secret
	if len(secret) == 0 {
		if secret, err = auth.LoadOrCreateSecret(ctx, opts.Store, auth.SecretKey); err != nil {
			_ = eng.Close()
			return nil, err
		}
	}
	c.auth, err = auth.NewService(c.tr, opts.Store, auth.Options{
		SessionKey: opts.SessionKey,
		Secret:     secret,
		Validity:   opts.SessionValidity,
		HashParams: opts.HashParams,
		Bus:        opts.Bus,
	}, opts.Clock, log)
	if err != nil {
		_ = eng.Close()
		return nil, err
	}

	c.storage = storage.New(opts.Store, opts.Clock, log)
	c.functions = functions.New(log)
	return c, nil
}

// restore imports the saved image. An image the engine rejects is moved
// aside under a timestamped key and the database starts blank.
func (c *Client) restore(ctx context.Context, store blobstore.Store, clock *timex.Clock) error {
	image, err := c.bridge.Load(ctx)
	if err != nil {
		return err
	}
	if image == nil {
		return nil
	}
	if err := c.eng.Import(ctx, image); err != nil {
		aside := c.bridge.Key() + ".corrupt-" + clock.Now().Format("20060102T150405.000000Z")
		c.log.Error(ctx, "saved image rejected, starting blank", "err", err, "moved_to", aside)
		if perr := store.Put(ctx, aside, image); perr != nil {
			return perr
		}
		return c.eng.Reset(ctx)
	}
	return nil
}

// Table starts a query on the named table.
func (c *Client) Table(name string) *query.Builder { return c.tr.From(name) }

func (c *Client) Auth() *auth.Service           { return c.auth }
func (c *Client) Storage() *storage.Service     { return c.storage }
func (c *Client) Functions() *functions.Service { return c.functions }

// RPC stands in for remote procedures: every call succeeds with no rows.
func (c *Client) RPC(ctx context.Context, name string, params any) query.Result {
	c.log.Debug(ctx, "rpc has no local implementation", "name", name)
	return query.Result{Data: []query.Row{}}
}

// Flush writes the current image to the store outside of any mutation.
func (c *Client) Flush(ctx context.Context) error {
	return c.eng.Run(ctx, func(ctx context.Context, conn engine.Conn) error {
		return c.bridge.Save(ctx, conn)
	})
}

// Close releases the engine. Every successful mutation has already been
// flushed, so nothing is written here.
func (c *Client) Close() error {
	return c.eng.Close()
}
