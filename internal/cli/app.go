package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"

	"github.com/dmitrijs2005/brainbox/internal/blobstore"
	"github.com/dmitrijs2005/brainbox/internal/common"
	"github.com/dmitrijs2005/brainbox/internal/config"
	"github.com/dmitrijs2005/brainbox/internal/local"
	"github.com/dmitrijs2005/brainbox/internal/local/auth"
	"github.com/dmitrijs2005/brainbox/internal/logging"
	"github.com/dmitrijs2005/brainbox/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
)

// filesBucket is the storage bucket for uploaded files.
const filesBucket = "attachments"

var errNotLoggedIn = errors.New("not logged in, use 'login' first")

type App struct {
	client   *local.Client
	reader   *bufio.Reader
	out      io.Writer
	fs       afero.Fs
	gatherer prometheus.Gatherer
	log      logging.Logger

	unsubscribe func()
}

// NewApp opens the store selected by cfg and the local data layer on top of
// it.
func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	store, err := blobstore.FromConfig(ctx, cfg)
	if err != nil {
		log.Error(ctx, "error opening store", "err", err)
		return nil, err
	}

	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		return nil, err
	}

	c, err := local.Open(ctx, local.OptionsFromConfig(cfg, store, log))
	if err != nil {
		log.Error(ctx, "error opening database", "err", err)
		return nil, err
	}

	return newApp(c, bufio.NewReader(os.Stdin), os.Stdout, afero.NewOsFs(), reg, log), nil
}

func newApp(c *local.Client, r *bufio.Reader, out io.Writer, fs afero.Fs, g prometheus.Gatherer, log logging.Logger) *App {
	return &App{client: c, reader: r, out: out, fs: fs, gatherer: g, log: log}
}

// Run logs session changes made by other clients on the same bus and runs
// the REPL until the user exits.
func (a *App) Run(ctx context.Context) {
	a.unsubscribe = a.client.Auth().OnChange(func(ev auth.Event, sess *auth.Session) {
		if ev == auth.EventInitialSession {
			return
		}
		a.log.Info(ctx, "session changed elsewhere", "event", string(ev))
	})
	defer a.unsubscribe()

	printlnFn(a.out, "Welcome to brainbox (type 'help' for commands)")
	runREPL(ctx, a, a.status, a.reader, a.out)
}

// Close releases the database. Every change is already persisted.
func (a *App) Close() error {
	return a.client.Close()
}

func (a *App) session(ctx context.Context) *auth.Session {
	sess, err := a.client.Auth().GetSession(ctx)
	if err != nil {
		a.log.Warn(ctx, "reading session", "err", err)
		return nil
	}
	return sess
}

func (a *App) isLoggedIn(ctx context.Context) bool {
	return a.session(ctx) != nil
}

func (a *App) status(ctx context.Context) string {
	if sess := a.session(ctx); sess != nil {
		return "(" + sess.User.Email + ")"
	}
	return ""
}

// userID returns the signed-in user's id.
func (a *App) userID(ctx context.Context) (string, error) {
	sess := a.session(ctx)
	if sess == nil {
		return "", errNotLoggedIn
	}
	return sess.User.ID, nil
}

// describe renders err for the user.
func describe(err error) string {
	var e *common.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
