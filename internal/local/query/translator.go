package query

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dmitrijs2005/brainbox/internal/common"
	"github.com/dmitrijs2005/brainbox/internal/local/engine"
	"github.com/dmitrijs2005/brainbox/internal/local/persist"
	"github.com/dmitrijs2005/brainbox/internal/logging"
	"github.com/dmitrijs2005/brainbox/internal/metrics"
	"github.com/dmitrijs2005/brainbox/internal/timex"
	"github.com/google/uuid"
)

// Runner executes a callback under the engine's single-writer lock.
type Runner interface {
	Run(ctx context.Context, fn func(ctx context.Context, c engine.Conn) error) error
}

// Saver flushes the database image after a mutation.
type Saver interface {
	Save(ctx context.Context, src persist.Exporter) error
}

// Translator creates builders bound to one engine and one persistence
// bridge.
type Translator struct {
	eng   Runner
	saver Saver
	clock *timex.Clock
	newID func() string
	log   logging.Logger
}

// Option customizes a Translator.
type Option func(*Translator)

// WithIDGenerator replaces the UUID generator used for inserted rows.
func WithIDGenerator(fn func() string) Option {
	return func(t *Translator) { t.newID = fn }
}

func NewTranslator(eng Runner, saver Saver, clock *timex.Clock, log logging.Logger, opts ...Option) *Translator {
	if clock == nil {
		clock = timex.NewClock(nil)
	}
	if log == nil {
		log = logging.Nop()
	}
	t := &Translator{
		eng:   eng,
		saver: saver,
		clock: clock,
		newID: uuid.NewString,
		log:   log.With("component", "query"),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// From starts a builder on table with a select-all operation pending.
func (t *Translator) From(table string) *Builder {
	return &Builder{tr: t, table: table, op: Operation{Kind: KindSelect, Columns: "*"}}
}

// Execute compiles and runs the statement. Mutations flush the database
// image before the engine lock is released; a failed flush is reported in
// Err even though the in-memory change stays applied.
//
// Cancelling ctx does not abort a started operation: the statement and its
// flush always run to completion together.
func (b *Builder) Execute(ctx context.Context) Result {
	ctx = context.WithoutCancel(ctx)
	tr := b.tr
	kind := b.op.Kind
	var (
		rows []Row
		ids  []any
	)

	err := tr.eng.Run(ctx, func(ctx context.Context, c engine.Conn) error {
		st, err := b.compile(stamps{now: tr.clock.Stamp(), newID: tr.newID})
		if err != nil {
			return common.NewError(common.KindInvalid, "", err)
		}
		ids = st.ids
		tr.log.Debug(ctx, "executing statement", "table", b.table, "op", kind.String(), "sql", st.sql)

		rows, err = fetch(ctx, c, st)
		if err != nil {
			return classify(kind, b.table, err)
		}
		if kind == KindSelect {
			return nil
		}
		if tr.saver == nil {
			return nil
		}
		return tr.saver.Save(ctx, c)
	})

	if err != nil {
		metrics.StatementsTotal.WithLabelValues(kind.String(), metrics.Fail).Inc()
		tr.log.Warn(ctx, "statement failed", "table", b.table, "op", kind.String(), "err", err)
		return Result{Err: err}
	}
	metrics.StatementsTotal.WithLabelValues(kind.String(), metrics.Ok).Inc()

	for _, r := range rows {
		decodeRow(ctx, tr.log, r)
	}
	if kind == KindInsert {
		rows = inInsertOrder(rows, ids)
	}
	return b.shapeResult(rows)
}

func fetch(ctx context.Context, c engine.Conn, st statement) ([]Row, error) {
	rs, err := c.QueryContext(ctx, st.sql, st.args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	return scanRows(rs)
}

func scanRows(rs *sql.Rows) ([]Row, error) {
	cols, err := rs.Columns()
	if err != nil {
		return nil, err
	}
	out := []Row{}
	for rs.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			v := vals[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[c] = v
		}
		out = append(out, row)
	}
	return out, rs.Err()
}

// classify maps an engine error onto the error taxonomy. A select against a
// missing table is not an error: it reads as an empty table.
func classify(kind OpKind, table string, err error) error {
	var ce *common.Error
	switch {
	case errors.As(err, &ce):
		return err
	case engine.IsNoSuchTable(err) && kind == KindSelect:
		return nil
	case engine.IsNoSuchTable(err):
		return common.NewError(common.KindNotFound, "relation "+table+" does not exist", err)
	case engine.IsConstraint(err):
		return common.NewError(common.KindConstraint, "", err)
	default:
		return common.NewError(common.KindInternal, "", err)
	}
}

// inInsertOrder sorts returned rows to match the order rows were given in.
func inInsertOrder(rows []Row, ids []any) []Row {
	if len(rows) < 2 {
		return rows
	}
	pos := make(map[any]int, len(rows))
	for i, r := range rows {
		pos[r[columnID]] = i
	}
	out := make([]Row, 0, len(rows))
	seen := make(map[int]bool, len(rows))
	for _, id := range ids {
		if i, ok := pos[id]; ok && !seen[i] {
			out = append(out, rows[i])
			seen[i] = true
		}
	}
	for i, r := range rows {
		if !seen[i] {
			out = append(out, r)
		}
	}
	return out
}

func (b *Builder) shapeResult(rows []Row) Result {
	switch b.shape {
	case shapeSingle:
		switch len(rows) {
		case 1:
			return Result{Data: rows[0]}
		case 0:
			return Result{Err: common.NewError(common.KindNotFound, "expected a single row, got none", common.ErrNotFound)}
		default:
			return Result{Err: common.NewError(common.KindInvalid, "expected a single row, got several", nil)}
		}
	case shapeMaybeSingle:
		switch len(rows) {
		case 0:
			return Result{}
		case 1:
			return Result{Data: rows[0]}
		default:
			return Result{Err: common.NewError(common.KindInvalid, "expected at most one row, got several", nil)}
		}
	}
	if rows == nil {
		rows = []Row{}
	}
	return Result{Data: rows}
}
