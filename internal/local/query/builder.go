package query

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Row is one table row keyed by column name.
type Row map[string]any

// OpKind names the pending operation of a Builder.
type OpKind int

const (
	KindSelect OpKind = iota
	KindInsert
	KindUpdate
	KindDelete
)

func (k OpKind) String() string {
	switch k {
	case KindInsert:
		return "insert"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	default:
		return "select"
	}
}

// Operation is the tagged union of the four statement kinds. Only the field
// matching Kind is meaningful.
type Operation struct {
	Kind    OpKind
	Columns string // select projection, verbatim
	Rows    []Row  // insert
	Patch   Row    // update
}

// Operator is a predicate operator token.
type Operator string

const (
	OpEq       Operator = "eq"
	OpNeq      Operator = "neq"
	OpGt       Operator = "gt"
	OpGte      Operator = "gte"
	OpLt       Operator = "lt"
	OpLte      Operator = "lte"
	OpLike     Operator = "like"
	OpILike    Operator = "ilike"
	OpIs       Operator = "is"
	OpIn       Operator = "in"
	OpContains Operator = "contains"
)

// Predicate is one (column, operator, value) filter.
type Predicate struct {
	Column string
	Op     Operator
	Value  any
}

type shape int

const (
	shapeMany shape = iota
	shapeSingle
	shapeMaybeSingle
)

type ordering struct {
	column    string
	ascending bool
}

// Builder accumulates one statement against one table. Builders are not safe
// for concurrent use; create one per query.
type Builder struct {
	tr    *Translator
	table string
	op    Operation
	preds []Predicate
	order *ordering
	limit int
	shape shape
	err   error
}

// Select sets a select operation. With no arguments the projection is "*";
// several arguments are joined with ", ".
func (b *Builder) Select(columns ...string) *Builder {
	proj := "*"
	if len(columns) > 0 {
		proj = strings.Join(columns, ", ")
	}
	b.op = Operation{Kind: KindSelect, Columns: proj}
	return b
}

// Insert sets an insert of one row or a list of rows. v may be a Row, a
// map[string]any, a slice of those, or any value whose JSON form is an
// object or an array of objects.
func (b *Builder) Insert(v any) *Builder {
	rows, err := toRows(v)
	if err != nil {
		b.fail(err)
		return b
	}
	b.op = Operation{Kind: KindInsert, Rows: rows}
	return b
}

// Update sets an update with the given partial row. updated_at is always
// set to the current time, replacing any value in the patch.
func (b *Builder) Update(v any) *Builder {
	rows, err := toRows(v)
	if err == nil && len(rows) != 1 {
		err = fmt.Errorf("update expects a single object, got %d", len(rows))
	}
	if err != nil {
		b.fail(err)
		return b
	}
	b.op = Operation{Kind: KindUpdate, Patch: rows[0]}
	return b
}

// Delete sets a delete of every row matching the predicates.
func (b *Builder) Delete() *Builder {
	b.op = Operation{Kind: KindDelete}
	return b
}

func (b *Builder) filter(column string, op Operator, value any) *Builder {
	b.preds = append(b.preds, Predicate{Column: column, Op: op, Value: value})
	return b
}

func (b *Builder) Eq(column string, value any) *Builder  { return b.filter(column, OpEq, value) }
func (b *Builder) Neq(column string, value any) *Builder { return b.filter(column, OpNeq, value) }
func (b *Builder) Gt(column string, value any) *Builder  { return b.filter(column, OpGt, value) }
func (b *Builder) Gte(column string, value any) *Builder { return b.filter(column, OpGte, value) }
func (b *Builder) Lt(column string, value any) *Builder  { return b.filter(column, OpLt, value) }
func (b *Builder) Lte(column string, value any) *Builder { return b.filter(column, OpLte, value) }

// Like matches a SQL LIKE pattern.
func (b *Builder) Like(column, pattern string) *Builder { return b.filter(column, OpLike, pattern) }

// ILike is meant to be case-insensitive. SQLite's LIKE already ignores ASCII
// case, so it compiles exactly like Like; non-ASCII letters stay
// case-sensitive.
func (b *Builder) ILike(column, pattern string) *Builder { return b.filter(column, OpILike, pattern) }

// Is compiles to IS NULL for a nil value and to equality otherwise.
func (b *Builder) Is(column string, value any) *Builder { return b.filter(column, OpIs, value) }

// In matches any element of values, which may be a slice or a single value.
func (b *Builder) In(column string, values any) *Builder {
	return b.filter(column, OpIn, flatten(values))
}

// Contains is a substring match on the stored text; % and _ in value match
// literally. For a list value each element must appear (JSON-quoted) in the
// serialized column, which approximates containment for tag lists.
func (b *Builder) Contains(column string, value any) *Builder {
	return b.filter(column, OpContains, value)
}

// Order sorts by a single column; the last call wins.
func (b *Builder) Order(column string, ascending bool) *Builder {
	b.order = &ordering{column: column, ascending: ascending}
	return b
}

// Limit caps the number of selected rows. n <= 0 removes the cap.
func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// Single expects exactly one row; zero or several rows are an error.
func (b *Builder) Single() *Builder {
	b.shape = shapeSingle
	return b
}

// MaybeSingle expects zero or one row; zero rows yield nil Data.
func (b *Builder) MaybeSingle() *Builder {
	b.shape = shapeMaybeSingle
	return b
}

// Operation returns the pending operation.
func (b *Builder) Operation() Operation { return b.op }

// Predicates returns the accumulated predicates in call order.
func (b *Builder) Predicates() []Predicate {
	return append([]Predicate(nil), b.preds...)
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func toRows(v any) ([]Row, error) {
	switch x := v.(type) {
	case nil:
		return nil, fmt.Errorf("no rows given")
	case Row:
		return []Row{x}, nil
	case map[string]any:
		return []Row{x}, nil
	case []Row:
		return x, nil
	case []map[string]any:
		rows := make([]Row, len(x))
		for i, m := range x {
			rows[i] = m
		}
		return rows, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode rows: %w", err)
	}
	var one Row
	if err := json.Unmarshal(raw, &one); err == nil && one != nil {
		return []Row{one}, nil
	}
	var many []Row
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, fmt.Errorf("rows must be an object or a list of objects")
	}
	return many, nil
}

func flatten(v any) []any {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return []any{nil}
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{v}
	}
	if _, isBytes := v.([]byte); isBytes {
		return []any{v}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
