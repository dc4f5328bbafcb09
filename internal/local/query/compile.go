package query

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

const (
	columnID        = "id"
	columnCreatedAt = "created_at"
	columnUpdatedAt = "updated_at"
)

type statement struct {
	sql  string
	args []any
	ids  []any // insert only, in row order
}

// stamps supplies generated values for a compilation.
type stamps struct {
	now   string
	newID func() string
}

func checkIdent(kind, name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("invalid %s name %q", kind, name)
	}
	return nil
}

// compile renders the builder into exactly one statement.
func (b *Builder) compile(st stamps) (statement, error) {
	if b.err != nil {
		return statement{}, b.err
	}
	if err := checkIdent("table", b.table); err != nil {
		return statement{}, err
	}

	switch b.op.Kind {
	case KindInsert:
		return b.compileInsert(st)
	case KindUpdate:
		return b.compileUpdate(st)
	case KindDelete:
		return b.compileDelete()
	default:
		return b.compileSelect()
	}
}

func (b *Builder) compileSelect() (statement, error) {
	proj, err := projection(b.op.Columns)
	if err != nil {
		return statement{}, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(proj)
	sb.WriteString(" FROM ")
	sb.WriteString(b.table)

	args, err := b.writeWhere(&sb)
	if err != nil {
		return statement{}, err
	}
	if b.order != nil {
		if err := checkIdent("column", b.order.column); err != nil {
			return statement{}, err
		}
		dir := "DESC"
		if b.order.ascending {
			dir = "ASC"
		}
		sb.WriteString(" ORDER BY " + b.order.column + " " + dir)
	}
	if b.limit > 0 {
		sb.WriteString(" LIMIT " + strconv.Itoa(b.limit))
	}
	return statement{sql: sb.String(), args: args}, nil
}

func projection(cols string) (string, error) {
	if strings.TrimSpace(cols) == "" {
		return "*", nil
	}
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p != "*" {
			if err := checkIdent("column", p); err != nil {
				return "", err
			}
		}
		parts[i] = p
	}
	return strings.Join(parts, ", "), nil
}

func (b *Builder) compileInsert(st stamps) (statement, error) {
	if len(b.op.Rows) == 0 {
		return statement{}, fmt.Errorf("insert needs at least one row")
	}

	rows := make([]Row, len(b.op.Rows))
	for i, r := range b.op.Rows {
		row := make(Row, len(r)+3)
		for k, v := range r {
			row[k] = v
		}
		if absent(row[columnID]) {
			row[columnID] = st.newID()
		}
		if absent(row[columnCreatedAt]) {
			row[columnCreatedAt] = st.now
		}
		if absent(row[columnUpdatedAt]) {
			row[columnUpdatedAt] = row[columnCreatedAt]
		}
		rows[i] = row
	}

	cols := sortedKeys(rows[0])
	for _, c := range cols {
		if err := checkIdent("column", c); err != nil {
			return statement{}, err
		}
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO " + b.table + " (" + strings.Join(cols, ", ") + ") VALUES ")
	ph := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	args := make([]any, 0, len(rows)*len(cols))
	ids := make([]any, 0, len(rows))
	for i, row := range rows {
		ids = append(ids, row[columnID])
		if len(row) != len(cols) {
			return statement{}, fmt.Errorf("insert row %d has a different column set than row 0", i)
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(ph)
		for _, c := range cols {
			v, ok := row[c]
			if !ok {
				return statement{}, fmt.Errorf("insert row %d has no column %q", i, c)
			}
			enc, err := encodeColumn(c, v)
			if err != nil {
				return statement{}, err
			}
			args = append(args, enc)
		}
	}
	sb.WriteString(" RETURNING *")
	return statement{sql: sb.String(), args: args, ids: ids}, nil
}

func (b *Builder) compileUpdate(st stamps) (statement, error) {
	cols := make([]string, 0, len(b.op.Patch)+1)
	for _, c := range sortedKeys(b.op.Patch) {
		if c == columnUpdatedAt {
			continue
		}
		if (c == columnID || c == columnCreatedAt) && absent(b.op.Patch[c]) {
			continue
		}
		if err := checkIdent("column", c); err != nil {
			return statement{}, err
		}
		cols = append(cols, c)
	}

	var sb strings.Builder
	sb.WriteString("UPDATE " + b.table + " SET ")
	args := make([]any, 0, len(cols)+1)
	for _, c := range cols {
		enc, err := encodeColumn(c, b.op.Patch[c])
		if err != nil {
			return statement{}, err
		}
		sb.WriteString(c + " = ?, ")
		args = append(args, enc)
	}
	sb.WriteString(columnUpdatedAt + " = ?")
	args = append(args, st.now)

	where, err := b.writeWhere(&sb)
	if err != nil {
		return statement{}, err
	}
	sb.WriteString(" RETURNING *")
	return statement{sql: sb.String(), args: append(args, where...)}, nil
}

func (b *Builder) compileDelete() (statement, error) {
	var sb strings.Builder
	sb.WriteString("DELETE FROM " + b.table)
	args, err := b.writeWhere(&sb)
	if err != nil {
		return statement{}, err
	}
	sb.WriteString(" RETURNING *")
	return statement{sql: sb.String(), args: args}, nil
}

// writeWhere appends the AND-ed predicates in call order.
func (b *Builder) writeWhere(sb *strings.Builder) ([]any, error) {
	if len(b.preds) == 0 {
		return nil, nil
	}
	var args []any
	terms := make([]string, 0, len(b.preds))
	for _, p := range b.preds {
		term, targs, err := compilePredicate(p)
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
		args = append(args, targs...)
	}
	sb.WriteString(" WHERE " + strings.Join(terms, " AND "))
	return args, nil
}

var comparators = map[Operator]string{
	OpEq:  "=",
	OpNeq: "!=",
	OpGt:  ">",
	OpGte: ">=",
	OpLt:  "<",
	OpLte: "<=",
}

func compilePredicate(p Predicate) (string, []any, error) {
	if err := checkIdent("column", p.Column); err != nil {
		return "", nil, err
	}
	col := p.Column

	switch p.Op {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte:
		v, err := encodeColumn(col, p.Value)
		if err != nil {
			return "", nil, err
		}
		return col + " " + comparators[p.Op] + " ?", []any{v}, nil

	case OpLike, OpILike:
		return col + " LIKE ?", []any{p.Value}, nil

	case OpIs:
		if p.Value == nil {
			return col + " IS NULL", nil, nil
		}
		v, err := bindValue(p.Value)
		if err != nil {
			return "", nil, err
		}
		return col + " = ?", []any{v}, nil

	case OpIn:
		list, _ := p.Value.([]any)
		if len(list) == 0 {
			return "0 = 1", nil, nil
		}
		args := make([]any, len(list))
		for i, e := range list {
			v, err := bindValue(e)
			if err != nil {
				return "", nil, err
			}
			args[i] = v
		}
		ph := strings.TrimSuffix(strings.Repeat("?, ", len(list)), ", ")
		return col + " IN (" + ph + ")", args, nil

	case OpContains:
		if s, ok := p.Value.(string); ok {
			return col + ` LIKE ? ESCAPE '\'`, []any{"%" + escapeLike(s) + "%"}, nil
		}
		list := flatten(p.Value)
		if len(list) == 0 {
			return "1 = 1", nil, nil
		}
		parts := make([]string, len(list))
		args := make([]any, len(list))
		for i, e := range list {
			quoted, err := marshal(e)
			if err != nil {
				return "", nil, err
			}
			parts[i] = col + ` LIKE ? ESCAPE '\'`
			args[i] = "%" + escapeLike(quoted) + "%"
		}
		if len(parts) == 1 {
			return parts[0], args, nil
		}
		return "(" + strings.Join(parts, " AND ") + ")", args, nil
	}
	return "", nil, fmt.Errorf("unsupported operator %q", p.Op)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern with ESCAPE '\'.
func escapeLike(s string) string { return likeEscaper.Replace(s) }

// zeroTime is how an unset time.Time field reads once a struct went through
// JSON.
const zeroTime = "0001-01-01T00:00:00Z"

// absent reports whether v leaves a generated column to the translator: nil,
// an empty string, or a zero time, as a struct without omitempty carries them.
func absent(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == "" || x == zeroTime
	case time.Time:
		return x.IsZero()
	case *time.Time:
		return x == nil || x.IsZero()
	}
	return false
}

func sortedKeys(r Row) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
