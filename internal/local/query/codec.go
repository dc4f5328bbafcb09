package query

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/dmitrijs2005/brainbox/internal/logging"
	"github.com/dmitrijs2005/brainbox/internal/metrics"
	"github.com/dmitrijs2005/brainbox/internal/timex"
)

type columnKind int

const (
	stringList columnKind = iota + 1
	vector
)

// serializedColumns lists columns holding structured values as JSON text.
// Values are encoded on every write and decoded on every read.
var serializedColumns = map[string]columnKind{
	"tags":      stringList,
	"embedding": vector,
}

// encodeColumn converts v into its stored form for column.
func encodeColumn(column string, v any) (any, error) {
	switch serializedColumns[column] {
	case stringList:
		return encodeStringList(column, v)
	case vector:
		return encodeVector(column, v)
	default:
		return bindValue(v)
	}
}

func encodeStringList(column string, v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return "[]", nil
	case string:
		var probe []string
		if err := json.Unmarshal([]byte(x), &probe); err != nil {
			return nil, fmt.Errorf("column %s expects a list of strings", column)
		}
		return x, nil
	case []string:
		if x == nil {
			return "[]", nil
		}
		return marshal(x)
	}

	list := flatten(v)
	out := make([]string, 0, len(list))
	for _, e := range list {
		s, ok := e.(string)
		if !ok {
			return nil, fmt.Errorf("column %s expects a list of strings, got element %T", column, e)
		}
		out = append(out, s)
	}
	return marshal(out)
}

func encodeVector(column string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok {
		var probe []float64
		if err := json.Unmarshal([]byte(s), &probe); err != nil {
			return nil, fmt.Errorf("column %s expects a list of numbers", column)
		}
		return s, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("column %s expects a list of numbers, got %T", column, v)
	}
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		return nil, nil
	}
	out := make([]float64, rv.Len())
	for i := range out {
		f, ok := toFloat(rv.Index(i).Interface())
		if !ok {
			return nil, fmt.Errorf("column %s expects a list of numbers, got element %T", column, rv.Index(i).Interface())
		}
		out[i] = f
	}
	return marshal(out)
}

// bindValue converts a plain column value into something the driver binds.
func bindValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, []byte, bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, float32, float64:
		return v, nil
	case uint64:
		return int64(x), nil
	case time.Time:
		return timex.Format(x), nil
	case *time.Time:
		if x == nil {
			return nil, nil
		}
		return timex.Format(*x), nil
	case fmt.Stringer:
		return x.String(), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		return bindValue(rv.Elem().Interface())
	case reflect.String:
		return rv.String(), nil
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct:
		return marshal(v)
	}
	return v, nil
}

func marshal(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

// decodeRow replaces serialized columns of row with their structured form.
// A malformed value never fails the read: it degrades to the column default
// and is logged and counted.
func decodeRow(ctx context.Context, log logging.Logger, row Row) {
	for column, kind := range serializedColumns {
		raw, ok := row[column]
		if !ok {
			continue
		}
		v, err := decodeColumn(kind, raw)
		if err != nil {
			metrics.MalformedColumns.WithLabelValues(column).Inc()
			log.Warn(ctx, "malformed serialized column", "column", column, "id", row["id"], "err", err)
		}
		row[column] = v
	}
}

func decodeColumn(kind columnKind, raw any) (any, error) {
	var text []byte
	switch x := raw.(type) {
	case nil:
	case string:
		text = []byte(x)
	case []byte:
		text = x
	default:
		return defaultFor(kind), fmt.Errorf("unexpected stored type %T", raw)
	}

	switch kind {
	case stringList:
		out := []string{}
		if len(text) == 0 {
			return out, nil
		}
		if err := json.Unmarshal(text, &out); err != nil || out == nil {
			return []string{}, err
		}
		return out, nil
	default:
		if len(text) == 0 {
			return []float64(nil), nil
		}
		var out []float64
		if err := json.Unmarshal(text, &out); err != nil {
			return []float64(nil), err
		}
		return out, nil
	}
}

func defaultFor(kind columnKind) any {
	if kind == stringList {
		return []string{}
	}
	return []float64(nil)
}
