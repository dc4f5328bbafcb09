package query

import (
	"encoding/json"
	"fmt"
)

// Result is the outcome of Execute. On success Data is []Row, or a single
// Row for Single and MaybeSingle; on failure Err is set and Data is nil.
// MaybeSingle matching nothing is the one success with nil Data.
type Result struct {
	Data any
	Err  error
}

// Rows returns Data as a list. A single row is wrapped; nil yields none.
func (r Result) Rows() []Row {
	switch d := r.Data.(type) {
	case []Row:
		return d
	case Row:
		return []Row{d}
	}
	return nil
}

// Row returns Data as one row, or nil.
func (r Result) Row() Row {
	switch d := r.Data.(type) {
	case Row:
		return d
	case []Row:
		if len(d) > 0 {
			return d[0]
		}
	}
	return nil
}

// Scan decodes Data into dst through its JSON form, so dst may be a model
// struct, a slice of them, or any JSON-compatible value. It returns Err when
// the statement failed.
func (r Result) Scan(dst any) error {
	if r.Err != nil {
		return r.Err
	}
	if r.Data == nil {
		return nil
	}
	raw, err := json.Marshal(r.Data)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
