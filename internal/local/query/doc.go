// Package query translates chained builder calls into single SQL statements
// against the embedded engine, mimicking a REST-over-SQL client.
//
//	res := tr.From("items").
//	    Select().
//	    Eq("user_id", uid).
//	    Contains("tags", []string{"go"}).
//	    Order("created_at", false).
//	    Limit(20).
//	    Execute(ctx)
//	if res.Err != nil { ... }
//	var items []models.Item
//	_ = res.Scan(&items)
//
// A Builder holds exactly one pending operation. Select, Insert, Update and
// Delete each replace whatever operation was set before; they never compose.
// Predicates accumulate in call order and are AND-ed. Nothing runs until
// Execute, which compiles the builder once, runs the statement under the
// engine lock and, for mutations, flushes the database image before
// releasing it.
//
// Execute never panics and never returns a bare error: the Result carries
// either Data or an Err of type *common.Error.
//
// Serialized columns (see codec.go) are the only place where the on-disk
// representation of structured values is known.
package query
