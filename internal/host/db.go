// db.go wires github.com/lib/pq behind native("db.query", dsn, sql, ...),
// grounded on the teacher's one-host-service-per-file pattern in
// internal/runtime/builtins/{fs,http,net} (each a thin, argument-validated
// wrapper over a single external system, registered into the same table
// every other native lives in). Connections aren't pooled across calls:
// scripts that need a persistent connection should be short-lived CLI
// invocations, the same one-shot use the teacher's own builtins assume for
// fs/http/net access.
package host

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"lumen/internal/value"
)

// dbQuery backs native("db.query", dsn, sql, args...). Each row becomes a
// tuple of column values: a non-NULL column round-trips as text (Lumen has
// no numeric-cast convention for arbitrary SQL types, so text plays the
// role `as str` plays for every other value) and a SQL NULL becomes null;
// the result is a list of those row-tuples.
func dbQuery(args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.Null, fmt.Errorf("db.query expects at least 2 arguments (dsn, sql), got %d", len(args))
	}
	dsn, err := stringArg(args, 0, "db.query")
	if err != nil {
		return value.Null, err
	}
	query, err := stringArg(args, 1, "db.query")
	if err != nil {
		return value.Null, err
	}
	params := make([]interface{}, len(args)-2)
	for i, a := range args[2:] {
		params[i] = a.String()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return value.Null, fmt.Errorf("db.query: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(query, params...)
	if err != nil {
		return value.Null, fmt.Errorf("db.query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return value.Null, fmt.Errorf("db.query: %w", err)
	}

	var out []value.Value
	for rows.Next() {
		scanTargets := make([]interface{}, len(cols))
		scanValues := make([]sql.NullString, len(cols))
		for i := range scanValues {
			scanTargets[i] = &scanValues[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return value.Null, fmt.Errorf("db.query: %w", err)
		}
		tuple := make([]value.Value, len(cols))
		for i, sv := range scanValues {
			if sv.Valid {
				tuple[i] = value.Str(value.NewStr(sv.String))
			} else {
				tuple[i] = value.Null
			}
		}
		out = append(out, value.Tuple(value.NewTuple(tuple)))
	}
	if err := rows.Err(); err != nil {
		return value.Null, fmt.Errorf("db.query: %w", err)
	}
	return value.List(value.NewList(out)), nil
}
