// Package store holds the SQL for the application's own tables. Every
// function takes a db.Querier so it can run on the pool or inside a
// transaction. Lookups return nil, nil when the row does not exist.
package store

import "strings"

type scanner interface {
	Scan(dest ...any) error
}

// prefixed qualifies a comma-separated column list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
