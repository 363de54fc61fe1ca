// Package sqlstore provides database/sql implementations of the interfaces in
// internal/store. The same queries run against PostgreSQL through pgx and
// against SQLite through go-sqlite3; a Dialect rewrites placeholders where
// the two differ. Schema changes ship as goose migrations embedded per
// dialect.
package sqlstore
