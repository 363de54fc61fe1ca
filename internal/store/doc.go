// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the application's core logic. The SQL backends live in
// internal/platform/sqlstore and the in-memory backend in
// internal/platform/memory.
package store
