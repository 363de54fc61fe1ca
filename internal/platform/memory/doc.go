// Package memory provides in-memory implementations of the store interfaces.
// Tasks live in an append-only arena addressed by index, with secondary
// indices on (user, exec_date) and (user, group, cycle). It backs the
// "memory" database driver and the service and API tests.
package memory
