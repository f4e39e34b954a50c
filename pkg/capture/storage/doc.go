// Package storage archives exported traffic records so they can be queried
// after the CSV has been consumed.
//
// Two backends implement Storage. SQLiteStorage supports both the pure-Go
// modernc.org/sqlite driver ("sqlite", the default) and the cgo
// github.com/mattn/go-sqlite3 driver ("sqlite3"); MemoryStorage is for
// tests and single-run tooling. Records are keyed by id, so re-storing a
// batch is harmless.
package storage
