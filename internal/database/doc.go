// Package database provides SQLite-based storage for passivescan.
//
// AuditDB keeps every audit run as a JSON report keyed by page URL, so
// later runs can be compared against earlier ones. The database is a single
// file opened through modernc.org/sqlite, which needs no cgo.
package database
