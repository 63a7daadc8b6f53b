// Package storage persists the delivery log: one record per terminal
// dispatch outcome.
//
// Drivers:
//   - file: JSON Lines appended to <path>.deliveries.jsonl
//   - sqlite: a SQLite database at <path> (pure Go driver)
package storage
