// Package storage persists the reply journal and the log of admitted
// message keys, so a restart can rebuild duplicate suppression.
//
// Drivers:
//   - "file": JSON Lines journals plus a compacted seen-key snapshot
//   - "sqlite": a single SQLite database (modernc.org/sqlite, WAL)
//
// An empty driver or "none" disables persistence.
package storage
