// Package records is the local record store: the durable copy of every
// ServiceRecord the client knows about, keyed by record id.
//
// # Contract
//
// PutAll replaces the whole stored set atomically. The old rows are deleted
// and the new ones inserted in chunks inside one transaction, so a failing
// chunk rolls everything back and readers keep seeing the previous set.
//
// Records without an id or start date-time are never persisted. They are
// skipped and logged as data-integrity warnings.
//
// GetAll always returns records in their total shape (see models.Normalize).
// Rows that cannot be decoded are dropped from the result and logged; they
// never fail the read.
//
// Key Types
//
//   - type Repository: interface used by the sync engine
//   - type SQLiteRepository: SQLite implementation
//   - type MemoryRepository: in-process implementation used as a fallback
//     when the database cannot be opened, and in tests
package records
