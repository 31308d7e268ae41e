// Package storage provides cassette.Storage implementations.
//
//   - FileStorage: one YAML file per cassette, human readable and diffable.
//   - SQLiteStorage: many cassettes in one SQLite database.
//   - MemoryStorage: in-memory storage for tests.
//
// All implementations fully replace a cassette on Save and report I/O
// failures as *cassette.StorageError. Loading a cassette that does not exist
// returns no interactions and no error.
package storage
