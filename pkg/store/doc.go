// Package store provides durable storage for memory records and the typed
// relationship edges between them.
//
// Two backends are included: a Badger-backed store for production use and an
// in-memory store for tests and throwaway sessions. Both give the same
// semantics: optimistic per-record conflict detection, idempotent linking,
// and patch updates that never bump modification time without a real change.
package store
