// Package types defines the core data model for the recall memory store:
// flexible-schema memory records, typed relationships between them, query
// value objects, search results, and the shared error taxonomy.
//
// Records carry an open field map of tagged variant values (see FieldValue)
// rather than reflection-based dynamic typing, so facet filters and quality
// validators can operate on field values explicitly.
package types
