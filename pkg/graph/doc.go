// Package graph walks the typed relationship edges between memory records.
//
// Traversal is breadth-first from a seed record, so every discovery is
// reported at its shortest distance from the seed. Cycles terminate via a
// visited set and the depth bound is clamped to a small range to keep
// neighborhood queries cheap on dense graphs.
package graph
