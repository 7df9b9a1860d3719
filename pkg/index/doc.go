// Package index defines the pluggable search provider interfaces consumed
// by the hybrid search engine, together with two embedded implementations:
// a SQLite FTS5 lexical index and a chromem-go vector index.
//
// Providers can be wrapped in circuit breakers (see WrapLexical and
// WrapSemantic) so a flapping backend degrades hybrid search to the
// surviving side instead of failing every query.
//
// Embedding computation is out of scope: the semantic index takes a
// caller-supplied chromem.EmbeddingFunc and never computes vectors itself.
package index
