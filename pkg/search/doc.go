// Package search implements the retrieval and ranking core: query
// expansion, hybrid merging of lexical and semantic provider results,
// context-aware score boosting, and faceted/temporal filtering with
// ordering and pagination.
//
// # Pipeline
//
// A query flows through the Engine as:
//
//	expand -> fan out to lexical + semantic providers -> merge -> boost
//	       -> filter/order/paginate -> touch access counters
//
// The two provider lookups run concurrently and the merge degrades to the
// surviving side when one provider fails or times out; only both sides
// failing fails the query. This is a deliberate availability-over-
// completeness tradeoff.
//
// # Merge strategies
//
// Three strategies are selectable by name:
//   - linear: weighted sum of normalized lexical score and similarity
//   - reciprocal: rank fusion, 1/(k+rank) per side, robust to
//     incomparable score scales
//   - multiplicative: weighted geometric combination
//
// A record found by both providers gets the both-found boost after the
// strategy computation, then scores are re-clamped to [0,1].
package search
