package search

import (
	"sort"
	"strings"
	"time"

	"github.com/soundprediction/recall/pkg/types"
)

// candidate pairs a hydrated record with its fused score for the
// post-merge pipeline stages.
type candidate struct {
	rec       *types.Record
	score     float64
	matchedBy types.MatchSource
	fragments []string
}

// matchesFacets reports whether rec satisfies the query's structural
// filters: type set, custom field equality, and the resolved modification
// date window. Wildcard and empty filters pass everything.
func matchesFacets(rec *types.Record, q *types.Query, window *resolvedRange) bool {
	if len(q.Types) > 0 && !containsType(q.Types, rec.Type) {
		return false
	}
	for name, want := range q.Facets {
		got, ok := rec.Fields[name]
		if !ok || !got.Equal(want) {
			return false
		}
	}
	if window != nil && !window.contains(rec.ModifiedAt) {
		return false
	}
	return true
}

func containsType(set []string, t string) bool {
	for _, s := range set {
		if s == types.Wildcard || strings.EqualFold(s, t) {
			return true
		}
	}
	return false
}

// resolvedRange is a DateRange with relative expressions already bound to
// concrete instants. Resolution happens once per query so every candidate
// is judged against the same window.
type resolvedRange struct {
	after  time.Time
	before time.Time
}

func resolveRange(dr *types.DateRange, now time.Time) (*resolvedRange, error) {
	if dr == nil {
		return nil, nil
	}
	after, before, err := dr.Resolve(now)
	if err != nil {
		return nil, err
	}
	if after.IsZero() && before.IsZero() {
		return nil, nil
	}
	return &resolvedRange{after: after, before: before}, nil
}

func (r *resolvedRange) contains(t time.Time) bool {
	if !r.after.IsZero() && t.Before(r.after) {
		return false
	}
	if !r.before.IsZero() && t.After(r.before) {
		return false
	}
	return true
}

// sortCandidates orders cs in place. Score ordering is descending with
// modification time as the tiebreaker; the time orderings are descending
// (newest first). A custom field ordering uses the cross-kind total order
// on field values, ascending, with records lacking the field sorted last.
func sortCandidates(cs []candidate, order string) {
	switch order {
	case "", types.OrderScore:
		sort.SliceStable(cs, func(i, j int) bool {
			if cs[i].score != cs[j].score {
				return cs[i].score > cs[j].score
			}
			return cs[i].rec.ModifiedAt.After(cs[j].rec.ModifiedAt)
		})
	case types.OrderCreated:
		sort.SliceStable(cs, func(i, j int) bool {
			return cs[i].rec.CreatedAt.After(cs[j].rec.CreatedAt)
		})
	case types.OrderModified:
		sort.SliceStable(cs, func(i, j int) bool {
			return cs[i].rec.ModifiedAt.After(cs[j].rec.ModifiedAt)
		})
	case types.OrderType:
		sort.SliceStable(cs, func(i, j int) bool {
			if cs[i].rec.Type != cs[j].rec.Type {
				return cs[i].rec.Type < cs[j].rec.Type
			}
			return cs[i].score > cs[j].score
		})
	default:
		field := order
		sort.SliceStable(cs, func(i, j int) bool {
			a, aok := cs[i].rec.Fields[field]
			b, bok := cs[j].rec.Fields[field]
			switch {
			case aok && !bok:
				return true
			case !aok && bok:
				return false
			case !aok && !bok:
				return cs[i].score > cs[j].score
			}
			if c := a.Compare(b); c != 0 {
				return c < 0
			}
			return cs[i].score > cs[j].score
		})
	}
}

// paginate slices cs to the requested page. The returned total is the
// filtered count before paging so callers can report it alongside a
// partial page. A non-positive limit means no cap.
func paginate(cs []candidate, limit, offset int) (page []candidate, total int) {
	total = len(cs)
	if offset < 0 {
		offset = 0
	}
	if offset >= len(cs) {
		return nil, total
	}
	cs = cs[offset:]
	if limit > 0 && limit < len(cs) {
		cs = cs[:limit]
	}
	return cs, total
}
