package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/soundprediction/recall/pkg/store"
	"github.com/soundprediction/recall/pkg/types"
	"github.com/soundprediction/recall/pkg/utils"
)

// Depth bounds for neighborhood traversal. Requests outside the range are
// clamped, not rejected.
const (
	MinDepth     = 1
	MaxDepth     = 5
	DefaultDepth = 2
)

// Options narrows a traversal. The zero value walks two levels across all
// relationship types.
type Options struct {
	// MaxDepth is the furthest level to visit, clamped to [MinDepth, MaxDepth].
	// Zero means DefaultDepth.
	MaxDepth int

	// RelationshipTypes restricts which edge types are followed. Empty
	// follows every type.
	RelationshipTypes []string

	// IncludeOrphans appends records with no relationships at all, at
	// depth zero, after the reachable discoveries.
	IncludeOrphans bool
}

func (o Options) depth() int {
	switch {
	case o.MaxDepth == 0:
		return DefaultDepth
	case o.MaxDepth < MinDepth:
		return MinDepth
	case o.MaxDepth > MaxDepth:
		return MaxDepth
	}
	return o.MaxDepth
}

// Discovery is one record reached during traversal. Depth is the shortest
// edge distance from the seed and Path lists the record ids walked to get
// there, seed first, discovery last.
type Discovery struct {
	Record *types.Record `json:"record"`
	Depth  int           `json:"depth"`
	Via    string        `json:"via"`
	Path   []string      `json:"path"`
}

// Neighborhood is the result of one traversal. Advisories report edges
// that point at records which no longer exist.
type Neighborhood struct {
	Seed        string      `json:"seed"`
	Discoveries []Discovery `json:"discoveries"`
	Advisories  []string    `json:"advisories,omitempty"`
}

// Navigator traverses the relationship graph stored alongside records.
type Navigator struct {
	records   store.RecordStore
	relations store.RelationStore
	logger    *slog.Logger
}

func NewNavigator(records store.RecordStore, relations store.RelationStore, logger *slog.Logger) *Navigator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Navigator{records: records, relations: relations, logger: logger}
}

// RelatedTo walks outward from seedID level by level and returns every
// record reachable within the depth bound. The seed itself is not a
// discovery. Unknown seeds fail with a NotFoundError; dangling edges met
// along the way are skipped and reported as advisories.
func (n *Navigator) RelatedTo(ctx context.Context, seedID string, opts Options) (*Neighborhood, error) {
	if _, err := n.records.Get(ctx, seedID); err != nil {
		return nil, err
	}

	maxDepth := opts.depth()
	result := &Neighborhood{Seed: seedID}
	visited := map[string]struct{}{seedID: {}}

	type hop struct {
		id   string
		path []string
	}
	frontier := []hop{{id: seedID, path: []string{seedID}}}

	// Edges of a whole level are fetched in parallel; the results are then
	// folded in frontier order so the visited set and the discovery paths
	// come out the same on every run.
	pool := utils.NewWorkerPool(0, func(ctx context.Context, id string) ([]types.Relationship, error) {
		return n.relations.Edges(ctx, id, opts.RelationshipTypes)
	})

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ids := make([]string, len(frontier))
		for i, h := range frontier {
			ids[i] = h.id
		}
		levelEdges, errs := pool.ProcessItems(ctx, ids)

		var next []hop
		var level []Discovery
		for i, h := range frontier {
			if errs[i] != nil {
				return nil, fmt.Errorf("failed to load edges of %s: %w", h.id, errs[i])
			}
			for _, e := range levelEdges[i] {
				target := e.TargetID
				if _, seen := visited[target]; seen {
					continue
				}
				visited[target] = struct{}{}

				rec, err := n.records.Get(ctx, target)
				if err != nil {
					if errors.Is(err, types.ErrNotFound) {
						result.Advisories = append(result.Advisories,
							fmt.Sprintf("edge %s -[%s]-> %s points at a missing record", e.SourceID, e.Type, target))
						continue
					}
					return nil, err
				}

				path := append(append([]string{}, h.path...), target)
				level = append(level, Discovery{Record: rec, Depth: depth, Via: e.Type, Path: path})
				next = append(next, hop{id: target, path: path})
			}
		}
		// Deterministic order within a level regardless of edge iteration.
		sort.Slice(level, func(i, j int) bool { return level[i].Record.ID < level[j].Record.ID })
		result.Discoveries = append(result.Discoveries, level...)
		frontier = next
	}

	if opts.IncludeOrphans {
		orphans, err := n.Orphans(ctx)
		if err != nil {
			return nil, err
		}
		for _, rec := range orphans {
			if _, seen := visited[rec.ID]; seen {
				continue
			}
			result.Discoveries = append(result.Discoveries, Discovery{
				Record: rec, Depth: 0, Path: []string{rec.ID},
			})
		}
	}

	n.logger.Debug("graph traversal complete",
		"seed", seedID, "depth", maxDepth, "found", len(result.Discoveries))
	return result, nil
}

// Orphans returns the live records with no relationships in either
// direction, ordered by id. Useful for spotting knowledge that nothing
// links to.
func (n *Navigator) Orphans(ctx context.Context) ([]*types.Record, error) {
	edges, err := n.relations.All(ctx)
	if err != nil {
		return nil, err
	}
	connected := make(map[string]struct{}, len(edges)*2)
	for _, e := range edges {
		connected[e.SourceID] = struct{}{}
		connected[e.TargetID] = struct{}{}
	}

	recs, err := n.records.List(ctx, &store.ListFilter{})
	if err != nil {
		return nil, err
	}
	var orphans []*types.Record
	for _, rec := range recs {
		if _, ok := connected[rec.ID]; !ok {
			orphans = append(orphans, rec)
		}
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].ID < orphans[j].ID })
	return orphans, nil
}
