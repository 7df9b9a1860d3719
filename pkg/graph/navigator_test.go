package graph

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/recall/pkg/store"
	"github.com/soundprediction/recall/pkg/types"
)

func seed(t *testing.T, s *store.MemoryStore, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, s.Put(context.Background(), &types.Record{
			ID:      id,
			Type:    types.TypeWorkingNote,
			Content: "record " + id,
			Scope:   types.ScopeLocal,
		}))
	}
}

func link(t *testing.T, s *store.MemoryStore, source, target, relType string, bidi bool) {
	t.Helper()
	require.NoError(t, s.Link(context.Background(), types.Relationship{
		SourceID:      source,
		TargetID:      target,
		Type:          relType,
		Bidirectional: bidi,
	}))
}

func newNavigator(t *testing.T) (*Navigator, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	return NewNavigator(s, s, nil), s
}

func ids(ds []Discovery) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Record.ID
	}
	return out
}

func TestRelatedToLevels(t *testing.T) {
	nav, s := newNavigator(t)
	seed(t, s, "a", "b", "c", "d")
	link(t, s, "a", "b", "supersedes", false)
	link(t, s, "b", "c", "supersedes", false)
	link(t, s, "c", "d", "supersedes", false)

	nb, err := nav.RelatedTo(context.Background(), "a", Options{MaxDepth: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, ids(nb.Discoveries))
	assert.Equal(t, 1, nb.Discoveries[0].Depth)
	assert.Equal(t, 2, nb.Discoveries[1].Depth)
	assert.Equal(t, []string{"a", "b", "c"}, nb.Discoveries[1].Path)
	assert.Equal(t, "supersedes", nb.Discoveries[1].Via)
}

func TestRelatedToCycleTerminates(t *testing.T) {
	nav, s := newNavigator(t)
	seed(t, s, "a", "b", "c")
	link(t, s, "a", "b", "refines", false)
	link(t, s, "b", "c", "refines", false)
	link(t, s, "c", "a", "refines", false)

	nb, err := nav.RelatedTo(context.Background(), "a", Options{MaxDepth: 5})
	require.NoError(t, err)
	// The cycle back to the seed is not re-reported.
	assert.Equal(t, []string{"b", "c"}, ids(nb.Discoveries))
}

func TestRelatedToShortestDepthWins(t *testing.T) {
	nav, s := newNavigator(t)
	seed(t, s, "a", "b", "c")
	link(t, s, "a", "b", "relates", false)
	link(t, s, "a", "c", "relates", false)
	link(t, s, "b", "c", "relates", false)

	nb, err := nav.RelatedTo(context.Background(), "a", Options{MaxDepth: 3})
	require.NoError(t, err)
	require.Len(t, nb.Discoveries, 2)
	for _, d := range nb.Discoveries {
		assert.Equal(t, 1, d.Depth, "record %s reachable at depth 1", d.Record.ID)
	}
}

func TestRelatedToWideFrontierStaysDeterministic(t *testing.T) {
	nav, s := newNavigator(t)

	// A frontier larger than the edge-fetch pool, each node with a child
	// one level further out. Two runs must agree exactly.
	seed(t, s, "seed")
	var wantL1, wantL2 []string
	for i := 0; i < 40; i++ {
		mid := fmt.Sprintf("mid-%02d", i)
		leaf := fmt.Sprintf("leaf-%02d", i)
		seed(t, s, mid, leaf)
		link(t, s, "seed", mid, "relates", false)
		link(t, s, mid, leaf, "relates", false)
		wantL1 = append(wantL1, mid)
		wantL2 = append(wantL2, leaf)
	}

	first, err := nav.RelatedTo(context.Background(), "seed", Options{MaxDepth: 2})
	require.NoError(t, err)
	assert.Equal(t, append(wantL1, wantL2...), ids(first.Discoveries))

	second, err := nav.RelatedTo(context.Background(), "seed", Options{MaxDepth: 2})
	require.NoError(t, err)
	assert.Equal(t, ids(first.Discoveries), ids(second.Discoveries))
	for i := range first.Discoveries {
		assert.Equal(t, first.Discoveries[i].Path, second.Discoveries[i].Path)
	}
}

func TestRelatedToBidirectional(t *testing.T) {
	nav, s := newNavigator(t)
	seed(t, s, "a", "b")
	link(t, s, "a", "b", "pairs-with", true)

	nb, err := nav.RelatedTo(context.Background(), "b", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(nb.Discoveries))
}

func TestRelatedToTypeFilter(t *testing.T) {
	nav, s := newNavigator(t)
	seed(t, s, "a", "b", "c")
	link(t, s, "a", "b", "supersedes", false)
	link(t, s, "a", "c", "contradicts", false)

	nb, err := nav.RelatedTo(context.Background(), "a", Options{
		RelationshipTypes: []string{"contradicts"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(nb.Discoveries))
}

func TestRelatedToDepthClamp(t *testing.T) {
	assert.Equal(t, DefaultDepth, Options{}.depth())
	assert.Equal(t, MinDepth, Options{MaxDepth: -3}.depth())
	assert.Equal(t, MaxDepth, Options{MaxDepth: 50}.depth())
	assert.Equal(t, 3, Options{MaxDepth: 3}.depth())
}

func TestRelatedToUnknownSeed(t *testing.T) {
	nav, _ := newNavigator(t)
	_, err := nav.RelatedTo(context.Background(), "ghost", Options{})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestRelatedToDanglingEdgeAdvisory(t *testing.T) {
	nav, s := newNavigator(t)
	seed(t, s, "a", "b")
	link(t, s, "a", "b", "relates", false)
	require.NoError(t, s.Delete(context.Background(), "b"))

	nb, err := nav.RelatedTo(context.Background(), "a", Options{})
	require.NoError(t, err)
	assert.Empty(t, nb.Discoveries)
	require.Len(t, nb.Advisories, 1)
	assert.Contains(t, nb.Advisories[0], "missing record")
}

func TestRelatedToIncludeOrphans(t *testing.T) {
	nav, s := newNavigator(t)
	seed(t, s, "a", "b", "lonely", "stray")
	link(t, s, "a", "b", "relates", false)

	nb, err := nav.RelatedTo(context.Background(), "a", Options{IncludeOrphans: true})
	require.NoError(t, err)
	require.Equal(t, []string{"b", "lonely", "stray"}, ids(nb.Discoveries))

	// Orphans trail the reachable set at depth zero with a bare path.
	for _, d := range nb.Discoveries[1:] {
		assert.Equal(t, 0, d.Depth)
		assert.Equal(t, []string{d.Record.ID}, d.Path)
		assert.Empty(t, d.Via)
	}

	// Off by default.
	nb, err = nav.RelatedTo(context.Background(), "a", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(nb.Discoveries))
}

func TestRelatedToOrphanSeedNotSelfReported(t *testing.T) {
	nav, s := newNavigator(t)
	seed(t, s, "alone")

	nb, err := nav.RelatedTo(context.Background(), "alone", Options{IncludeOrphans: true})
	require.NoError(t, err)
	assert.Empty(t, ids(nb.Discoveries))
}

func TestOrphans(t *testing.T) {
	nav, s := newNavigator(t)
	seed(t, s, "linked1", "linked2", "alone")
	link(t, s, "linked1", "linked2", "relates", false)

	orphans, err := nav.Orphans(context.Background())
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, "alone", orphans[0].ID)
}
