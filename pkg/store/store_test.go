package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/recall/pkg/types"
)

type testStore interface {
	RecordStore
	RelationStore
	SetClock(func() time.Time)
}

func backends(t *testing.T) map[string]testStore {
	t.Helper()
	bs, err := NewBadgerStore(BadgerOptions{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bs.Close() })
	return map[string]testStore{
		"memory": NewMemoryStore(),
		"badger": bs,
	}
}

func newRecord(id string) *types.Record {
	return &types.Record{
		ID:      id,
		Type:    types.TypeTechnicalDebt,
		Content: "retry loop swallows the underlying error",
		Scope:   types.ScopeShared,
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			rec := newRecord("debt-1")
			rec.Fields = map[string]types.FieldValue{"priority": types.NumberValue(2)}
			rec.RelatedFiles = []string{"internal/retry/retry.go"}
			require.NoError(t, s.Put(ctx, rec))

			got, err := s.Get(ctx, "debt-1")
			require.NoError(t, err)
			assert.Equal(t, rec.Content, got.Content)
			assert.True(t, got.Fields["priority"].Equal(types.NumberValue(2)))
			assert.False(t, got.CreatedAt.IsZero())
			assert.False(t, got.ModifiedAt.Before(got.CreatedAt))

			_, err = s.Get(ctx, "nope")
			assert.ErrorIs(t, err, types.ErrNotFound)
		})
	}
}

func TestPatchSemantics(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			rec := newRecord("debt-2")
			rec.Fields = map[string]types.FieldValue{
				"status":   types.StringValue("open"),
				"priority": types.NumberValue(1),
			}
			require.NoError(t, s.Put(ctx, rec))
			before, err := s.Get(ctx, rec.ID)
			require.NoError(t, err)

			// Empty patch must not bump ModifiedAt or Version.
			got, err := s.Patch(ctx, rec.ID, &PatchSpec{})
			require.NoError(t, err)
			assert.Equal(t, before.ModifiedAt, got.ModifiedAt)
			assert.Equal(t, before.Version, got.Version)

			// Patch to identical values is also a no-op.
			same := types.StringValue("open")
			got, err = s.Patch(ctx, rec.ID, &PatchSpec{Fields: map[string]*types.FieldValue{"status": &same}})
			require.NoError(t, err)
			assert.Equal(t, before.Version, got.Version)

			// Explicit nil removes the field; unspecified fields untouched.
			got, err = s.Patch(ctx, rec.ID, &PatchSpec{Fields: map[string]*types.FieldValue{"priority": nil}})
			require.NoError(t, err)
			_, hasPriority := got.Fields["priority"]
			assert.False(t, hasPriority)
			assert.True(t, got.Fields["status"].Equal(types.StringValue("open")))
			assert.Equal(t, before.Version+1, got.Version)

			// Related file add/remove is a set operation.
			got, err = s.Patch(ctx, rec.ID, &PatchSpec{AddFiles: []string{"a.go", "b.go", "a.go"}})
			require.NoError(t, err)
			assert.Equal(t, []string{"a.go", "b.go"}, got.RelatedFiles)

			// Empty content is rejected and leaves prior state intact.
			empty := ""
			_, err = s.Patch(ctx, rec.ID, &PatchSpec{Content: &empty})
			require.Error(t, err)
			after, err := s.Get(ctx, rec.ID)
			require.NoError(t, err)
			assert.Equal(t, rec.Content, after.Content)
		})
	}
}

func TestPatchConflict(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, newRecord("debt-3")))

			stale := uint64(0)
			content := "updated once"
			_, err := s.Patch(ctx, "debt-3", &PatchSpec{Content: &content, ExpectVersion: &stale})
			require.NoError(t, err)

			// Same expected version again: the stored version moved on.
			content2 := "updated twice"
			_, err = s.Patch(ctx, "debt-3", &PatchSpec{Content: &content2, ExpectVersion: &stale})
			assert.ErrorIs(t, err, types.ErrConflict)
		})
	}
}

func TestListExcludesExpiredAndArchived(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			now := time.Now()
			past := now.Add(-time.Hour)

			live := newRecord("live")
			expired := newRecord("expired")
			expired.Scope = types.ScopeLocal
			expired.ExpiresAt = &past
			archived := newRecord("archived")
			archived.Archived = true

			for _, r := range []*types.Record{live, expired, archived} {
				require.NoError(t, s.Put(ctx, r))
			}

			recs, err := s.List(ctx, nil)
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, "live", recs[0].ID)

			recs, err = s.List(ctx, &ListFilter{IncludeArchived: true, IncludeExpired: true})
			require.NoError(t, err)
			assert.Len(t, recs, 3)

			// Expired records stay retrievable by id until swept.
			got, err := s.Get(ctx, "expired")
			require.NoError(t, err)
			assert.True(t, got.Expired(now))
		})
	}
}

func TestTouchAccess(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, newRecord("touched")))
			before, err := s.Get(ctx, "touched")
			require.NoError(t, err)

			require.NoError(t, s.TouchAccess(ctx, []string{"touched", "missing"}))
			require.NoError(t, s.TouchAccess(ctx, []string{"touched"}))

			got, err := s.Get(ctx, "touched")
			require.NoError(t, err)
			assert.Equal(t, int64(2), got.AccessCount)
			assert.Equal(t, before.ModifiedAt, got.ModifiedAt)
		})
	}
}

func TestLinkIdempotence(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			rel := types.Relationship{SourceID: "a", TargetID: "b", Type: "relatedTo"}
			require.NoError(t, s.Link(ctx, rel))
			require.NoError(t, s.Link(ctx, rel))

			edges, err := s.Edges(ctx, "a", nil)
			require.NoError(t, err)
			assert.Len(t, edges, 1)

			require.NoError(t, s.Unlink(ctx, "a", "b", "relatedTo", false))
			edges, err = s.Edges(ctx, "a", nil)
			require.NoError(t, err)
			assert.Empty(t, edges)

			err = s.Unlink(ctx, "a", "b", "relatedTo", false)
			assert.ErrorIs(t, err, types.ErrNotFound)
		})
	}
}

func TestBidirectionalLink(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			rel := types.Relationship{SourceID: "a", TargetID: "b", Type: "supersedes", Bidirectional: true}
			require.NoError(t, s.Link(ctx, rel))

			fromA, err := s.Edges(ctx, "a", nil)
			require.NoError(t, err)
			fromB, err := s.Edges(ctx, "b", nil)
			require.NoError(t, err)
			assert.Len(t, fromA, 1)
			assert.Len(t, fromB, 1)

			require.NoError(t, s.Unlink(ctx, "a", "b", "supersedes", true))
			fromB, err = s.Edges(ctx, "b", nil)
			require.NoError(t, err)
			assert.Empty(t, fromB)
		})
	}
}

func TestSelfLoopRejected(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Link(ctx, types.Relationship{SourceID: "a", TargetID: "a", Type: "relatedTo"})
			assert.ErrorIs(t, err, &types.ValidationError{})
		})
	}
}

func TestEdgeTypeFilter(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Link(ctx, types.Relationship{SourceID: "a", TargetID: "b", Type: "relatedTo"}))
			require.NoError(t, s.Link(ctx, types.Relationship{SourceID: "a", TargetID: "c", Type: "supersedes"}))

			edges, err := s.Edges(ctx, "a", []string{"supersedes"})
			require.NoError(t, err)
			require.Len(t, edges, 1)
			assert.Equal(t, "c", edges[0].TargetID)

			all, err := s.All(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 2)
		})
	}
}
