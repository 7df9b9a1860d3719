package recall

import (
	"context"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/recall/pkg/config"
	"github.com/soundprediction/recall/pkg/graph"
	"github.com/soundprediction/recall/pkg/search"
	"github.com/soundprediction/recall/pkg/store"
	"github.com/soundprediction/recall/pkg/types"
)

// testEmbedding is a deterministic bag-of-words embedding: stable across
// runs, similar texts land near each other, no network involved.
func testEmbedding(_ context.Context, text string) ([]float32, error) {
	const dim = 64
	vec := make([]float32, dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%dim]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	synPath := filepath.Join(t.TempDir(), "synonyms.yaml")
	require.NoError(t, os.WriteFile(synPath, []byte("auth:\n  - authentication\n  - authorization\n"), 0o644))

	cfg := &config.Config{}
	cfg.Store.Backend = "memory"
	cfg.Search = search.DefaultEngineConfig()
	cfg.Expansion.Enabled = true
	cfg.Expansion.SynonymsPath = synPath
	cfg.Quality.Threshold = 0.7
	cfg.Retention.ArchiveAfterDays = map[string]int{types.TypeWorkingNote: 30}
	return cfg
}

func newClient(t *testing.T) Recall {
	t.Helper()
	r, err := New(testConfig(t), testEmbedding, nil)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func storeRecord(t *testing.T, r Recall, recType, content string, files ...string) *types.Record {
	t.Helper()
	rec, err := r.Store(context.Background(), &types.Record{
		Type:         recType,
		Content:      content,
		RelatedFiles: files,
		Scope:        types.ScopeShared,
	})
	require.NoError(t, err)
	return rec
}

func TestStoreAssignsIDAndTimestamps(t *testing.T) {
	r := newClient(t)
	rec := storeRecord(t, r, types.TypeCodePattern, "wrap errors with context at package boundaries")

	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Equal(t, rec.CreatedAt, rec.ModifiedAt)

	got, err := r.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Content, got.Content)
}

func TestSearchFindsSynonymMatches(t *testing.T) {
	r := newClient(t)
	storeRecord(t, r, types.TypeCodePattern, "authentication middleware validates the session token")
	storeRecord(t, r, types.TypeCodePattern, "database pool sizing guidance")

	res, err := r.Search(context.Background(), &types.Query{
		Text:            "auth",
		EnableExpansion: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Items)
	assert.Contains(t, res.Items[0].Record.Content, "authentication")
}

func TestSearchWithoutExpansionMissesSynonyms(t *testing.T) {
	r := newClient(t)
	storeRecord(t, r, types.TypeCodePattern, "authentication middleware validates the session token")

	res, err := r.Search(context.Background(), &types.Query{Text: "auth"})
	require.NoError(t, err)
	for _, item := range res.Items {
		assert.NotEqual(t, types.MatchLexical, item.MatchedBy,
			"without expansion the keyword side should not match 'auth'")
	}
}

func TestUpdateReindexes(t *testing.T) {
	ctx := context.Background()
	r := newClient(t)
	rec := storeRecord(t, r, types.TypeWorkingNote, "investigate flaky websocket reconnect")

	content := "websocket reconnect fixed by exponential backoff"
	updated, err := r.Update(ctx, rec.ID, &store.PatchSpec{Content: &content})
	require.NoError(t, err)
	assert.Equal(t, rec.Version+1, updated.Version)

	res, err := r.Search(ctx, &types.Query{Text: "exponential backoff"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Items)
	assert.Equal(t, rec.ID, res.Items[0].Record.ID)
}

func TestDeleteRemovesFromIndex(t *testing.T) {
	ctx := context.Background()
	r := newClient(t)
	rec := storeRecord(t, r, types.TypeWorkingNote, "temporary scratch note about goroutine leak")

	require.NoError(t, r.Delete(ctx, rec.ID))

	_, err := r.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	res, err := r.Search(ctx, &types.Query{Text: "goroutine leak"})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}

func TestLinkAndRelatedTo(t *testing.T) {
	ctx := context.Background()
	r := newClient(t)
	adr := storeRecord(t, r, types.TypeArchitecturalDecision, "adopt badger for embedded persistence")
	pattern := storeRecord(t, r, types.TypeCodePattern, "badger transactions retry on conflict")

	require.NoError(t, r.Link(ctx, types.Relationship{
		SourceID: adr.ID, TargetID: pattern.ID, Type: "motivates",
	}))

	nb, err := r.RelatedTo(ctx, adr.ID, graph.Options{})
	require.NoError(t, err)
	require.Len(t, nb.Discoveries, 1)
	assert.Equal(t, pattern.ID, nb.Discoveries[0].Record.ID)
	assert.Equal(t, "motivates", nb.Discoveries[0].Via)
}

func TestLinkRejectsUnknownEndpoints(t *testing.T) {
	ctx := context.Background()
	r := newClient(t)
	rec := storeRecord(t, r, types.TypeWorkingNote, "known record")

	err := r.Link(ctx, types.Relationship{SourceID: rec.ID, TargetID: "ghost", Type: "relates"})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestAssessQuality(t *testing.T) {
	ctx := context.Background()
	r := newClient(t)
	thin := storeRecord(t, r, types.TypeWorkingNote, "short note")

	report, err := r.AssessQuality(ctx, thin.ID)
	require.NoError(t, err)
	assert.True(t, report.BelowThreshold)
	assert.NotEmpty(t, report.Suggestions)

	batch, err := r.AssessQualityByType(ctx, types.TypeWorkingNote)
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Assessed)
}

func TestQualityWorkspaceRootFromConfig(t *testing.T) {
	ctx := context.Background()
	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(ws, "pkg", "auth"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ws, "pkg", "auth", "token.go"), []byte("package auth\n"), 0o644))

	cfg := testConfig(t)
	cfg.Quality.WorkspaceRoot = ws
	r, err := New(cfg, testEmbedding, nil)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	content := "token refresh happens in middleware before the handler runs"
	live := storeRecord(t, r, types.TypeArchitecturalDecision, content, "pkg/auth/token.go")
	stale := storeRecord(t, r, types.TypeArchitecturalDecision, content, "pkg/auth/removed.go")

	liveReport, err := r.AssessQuality(ctx, live.ID)
	require.NoError(t, err)
	staleReport, err := r.AssessQuality(ctx, stale.ID)
	require.NoError(t, err)

	// File references resolve against the configured workspace, so the
	// record pointing at a real file scores strictly higher.
	assert.Greater(t, liveReport.OverallScore, staleReport.OverallScore)
	assert.NotEmpty(t, staleReport.Suggestions)
}

func TestRetentionAndSweep(t *testing.T) {
	ctx := context.Background()
	r := newClient(t)

	old, err := r.Store(ctx, &types.Record{
		Type: types.TypeWorkingNote, Content: "stale working note",
		Scope:     types.ScopeLocal,
		CreatedAt: time.Now().AddDate(0, 0, -45), ModifiedAt: time.Now().AddDate(0, 0, -45),
	})
	require.NoError(t, err)

	archived, err := r.ApplyRetention(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, archived)

	got, err := r.Get(ctx, old.ID)
	require.NoError(t, err)
	assert.True(t, got.Archived)

	past := time.Now().Add(-time.Minute)
	_, err = r.Update(ctx, old.ID, &store.PatchSpec{ExpiresAt: &past})
	require.NoError(t, err)

	swept, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept.Deleted)

	_, err = r.Get(ctx, old.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestExportImportBetweenClients(t *testing.T) {
	ctx := context.Background()
	src := newClient(t)
	rec := storeRecord(t, src, types.TypeArchitecturalDecision, "shared team decision about module layout")

	dir := t.TempDir()
	require.NoError(t, src.Export(ctx, dir, FormatJSONL))

	dst := newClient(t)
	res, err := dst.Import(ctx, dir, FormatJSONL)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	// Imported records are searchable without a manual reindex.
	found, err := dst.Search(ctx, &types.Query{Text: "module layout"})
	require.NoError(t, err)
	require.NotEmpty(t, found.Items)
	assert.Equal(t, rec.ID, found.Items[0].Record.ID)
}

func TestReindexRecovers(t *testing.T) {
	ctx := context.Background()
	r := newClient(t)
	storeRecord(t, r, types.TypeCodePattern, "context cancellation pattern for worker pools")
	storeRecord(t, r, types.TypeCodePattern, "retry pattern with jitter")

	n, err := r.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	res, err := r.Search(ctx, &types.Query{Text: "worker pools"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Items)
}
