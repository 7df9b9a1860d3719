package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/recall/pkg/index"
	"github.com/soundprediction/recall/pkg/store"
	"github.com/soundprediction/recall/pkg/types"
)

type stubLexical struct {
	hits    []index.LexicalHit
	err     error
	queries []string
}

func (s *stubLexical) Index(context.Context, *types.Record) error { return nil }
func (s *stubLexical) Remove(context.Context, string) error       { return nil }
func (s *stubLexical) Close() error                               { return nil }
func (s *stubLexical) Search(_ context.Context, query string, _ int) ([]index.LexicalHit, error) {
	s.queries = append(s.queries, query)
	return s.hits, s.err
}

type stubSemantic struct {
	hits    []index.SemanticHit
	err     error
	queries []string
}

func (s *stubSemantic) Index(context.Context, *types.Record) error { return nil }
func (s *stubSemantic) Remove(context.Context, string) error       { return nil }
func (s *stubSemantic) Close() error                               { return nil }
func (s *stubSemantic) Search(_ context.Context, query string, _ float64, _ int) ([]index.SemanticHit, error) {
	s.queries = append(s.queries, query)
	return s.hits, s.err
}

func seedRecord(t *testing.T, s store.RecordStore, id, recType, content string) *types.Record {
	t.Helper()
	rec := &types.Record{
		ID:      id,
		Type:    recType,
		Content: content,
		Scope:   types.ScopeShared,
	}
	require.NoError(t, s.Put(context.Background(), rec))
	return rec
}

func newTestEngine(t *testing.T, lex *stubLexical, sem *stubSemantic) (*Engine, *store.MemoryStore) {
	t.Helper()
	recs := store.NewMemoryStore()
	t.Cleanup(func() { recs.Close() })
	exp := NewExpander(testSynonyms())
	return NewEngine(recs, lex, sem, exp, DefaultEngineConfig(), nil), recs
}

func TestSearchMergesBothProviders(t *testing.T) {
	lex := &stubLexical{hits: []index.LexicalHit{{ID: "a", RawScore: 5}, {ID: "b", RawScore: 2}}}
	sem := &stubSemantic{hits: []index.SemanticHit{{ID: "a", Similarity: 0.9}}}
	eng, recs := newTestEngine(t, lex, sem)
	seedRecord(t, recs, "a", types.TypeCodePattern, "retry with backoff")
	seedRecord(t, recs, "b", types.TypeCodePattern, "retry budget")

	res, err := eng.Search(context.Background(), &types.Query{Text: "retry"})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, 2, res.TotalCount)
	assert.False(t, res.Degraded)
	assert.Equal(t, "a", res.Items[0].Record.ID)
	assert.Equal(t, types.MatchBoth, res.Items[0].MatchedBy)
	assert.Equal(t, types.MatchLexical, res.Items[1].MatchedBy)
}

func TestSearchExpandsLexicalQueryOnly(t *testing.T) {
	lex := &stubLexical{}
	sem := &stubSemantic{}
	eng, _ := newTestEngine(t, lex, sem)

	_, err := eng.Search(context.Background(), &types.Query{Text: "auth", EnableExpansion: true})
	require.NoError(t, err)
	require.Len(t, lex.queries, 1)
	assert.Equal(t, "auth OR authentication OR authorization", lex.queries[0])
	require.Len(t, sem.queries, 1)
	assert.Equal(t, "auth", sem.queries[0])
}

func TestSearchDegradesWhenOneProviderFails(t *testing.T) {
	lex := &stubLexical{err: errors.New("fts corrupt")}
	sem := &stubSemantic{hits: []index.SemanticHit{{ID: "a", Similarity: 0.8}}}
	eng, recs := newTestEngine(t, lex, sem)
	seedRecord(t, recs, "a", types.TypeWorkingNote, "note")

	res, err := eng.Search(context.Background(), &types.Query{Text: "note"})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	require.Len(t, res.Items, 1)
	assert.Equal(t, types.MatchSemantic, res.Items[0].MatchedBy)
	assert.NotEmpty(t, res.Advisories)
}

func TestSearchFailsWhenBothProvidersFail(t *testing.T) {
	lex := &stubLexical{err: errors.New("down")}
	sem := &stubSemantic{err: errors.New("also down")}
	eng, _ := newTestEngine(t, lex, sem)

	_, err := eng.Search(context.Background(), &types.Query{Text: "anything"})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrProviderUnavailable)
}

func TestSearchSkipsExpiredArchivedAndStale(t *testing.T) {
	lex := &stubLexical{hits: []index.LexicalHit{
		{ID: "live", RawScore: 3},
		{ID: "expired", RawScore: 3},
		{ID: "archived", RawScore: 3},
		{ID: "deleted", RawScore: 3},
	}}
	eng, recs := newTestEngine(t, lex, &stubSemantic{})

	seedRecord(t, recs, "live", types.TypeWorkingNote, "alive")
	past := time.Now().Add(-time.Hour)
	exp := seedRecord(t, recs, "expired", types.TypeWorkingNote, "gone")
	exp.ExpiresAt = &past
	require.NoError(t, recs.Put(context.Background(), exp))
	arch := seedRecord(t, recs, "archived", types.TypeWorkingNote, "cold")
	arch.Archived = true
	require.NoError(t, recs.Put(context.Background(), arch))

	res, err := eng.Search(context.Background(), &types.Query{Text: "x"})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "live", res.Items[0].Record.ID)
	assert.NotEmpty(t, res.Advisories, "stale index entry should surface an advisory")

	res, err = eng.Search(context.Background(), &types.Query{Text: "x", IncludeArchived: true})
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)
}

func TestSearchAppliesFacetAndDateFilters(t *testing.T) {
	lex := &stubLexical{hits: []index.LexicalHit{{ID: "a", RawScore: 2}, {ID: "b", RawScore: 1}}}
	eng, recs := newTestEngine(t, lex, &stubSemantic{})

	a := seedRecord(t, recs, "a", types.TypeTechnicalDebt, "slow query")
	a.Fields = map[string]types.FieldValue{"severity": types.StringValue("high")}
	require.NoError(t, recs.Put(context.Background(), a))
	seedRecord(t, recs, "b", types.TypeTechnicalDebt, "slow scan")

	res, err := eng.Search(context.Background(), &types.Query{
		Text:   "slow",
		Facets: map[string]types.FieldValue{"severity": types.StringValue("high")},
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "a", res.Items[0].Record.ID)
	assert.Equal(t, 1, res.TotalCount)
}

func TestSearchWildcardBypassesProviders(t *testing.T) {
	lex := &stubLexical{}
	sem := &stubSemantic{}
	eng, recs := newTestEngine(t, lex, sem)
	seedRecord(t, recs, "a", types.TypeWorkingNote, "first")
	seedRecord(t, recs, "b", types.TypeCodePattern, "second")

	res, err := eng.Search(context.Background(), &types.Query{Text: types.Wildcard})
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)
	assert.Empty(t, lex.queries)
	assert.Empty(t, sem.queries)

	res, err = eng.Search(context.Background(), &types.Query{
		Text:  types.Wildcard,
		Types: []string{types.TypeCodePattern},
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "b", res.Items[0].Record.ID)
}

func TestSearchPaginationReportsTotal(t *testing.T) {
	lex := &stubLexical{hits: []index.LexicalHit{
		{ID: "a", RawScore: 3}, {ID: "b", RawScore: 2}, {ID: "c", RawScore: 1},
	}}
	eng, recs := newTestEngine(t, lex, &stubSemantic{})
	for _, id := range []string{"a", "b", "c"} {
		seedRecord(t, recs, id, types.TypeWorkingNote, "content "+id)
	}

	res, err := eng.Search(context.Background(), &types.Query{Text: "content", MaxResults: 2})
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)
	assert.Equal(t, 3, res.TotalCount)

	res, err = eng.Search(context.Background(), &types.Query{Text: "content", MaxResults: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "c", res.Items[0].Record.ID)
	assert.Equal(t, 3, res.TotalCount)
}

func TestSearchTouchesReturnedPage(t *testing.T) {
	lex := &stubLexical{hits: []index.LexicalHit{{ID: "a", RawScore: 1}}}
	eng, recs := newTestEngine(t, lex, &stubSemantic{})
	seedRecord(t, recs, "a", types.TypeWorkingNote, "touched")

	_, err := eng.Search(context.Background(), &types.Query{Text: "touched"})
	require.NoError(t, err)

	got, err := recs.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.AccessCount)
	assert.False(t, got.AccessedAt.IsZero())
}

func TestSearchBadDateRange(t *testing.T) {
	eng, _ := newTestEngine(t, &stubLexical{}, &stubSemantic{})
	_, err := eng.Search(context.Background(), &types.Query{
		Text:      "x",
		DateRange: &types.DateRange{Expr: "sometime"},
	})
	var verr *types.ValidationError
	assert.ErrorAs(t, err, &verr)
}
