package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soundprediction/recall/pkg/index"
	"github.com/soundprediction/recall/pkg/store"
	"github.com/soundprediction/recall/pkg/types"
)

// defaultCandidateLimit bounds how many hits each provider is asked for
// before filtering and pagination.
const defaultCandidateLimit = 100

// EngineConfig bundles the tunables of the retrieval pipeline.
type EngineConfig struct {
	Merge MergeConfig `mapstructure:"merge"`
	Boost BoostConfig `mapstructure:"boost"`

	// CandidateLimit is the per-provider fetch size. It should exceed the
	// largest expected page so facet filters have room to discard.
	CandidateLimit int `mapstructure:"candidate_limit"`
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Merge:          DefaultMergeConfig(),
		Boost:          DefaultBoostConfig(),
		CandidateLimit: defaultCandidateLimit,
	}
}

// Engine runs the hybrid retrieval pipeline: expand, fan out to both
// providers, merge, boost, filter, order, paginate. It degrades to
// single-provider ranking when one side is unavailable and fails only
// when both are.
type Engine struct {
	records  store.RecordStore
	lexical  index.Lexical
	semantic index.Semantic
	expander *Expander
	booster  *Booster
	cfg      EngineConfig
	logger   *slog.Logger
	now      func() time.Time
}

func NewEngine(records store.RecordStore, lex index.Lexical, sem index.Semantic, exp *Expander, cfg EngineConfig, logger *slog.Logger) *Engine {
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = defaultCandidateLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		records:  records,
		lexical:  lex,
		semantic: sem,
		expander: exp,
		booster:  NewBooster(cfg.Boost),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the time source for the engine and its booster.
// Test hook.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
	e.booster.SetClock(now)
}

// Search executes q and returns one result page. The date window is
// resolved once up front so every candidate is judged against the same
// instants.
func (e *Engine) Search(ctx context.Context, q *types.Query) (*types.SearchResults, error) {
	now := e.now()
	window, err := resolveRange(q.DateRange, now)
	if err != nil {
		return nil, err
	}

	if q.MatchAll() {
		return e.searchAll(ctx, q, window)
	}

	text := q.Text
	if q.EnableExpansion && e.expander != nil {
		expanded := e.expander.Expand(text)
		if expanded != text {
			e.logger.Debug("expanded query", "query", text, "expanded", expanded)
		}
		text = expanded
	}

	var (
		lexHits []index.LexicalHit
		semHits []index.SemanticHit
		lexErr  error
		semErr  error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lexHits, lexErr = e.lexical.Search(gctx, text, e.cfg.CandidateLimit)
		return nil
	})
	g.Go(func() error {
		// The semantic side embeds the raw query; OR-joined synonym
		// disjunctions help the keyword index, not the embedding.
		semHits, semErr = e.semantic.Search(gctx, q.Text, e.cfg.Merge.SemanticThreshold, e.cfg.CandidateLimit)
		return nil
	})
	_ = g.Wait()

	results := &types.SearchResults{}
	switch {
	case lexErr != nil && semErr != nil:
		return nil, &types.ProviderUnavailableError{
			Provider: "lexical+semantic",
			Err:      errors.Join(lexErr, semErr),
		}
	case lexErr != nil:
		e.logger.Warn("lexical provider unavailable, degrading to semantic-only", "error", lexErr)
		results.Degraded = true
		results.Advisories = append(results.Advisories, "lexical search unavailable; results ranked by semantic similarity only")
	case semErr != nil:
		e.logger.Warn("semantic provider unavailable, degrading to lexical-only", "error", semErr)
		results.Degraded = true
		results.Advisories = append(results.Advisories, "semantic search unavailable; results ranked by keyword relevance only")
	}

	merged, err := Merge(lexHits, semHits, e.cfg.Merge)
	if err != nil {
		return nil, err
	}

	cands, advisories := e.hydrate(ctx, merged, q, window)
	results.Advisories = append(results.Advisories, advisories...)

	sortCandidates(cands, q.OrderBy)
	page, total := paginate(cands, q.MaxResults, q.Offset)
	results.TotalCount = total
	results.Items = itemsOf(page)

	e.touch(ctx, page)
	return results, nil
}

// searchAll serves the wildcard path straight from the record store,
// bypassing both providers. Every match scores 1.0; the default ordering
// becomes modification time so the page is stable without rank signal.
func (e *Engine) searchAll(ctx context.Context, q *types.Query, window *resolvedRange) (*types.SearchResults, error) {
	recs, err := e.records.List(ctx, &store.ListFilter{
		Types:           nonWildcard(q.Types),
		IncludeArchived: q.IncludeArchived,
	})
	if err != nil {
		return nil, err
	}

	cands := make([]candidate, 0, len(recs))
	for _, rec := range recs {
		if !matchesFacets(rec, q, window) {
			continue
		}
		score := e.booster.Boost(1.0, rec, q)
		cands = append(cands, candidate{rec: rec, score: score})
	}

	order := q.OrderBy
	if order == "" || order == types.OrderScore {
		order = types.OrderModified
	}
	sortCandidates(cands, order)
	page, total := paginate(cands, q.MaxResults, q.Offset)

	results := &types.SearchResults{TotalCount: total, Items: itemsOf(page)}
	e.touch(ctx, page)
	return results, nil
}

// hydrate resolves merged candidates to live records, drops expired and
// (unless requested) archived ones, applies facet filters, and boosts the
// surviving scores. Index entries pointing at deleted records are skipped
// and reported as an advisory rather than failing the search.
func (e *Engine) hydrate(ctx context.Context, merged []Merged, q *types.Query, window *resolvedRange) ([]candidate, []string) {
	var advisories []string
	stale := 0
	cands := make([]candidate, 0, len(merged))
	for _, m := range merged {
		rec, err := e.records.Get(ctx, m.ID)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				stale++
				continue
			}
			e.logger.Warn("skipping unreadable record", "id", m.ID, "error", err)
			continue
		}
		if rec.Expired(e.now()) {
			continue
		}
		if rec.Archived && !q.IncludeArchived {
			continue
		}
		if !matchesFacets(rec, q, window) {
			continue
		}
		score := e.booster.Boost(m.Score, rec, q)
		cands = append(cands, candidate{
			rec:       rec,
			score:     score,
			matchedBy: m.MatchedBy,
			fragments: m.Fragments,
		})
	}
	if stale > 0 {
		advisories = append(advisories, fmt.Sprintf("%d stale index entries skipped; consider reindexing", stale))
	}
	return cands, advisories
}

// touch records the page as accessed. Access bookkeeping is best effort
// and never fails a search.
func (e *Engine) touch(ctx context.Context, page []candidate) {
	if len(page) == 0 {
		return
	}
	ids := make([]string, len(page))
	for i, c := range page {
		ids[i] = c.rec.ID
	}
	if err := e.records.TouchAccess(ctx, ids); err != nil {
		e.logger.Warn("failed to record access", "error", err)
	}
}

func itemsOf(page []candidate) []types.SearchItem {
	items := make([]types.SearchItem, len(page))
	for i, c := range page {
		items[i] = types.SearchItem{
			Record:    c.rec,
			Score:     c.score,
			MatchedBy: c.matchedBy,
			Fragments: c.fragments,
		}
	}
	return items
}

func nonWildcard(set []string) []string {
	for _, s := range set {
		if s == types.Wildcard {
			return nil
		}
	}
	return set
}
