package recall

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/soundprediction/recall/pkg/backup"
	"github.com/soundprediction/recall/pkg/config"
	"github.com/soundprediction/recall/pkg/graph"
	"github.com/soundprediction/recall/pkg/index"
	"github.com/soundprediction/recall/pkg/logger"
	"github.com/soundprediction/recall/pkg/quality"
	"github.com/soundprediction/recall/pkg/retention"
	"github.com/soundprediction/recall/pkg/search"
	"github.com/soundprediction/recall/pkg/store"
	"github.com/soundprediction/recall/pkg/types"
	"github.com/soundprediction/recall/pkg/utils"
)

// SnapshotFormat selects the backup file format.
type SnapshotFormat string

const (
	FormatJSONL   SnapshotFormat = "jsonl"
	FormatParquet SnapshotFormat = "parquet"
)

// Recall is the main interface for interacting with the memory store. It
// ties together persistence, hybrid retrieval, the relationship graph,
// quality assessment, and retention.
type Recall interface {
	// Store persists a new record and indexes it for search. A missing id
	// is assigned; timestamps are filled in.
	Store(ctx context.Context, rec *types.Record) (*types.Record, error)

	// Get retrieves a record by id. Archived and expired records are still
	// returned until physically swept.
	Get(ctx context.Context, id string) (*types.Record, error)

	// Update applies a partial update and refreshes the search indexes.
	Update(ctx context.Context, id string, patch *store.PatchSpec) (*types.Record, error)

	// Delete removes a record and its index entries.
	Delete(ctx context.Context, id string) error

	// Search runs the hybrid retrieval pipeline over the stored records.
	Search(ctx context.Context, q *types.Query) (*types.SearchResults, error)

	// Link records a typed relationship between two records.
	Link(ctx context.Context, rel types.Relationship) error

	// Unlink removes a relationship.
	Unlink(ctx context.Context, source, target, relType string, bidirectional bool) error

	// RelatedTo walks the relationship graph outward from a record.
	RelatedTo(ctx context.Context, id string, opts graph.Options) (*graph.Neighborhood, error)

	// Orphans lists live records with no relationships.
	Orphans(ctx context.Context) ([]*types.Record, error)

	// AssessQuality scores a single record.
	AssessQuality(ctx context.Context, id string) (*types.QualityReport, error)

	// AssessQualityByType scores every live record of a type, worst first.
	AssessQualityByType(ctx context.Context, recType string) (*types.BatchQualityReport, error)

	// Archive marks records of a type older than the given age as archived.
	Archive(ctx context.Context, recType string, olderThanDays int) (int, error)

	// ApplyRetention runs the configured per-type archival rules.
	ApplyRetention(ctx context.Context) (int, error)

	// Sweep removes expired records.
	Sweep(ctx context.Context) (*retention.SweepResult, error)

	// Export writes a shared-scope snapshot into dir.
	Export(ctx context.Context, dir string, format SnapshotFormat) error

	// Import merges a shared-scope snapshot from dir.
	Import(ctx context.Context, dir string, format SnapshotFormat) (*backup.ImportResult, error)

	// Reindex rebuilds both search indexes from the record store.
	Reindex(ctx context.Context) (int, error)

	// Close releases the store and index resources.
	Close() error
}

type client struct {
	cfg       *config.Config
	records   store.RecordStore
	relations store.RelationStore
	lexical   index.Lexical
	semantic  index.Semantic
	engine    *search.Engine
	navigator *graph.Navigator
	quality   *quality.Engine
	retention *retention.Manager
	backup    *backup.Manager
	logger    *slog.Logger
}

// New assembles a Recall client from configuration. The embedding
// function powers the semantic index and must be supplied by the caller.
func New(cfg *config.Config, embed index.EmbeddingFunc, log *slog.Logger) (Recall, error) {
	if cfg == nil {
		return nil, &types.ValidationError{Field: "config", Reason: "must not be nil"}
	}
	if log == nil {
		log = logger.NewLogger(os.Stderr, logger.Options{
			Level:   parseLevel(cfg.Log.Level),
			NoColor: cfg.Log.NoColor,
		})
	}

	var (
		records   store.RecordStore
		relations store.RelationStore
	)
	switch cfg.Store.Backend {
	case "", "badger":
		bs, err := store.NewBadgerStore(store.BadgerOptions{Path: cfg.Store.Path})
		if err != nil {
			return nil, fmt.Errorf("failed to open record store: %w", err)
		}
		records, relations = bs, bs
	case "memory":
		ms := store.NewMemoryStore()
		records, relations = ms, ms
	default:
		return nil, &types.ValidationError{Field: "store.backend", Reason: fmt.Sprintf("unknown backend %q", cfg.Store.Backend)}
	}

	lexPath := cfg.Index.LexicalPath
	if lexPath == "" {
		if cfg.Store.Backend == "memory" {
			lexPath = ":memory:"
		} else {
			lexPath = filepath.Join(cfg.Store.Path, "lexical.db")
		}
	}
	var lex index.Lexical
	lex, err := index.NewSQLiteLexical(lexPath)
	if err != nil {
		records.Close()
		return nil, fmt.Errorf("failed to open lexical index: %w", err)
	}

	var sem index.Semantic
	sem, err = index.NewChromemSemantic(cfg.Index.SemanticPath, embed)
	if err != nil {
		lex.Close()
		records.Close()
		return nil, fmt.Errorf("failed to open semantic index: %w", err)
	}

	if cfg.Index.Breaker.Enabled {
		settings := cfg.Index.Breaker.Settings()
		lex = index.WrapLexical(lex, settings, log)
		sem = index.WrapSemantic(sem, settings, log)
	}

	var expander *search.Expander
	if cfg.Expansion.Enabled {
		synonyms := map[string][]string{}
		if cfg.Expansion.SynonymsPath != "" {
			synonyms, err = search.LoadSynonyms(cfg.Expansion.SynonymsPath)
			if err != nil {
				sem.Close()
				lex.Close()
				records.Close()
				return nil, err
			}
		}
		expander = search.NewExpander(synonyms)
	}

	c := &client{
		cfg:       cfg,
		records:   records,
		relations: relations,
		lexical:   lex,
		semantic:  sem,
		engine:    search.NewEngine(records, lex, sem, expander, cfg.Search, log),
		navigator: graph.NewNavigator(records, relations, log),
		logger:    log,
	}
	root := cfg.Quality.WorkspaceRoot
	if root == "" {
		root = "."
	}
	c.quality = quality.NewEngine(records, quality.DefaultValidators(root), cfg.Quality, log)
	c.retention = retention.NewManager(records, c.deindex, log)
	c.backup = backup.NewManager(records, relations, c.index, log)
	return c, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// index pushes a record into both search indexes.
func (c *client) index(ctx context.Context, rec *types.Record) error {
	if err := c.lexical.Index(ctx, rec); err != nil {
		return fmt.Errorf("failed to index record %s: %w", rec.ID, err)
	}
	if err := c.semantic.Index(ctx, rec); err != nil {
		return fmt.Errorf("failed to index record %s: %w", rec.ID, err)
	}
	return nil
}

func (c *client) deindex(ctx context.Context, id string) error {
	if err := c.lexical.Remove(ctx, id); err != nil {
		return err
	}
	return c.semantic.Remove(ctx, id)
}

func (c *client) Store(ctx context.Context, rec *types.Record) (*types.Record, error) {
	if rec.ID == "" {
		rec.ID = utils.NewID()
	}
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.ModifiedAt.IsZero() {
		rec.ModifiedAt = rec.CreatedAt
	}
	if err := c.records.Put(ctx, rec); err != nil {
		return nil, err
	}
	if err := c.index(ctx, rec); err != nil {
		return nil, err
	}
	c.logger.Debug("record persisted", "id", rec.ID, "type", rec.Type, "scope", rec.Scope)
	return rec, nil
}

func (c *client) Get(ctx context.Context, id string) (*types.Record, error) {
	return c.records.Get(ctx, id)
}

func (c *client) Update(ctx context.Context, id string, patch *store.PatchSpec) (*types.Record, error) {
	rec, err := c.records.Patch(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if err := c.index(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (c *client) Delete(ctx context.Context, id string) error {
	if err := c.records.Delete(ctx, id); err != nil {
		return err
	}
	return c.deindex(ctx, id)
}

func (c *client) Search(ctx context.Context, q *types.Query) (*types.SearchResults, error) {
	return c.engine.Search(ctx, q)
}

func (c *client) Link(ctx context.Context, rel types.Relationship) error {
	// Both endpoints must exist; dangling edges only arise from later
	// deletions.
	if _, err := c.records.Get(ctx, rel.SourceID); err != nil {
		return err
	}
	if _, err := c.records.Get(ctx, rel.TargetID); err != nil {
		return err
	}
	return c.relations.Link(ctx, rel)
}

func (c *client) Unlink(ctx context.Context, source, target, relType string, bidirectional bool) error {
	return c.relations.Unlink(ctx, source, target, relType, bidirectional)
}

func (c *client) RelatedTo(ctx context.Context, id string, opts graph.Options) (*graph.Neighborhood, error) {
	return c.navigator.RelatedTo(ctx, id, opts)
}

func (c *client) Orphans(ctx context.Context) ([]*types.Record, error) {
	return c.navigator.Orphans(ctx)
}

func (c *client) AssessQuality(ctx context.Context, id string) (*types.QualityReport, error) {
	return c.quality.Assess(ctx, id)
}

func (c *client) AssessQualityByType(ctx context.Context, recType string) (*types.BatchQualityReport, error) {
	return c.quality.AssessByType(ctx, recType)
}

func (c *client) Archive(ctx context.Context, recType string, olderThanDays int) (int, error) {
	return c.retention.Archive(ctx, recType, olderThanDays)
}

func (c *client) ApplyRetention(ctx context.Context) (int, error) {
	total := 0
	for recType, days := range c.cfg.Retention.ArchiveAfterDays {
		n, err := c.retention.Archive(ctx, recType, days)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (c *client) Sweep(ctx context.Context) (*retention.SweepResult, error) {
	return c.retention.Sweep(ctx)
}

func (c *client) Export(ctx context.Context, dir string, format SnapshotFormat) error {
	switch format {
	case FormatParquet:
		return c.backup.ExportParquet(ctx, dir, backup.ExportOptions{})
	case FormatJSONL, "":
		return c.backup.ExportJSONL(ctx, dir, backup.ExportOptions{})
	}
	return &types.ValidationError{Field: "format", Reason: fmt.Sprintf("unknown snapshot format %q", format)}
}

func (c *client) Import(ctx context.Context, dir string, format SnapshotFormat) (*backup.ImportResult, error) {
	switch format {
	case FormatParquet:
		return c.backup.ImportParquet(ctx, dir)
	case FormatJSONL, "":
		return c.backup.ImportJSONL(ctx, dir)
	}
	return nil, &types.ValidationError{Field: "format", Reason: fmt.Sprintf("unknown snapshot format %q", format)}
}

func (c *client) Reindex(ctx context.Context) (int, error) {
	recs, err := c.records.List(ctx, &store.ListFilter{IncludeArchived: true})
	if err != nil {
		return 0, err
	}
	for i, rec := range recs {
		if err := c.index(ctx, rec); err != nil {
			return i, err
		}
	}
	c.logger.Info("records indexed", "count", len(recs))
	return len(recs), nil
}

func (c *client) Close() error {
	var firstErr error
	for _, closer := range []func() error{c.lexical.Close, c.semantic.Close, c.records.Close} {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
