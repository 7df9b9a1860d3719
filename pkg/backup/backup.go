package backup

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/soundprediction/recall/pkg/store"
	"github.com/soundprediction/recall/pkg/types"
)

// Snapshot file names inside a backup directory.
const (
	RecordsJSONL     = "records.jsonl"
	RelationsJSONL   = "relations.jsonl"
	RecordsParquet   = "records.parquet"
	RelationsParquet = "relations.parquet"
)

// Reindexer pushes an imported record into derived indexes.
type Reindexer func(ctx context.Context, rec *types.Record) error

// ImportResult summarizes one merge pass.
type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Edges   int `json:"edges"`
}

// ExportOptions controls what a snapshot contains. The zero value exports
// shared-scope records only, which is what team syncing wants; IncludeLocal
// adds machine-local records for full-machine backups.
type ExportOptions struct {
	IncludeLocal bool
}

// Manager exports and imports snapshots.
type Manager struct {
	records   store.RecordStore
	relations store.RelationStore
	reindex   Reindexer
	logger    *slog.Logger
}

func NewManager(records store.RecordStore, relations store.RelationStore, reindex Reindexer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{records: records, relations: relations, reindex: reindex, logger: logger}
}

// snapshot gathers the exportable state: shared-scope records (archived
// ones included, they are part of team history), local records when asked,
// and the edges connecting exported records.
func (m *Manager) snapshot(ctx context.Context, opts ExportOptions) ([]*types.Record, []types.Relationship, error) {
	filter := &store.ListFilter{
		Scope:           types.ScopeShared,
		IncludeArchived: true,
	}
	if opts.IncludeLocal {
		filter.Scope = ""
	}
	recs, err := m.records.List(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	exported := make(map[string]struct{}, len(recs))
	for _, rec := range recs {
		exported[rec.ID] = struct{}{}
	}

	all, err := m.relations.All(ctx)
	if err != nil {
		return nil, nil, err
	}
	var edges []types.Relationship
	for _, e := range all {
		if _, ok := exported[e.SourceID]; !ok {
			continue
		}
		if _, ok := exported[e.TargetID]; !ok {
			continue
		}
		edges = append(edges, e)
	}
	return recs, edges, nil
}

// ExportJSONL writes the snapshot into dir as JSONL, one record or edge
// per line. Files are written to a temp name and renamed into place so a
// crashed export never leaves a truncated snapshot behind.
func (m *Manager) ExportJSONL(ctx context.Context, dir string, opts ExportOptions) error {
	recs, edges, err := m.snapshot(ctx, opts)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	err = writeAtomic(dir, RecordsJSONL, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		for _, rec := range recs {
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = writeAtomic(dir, RelationsJSONL, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		for _, e := range edges {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Info("exported snapshot", "dir", dir, "records", len(recs), "edges", len(edges))
	return nil
}

// ImportJSONL merges a JSONL snapshot from dir. Records win by newer
// modification time; unknown ids are created. Edges are re-linked
// idempotently. A missing relations file is tolerated.
func (m *Manager) ImportJSONL(ctx context.Context, dir string) (*ImportResult, error) {
	f, err := os.Open(filepath.Join(dir, RecordsJSONL))
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	res := &ImportResult{}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec types.Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return res, fmt.Errorf("bad record on line %d: %w", line, err)
		}
		if err := m.mergeRecord(ctx, &rec, res); err != nil {
			return res, err
		}
	}
	if err := sc.Err(); err != nil {
		return res, err
	}

	rf, err := os.Open(filepath.Join(dir, RelationsJSONL))
	if err == nil {
		defer rf.Close()
		sc := bufio.NewScanner(rf)
		for sc.Scan() {
			if len(sc.Bytes()) == 0 {
				continue
			}
			var rel types.Relationship
			if err := json.Unmarshal(sc.Bytes(), &rel); err != nil {
				return res, fmt.Errorf("bad relationship: %w", err)
			}
			if err := m.mergeEdge(ctx, rel, res); err != nil {
				return res, err
			}
		}
		if err := sc.Err(); err != nil {
			return res, err
		}
	} else if !os.IsNotExist(err) {
		return res, err
	}

	m.logger.Info("imported snapshot", "dir", dir,
		"created", res.Created, "updated", res.Updated, "skipped", res.Skipped, "edges", res.Edges)
	return res, nil
}

// parquetRecord is the flat row schema for record snapshots. The full
// record travels as a JSON payload; the indexed columns exist for
// analytical queries over the snapshot.
type parquetRecord struct {
	ID         string    `parquet:"id"`
	Type       string    `parquet:"type"`
	Scope      string    `parquet:"scope"`
	ModifiedAt time.Time `parquet:"modified_at"`
	Payload    string    `parquet:"payload"`
}

type parquetRelation struct {
	SourceID      string    `parquet:"source_id"`
	TargetID      string    `parquet:"target_id"`
	Type          string    `parquet:"type"`
	Bidirectional bool      `parquet:"bidirectional"`
	CreatedAt     time.Time `parquet:"created_at"`
}

// ExportParquet writes the snapshot into dir as two Parquet files.
func (m *Manager) ExportParquet(ctx context.Context, dir string, opts ExportOptions) error {
	recs, edges, err := m.snapshot(ctx, opts)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	rows := make([]parquetRecord, 0, len(recs))
	for _, rec := range recs {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record %s: %w", rec.ID, err)
		}
		rows = append(rows, parquetRecord{
			ID:         rec.ID,
			Type:       rec.Type,
			Scope:      string(rec.Scope),
			ModifiedAt: rec.ModifiedAt,
			Payload:    string(payload),
		})
	}
	if err := parquet.WriteFile(filepath.Join(dir, RecordsParquet), rows); err != nil {
		return fmt.Errorf("failed to write record snapshot: %w", err)
	}

	edgeRows := make([]parquetRelation, 0, len(edges))
	for _, e := range edges {
		edgeRows = append(edgeRows, parquetRelation{
			SourceID:      e.SourceID,
			TargetID:      e.TargetID,
			Type:          e.Type,
			Bidirectional: e.Bidirectional,
			CreatedAt:     e.CreatedAt,
		})
	}
	if err := parquet.WriteFile(filepath.Join(dir, RelationsParquet), edgeRows); err != nil {
		return fmt.Errorf("failed to write relation snapshot: %w", err)
	}

	m.logger.Info("exported parquet snapshot", "dir", dir, "records", len(rows), "edges", len(edgeRows))
	return nil
}

// ImportParquet merges a Parquet snapshot from dir with the same merge
// rules as ImportJSONL.
func (m *Manager) ImportParquet(ctx context.Context, dir string) (*ImportResult, error) {
	rows, err := parquet.ReadFile[parquetRecord](filepath.Join(dir, RecordsParquet))
	if err != nil {
		return nil, fmt.Errorf("failed to read record snapshot: %w", err)
	}

	res := &ImportResult{}
	for _, row := range rows {
		var rec types.Record
		if err := json.Unmarshal([]byte(row.Payload), &rec); err != nil {
			return res, fmt.Errorf("bad payload for record %s: %w", row.ID, err)
		}
		if err := m.mergeRecord(ctx, &rec, res); err != nil {
			return res, err
		}
	}

	edgeRows, err := parquet.ReadFile[parquetRelation](filepath.Join(dir, RelationsParquet))
	if err == nil {
		for _, row := range edgeRows {
			rel := types.Relationship{
				SourceID:      row.SourceID,
				TargetID:      row.TargetID,
				Type:          row.Type,
				Bidirectional: row.Bidirectional,
				CreatedAt:     row.CreatedAt,
			}
			if err := m.mergeEdge(ctx, rel, res); err != nil {
				return res, err
			}
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return res, err
	}
	return res, nil
}

// mergeRecord applies last-writer-wins by ModifiedAt. Only shared-scope
// records are merged; local records in a foreign snapshot are skipped.
func (m *Manager) mergeRecord(ctx context.Context, rec *types.Record, res *ImportResult) error {
	if rec.Scope != types.ScopeShared {
		res.Skipped++
		return nil
	}
	existing, err := m.records.Get(ctx, rec.ID)
	switch {
	case err == nil:
		if !rec.ModifiedAt.After(existing.ModifiedAt) {
			res.Skipped++
			return nil
		}
		res.Updated++
	case errors.Is(err, types.ErrNotFound):
		res.Created++
	default:
		return err
	}

	if err := m.records.Put(ctx, rec); err != nil {
		return fmt.Errorf("failed to store imported record %s: %w", rec.ID, err)
	}
	if m.reindex != nil {
		if err := m.reindex(ctx, rec); err != nil {
			m.logger.Warn("failed to reindex imported record", "id", rec.ID, "error", err)
		}
	}
	return nil
}

func (m *Manager) mergeEdge(ctx context.Context, rel types.Relationship, res *ImportResult) error {
	// Edges to records that did not survive the merge are dropped.
	if _, err := m.records.Get(ctx, rel.SourceID); err != nil {
		return skipMissing(err)
	}
	if _, err := m.records.Get(ctx, rel.TargetID); err != nil {
		return skipMissing(err)
	}
	if err := m.relations.Link(ctx, rel); err != nil {
		return fmt.Errorf("failed to link imported edge: %w", err)
	}
	res.Edges++
	return nil
}

func skipMissing(err error) error {
	if errors.Is(err, types.ErrNotFound) {
		return nil
	}
	return err
}

// writeAtomic writes a file via a temp sibling and rename.
func writeAtomic(dir, name string, fill func(io.Writer) error) error {
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := fill(w); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, name))
}
