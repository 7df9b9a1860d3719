package index

import (
	"context"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/soundprediction/recall/pkg/types"
)

const semanticCollection = "records"

// EmbeddingFunc turns text into a vector. Callers plug in whichever
// embedding backend they use; chromem-go ships adapters for the common
// hosted APIs and local runtimes.
type EmbeddingFunc = chromem.EmbeddingFunc

// ChromemSemantic is a semantic search provider backed by chromem-go, a
// pure-Go embedded vector database. Vectors come from the caller-supplied
// embedding function; this provider never computes embeddings itself.
type ChromemSemantic struct {
	db  *chromem.DB
	col *chromem.Collection
	mu  sync.Mutex
}

// NewChromemSemantic creates the provider. With persistPath empty the
// collection lives in memory only.
func NewChromemSemantic(persistPath string, embed chromem.EmbeddingFunc) (*ChromemSemantic, error) {
	if embed == nil {
		return nil, &types.ValidationError{Field: "embedding_func", Reason: "an embedding function is required"}
	}

	var db *chromem.DB
	var err error
	if persistPath == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(persistPath, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open semantic index: %w", err)
		}
	}

	col, err := db.GetOrCreateCollection(semanticCollection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to open semantic collection: %w", err)
	}
	return &ChromemSemantic{db: db, col: col}, nil
}

func (s *ChromemSemantic) Index(ctx context.Context, rec *types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := chromem.Document{
		ID:      rec.ID,
		Content: searchText(rec),
		Metadata: map[string]string{
			"type":  rec.Type,
			"scope": string(rec.Scope),
		},
	}
	if err := s.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to index record %s: %w", rec.ID, err)
	}
	return nil
}

func (s *ChromemSemantic) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.col.Delete(ctx, nil, nil, id)
}

func (s *ChromemSemantic) Search(ctx context.Context, query string, threshold float64, limit int) ([]SemanticHit, error) {
	// chromem rejects nResults beyond the collection size.
	n := limit
	if c := s.col.Count(); n > c {
		n = c
	}
	if n <= 0 {
		return nil, nil
	}

	results, err := s.col.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("semantic search failed: %w", err)
	}

	hits := make([]SemanticHit, 0, len(results))
	for _, r := range results {
		sim := float64(r.Similarity)
		if sim < threshold {
			continue
		}
		hits = append(hits, SemanticHit{ID: r.ID, Similarity: sim})
	}
	return hits, nil
}

func (s *ChromemSemantic) Close() error { return nil }
