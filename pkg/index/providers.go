package index

import (
	"context"
	"sort"
	"strings"

	"github.com/soundprediction/recall/pkg/types"
)

// LexicalHit is one keyword-ranked match. RawScore is provider-scale
// (higher is better) and gets normalized by the merge engine.
type LexicalHit struct {
	ID        string
	RawScore  float64
	Fragments []string
}

// SemanticHit is one embedding-similarity match with similarity in [0,1].
type SemanticHit struct {
	ID         string
	Similarity float64
}

// Lexical is the keyword search provider.
type Lexical interface {
	Index(ctx context.Context, rec *types.Record) error
	Remove(ctx context.Context, id string) error
	Search(ctx context.Context, query string, limit int) ([]LexicalHit, error)
	Close() error
}

// Semantic is the embedding-similarity search provider. Matches below the
// threshold are discarded by the provider before the merge sees them.
type Semantic interface {
	Index(ctx context.Context, rec *types.Record) error
	Remove(ctx context.Context, id string) error
	Search(ctx context.Context, query string, threshold float64, limit int) ([]SemanticHit, error)
	Close() error
}

// searchText flattens a record into the text both indexes operate on:
// content, field values, and related file paths.
func searchText(rec *types.Record) string {
	var b strings.Builder
	b.WriteString(rec.Content)
	names := make([]string, 0, len(rec.Fields))
	for name := range rec.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteString(" ")
		b.WriteString(name)
		b.WriteString(" ")
		b.WriteString(rec.Fields[name].String())
	}
	for _, f := range rec.RelatedFiles {
		b.WriteString(" ")
		b.WriteString(f)
	}
	return b.String()
}
