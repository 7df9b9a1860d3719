package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode"

	_ "modernc.org/sqlite"

	"github.com/soundprediction/recall/pkg/types"
)

// SQLiteLexical is a lexical search provider backed by a SQLite FTS5
// virtual table. bm25 ranks matches; snippet() produces fragments.
type SQLiteLexical struct {
	db *sql.DB
}

// NewSQLiteLexical opens (or creates) the index at dbPath. Use ":memory:"
// for an ephemeral index.
func NewSQLiteLexical(dbPath string) (*SQLiteLexical, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open lexical index: %w", err)
	}
	// A single connection keeps the in-memory variant coherent and it is
	// plenty for an index whose writes are already serialized upstream.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, err
	}
	if _, err := db.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS records_fts USING fts5(id UNINDEXED, record_type UNINDEXED, body)`); err != nil {
		return nil, fmt.Errorf("failed to create fts table: %w", err)
	}
	return &SQLiteLexical{db: db}, nil
}

func (l *SQLiteLexical) Index(ctx context.Context, rec *types.Record) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM records_fts WHERE id = ?", rec.ID); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO records_fts (id, record_type, body) VALUES (?, ?, ?)",
		rec.ID, rec.Type, searchText(rec),
	); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (l *SQLiteLexical) Remove(ctx context.Context, id string) error {
	_, err := l.db.ExecContext(ctx, "DELETE FROM records_fts WHERE id = ?", id)
	return err
}

func (l *SQLiteLexical) Search(ctx context.Context, query string, limit int) ([]LexicalHit, error) {
	match := buildMatchQuery(query)
	if match == "" {
		return nil, nil
	}

	// bm25() is smaller-is-better and negative for matches; negate so
	// RawScore grows with relevance.
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, -bm25(records_fts) AS score, snippet(records_fts, 2, '[', ']', '…', 12)
		FROM records_fts
		WHERE records_fts MATCH ?
		ORDER BY bm25(records_fts)
		LIMIT ?`,
		match, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}
	defer rows.Close()

	var hits []LexicalHit
	for rows.Next() {
		var hit LexicalHit
		var fragment string
		if err := rows.Scan(&hit.ID, &hit.RawScore, &fragment); err != nil {
			return nil, err
		}
		if fragment != "" {
			hit.Fragments = []string{fragment}
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func (l *SQLiteLexical) Close() error { return l.db.Close() }

// buildMatchQuery turns free text (possibly already a disjunction from the
// query expander) into safe FTS5 MATCH syntax: quoted terms joined by OR,
// quoted phrases preserved verbatim.
func buildMatchQuery(query string) string {
	terms := tokenizeQuery(query)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		quoted = append(quoted, `"`+strings.ReplaceAll(t, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// tokenizeQuery splits a query into terms, keeping double-quoted phrases
// intact and dropping the OR connectives an expanded query carries.
func tokenizeQuery(query string) []string {
	var terms []string
	var cur strings.Builder
	inQuote := false
	flush := func() {
		t := strings.TrimSpace(cur.String())
		cur.Reset()
		if t == "" || strings.EqualFold(t, "or") {
			return
		}
		terms = append(terms, t)
	}
	for _, r := range query {
		switch {
		case r == '"':
			if inQuote {
				flush()
			}
			inQuote = !inQuote
		case !inQuote && (unicode.IsSpace(r) || r == ','):
			flush()
		case !inQuote && !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' && r != '.' && r != '/':
			// Punctuation FTS5 would reject acts as a separator.
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return terms
}
