package search

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
	"gopkg.in/yaml.v3"

	"github.com/soundprediction/recall/pkg/types"
)

const expansionCacheSize = 512

// Expander rewrites a raw query into a disjunction of the original terms
// and their synonyms. Quoted phrases pass through verbatim; unknown tokens
// pass through unexpanded. Expansion is idempotent: expanding an already
// expanded query adds nothing.
type Expander struct {
	synonyms map[string][]string
	cache    *lru.Cache[string, string]
}

// NewExpander builds an expander over a synonym table mapping a lowercase
// term to its related terms.
func NewExpander(synonyms map[string][]string) *Expander {
	cache, _ := lru.New[string, string](expansionCacheSize)
	normalized := make(map[string][]string, len(synonyms))
	for term, related := range synonyms {
		normalized[strings.ToLower(term)] = related
	}
	return &Expander{synonyms: normalized, cache: cache}
}

// LoadSynonyms reads a YAML synonym table: a mapping of term to a list of
// related terms.
func LoadSynonyms(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read synonym table: %w", err)
	}
	var table map[string][]string
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse synonym table: %w", err)
	}
	return table, nil
}

// Expand rewrites the query. Empty and wildcard queries pass through
// unchanged. Expansion never fails: a query with nothing to expand comes
// back as a normalized disjunction of its own terms.
func (e *Expander) Expand(query string) string {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" || trimmed == types.Wildcard {
		return query
	}
	if cached, ok := e.cache.Get(trimmed); ok {
		return cached
	}

	tokens := splitQuery(trimmed)
	seen := make(map[string]struct{}, len(tokens)*2)
	var out []string
	add := func(term string, phrase bool) {
		key := strings.ToLower(term)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		if phrase || strings.ContainsAny(term, " \t") {
			out = append(out, `"`+term+`"`)
		} else {
			out = append(out, term)
		}
	}

	for _, tok := range tokens {
		add(tok.text, tok.phrase)
		if tok.phrase {
			continue // no expansion inside quotes
		}
		for _, syn := range e.synonyms[strings.ToLower(tok.text)] {
			add(syn, false)
		}
	}

	expanded := strings.Join(out, " OR ")
	e.cache.Add(trimmed, expanded)
	e.cache.Add(expanded, expanded) // expanding the expansion is a no-op
	return expanded
}

type queryToken struct {
	text   string
	phrase bool
}

// splitQuery tokenizes a raw or already-expanded query, keeping quoted
// phrases whole and dropping OR connectives.
func splitQuery(query string) []queryToken {
	var tokens []queryToken
	var cur strings.Builder
	inQuote := false
	flush := func(phrase bool) {
		t := strings.TrimSpace(cur.String())
		cur.Reset()
		if t == "" || (!phrase && strings.EqualFold(t, "or")) {
			return
		}
		tokens = append(tokens, queryToken{text: t, phrase: phrase})
	}
	for _, r := range query {
		switch {
		case r == '"':
			if inQuote {
				flush(true)
			} else {
				flush(false)
			}
			inQuote = !inQuote
		case !inQuote && unicode.IsSpace(r):
			flush(false)
		default:
			cur.WriteRune(r)
		}
	}
	flush(inQuote)
	return tokens
}
