package search

import (
	"fmt"
	"math"
	"sort"

	"github.com/soundprediction/recall/pkg/index"
	"github.com/soundprediction/recall/pkg/types"
)

// Strategy selects the algorithm fusing lexical and semantic result sets.
type Strategy string

const (
	StrategyLinear         Strategy = "linear"
	StrategyReciprocal     Strategy = "reciprocal"
	StrategyMultiplicative Strategy = "multiplicative"
)

// RRF constant, same value the rank-fusion literature (and our earlier
// searcher) uses.
const rrfK = 60

// MergeConfig tunes the hybrid merge.
type MergeConfig struct {
	Strategy          Strategy `mapstructure:"strategy"`
	LexicalWeight     float64  `mapstructure:"lexical_weight"`
	SemanticWeight    float64  `mapstructure:"semantic_weight"`
	SemanticThreshold float64  `mapstructure:"semantic_threshold"`
	BothFoundBoost    float64  `mapstructure:"both_found_boost"`
}

// DefaultMergeConfig returns the documented defaults: linear strategy,
// 0.6/0.4 weights, 0.2 similarity threshold, 1.2 both-found boost.
func DefaultMergeConfig() MergeConfig {
	return MergeConfig{
		Strategy:          StrategyLinear,
		LexicalWeight:     0.6,
		SemanticWeight:    0.4,
		SemanticThreshold: 0.2,
		BothFoundBoost:    1.2,
	}
}

func (c *MergeConfig) validate() error {
	if c.LexicalWeight < 0 || c.SemanticWeight < 0 || c.LexicalWeight+c.SemanticWeight <= 0 {
		return &types.ValidationError{Field: "weights", Reason: "lexical and semantic weights must sum to a positive value"}
	}
	if c.BothFoundBoost < 1.0 {
		return &types.ValidationError{Field: "both_found_boost", Reason: "must be >= 1.0"}
	}
	switch c.Strategy {
	case StrategyLinear, StrategyReciprocal, StrategyMultiplicative:
	case "":
		c.Strategy = StrategyLinear
	default:
		return &types.ValidationError{Field: "strategy", Reason: fmt.Sprintf("unknown merge strategy %q", c.Strategy)}
	}
	return nil
}

// Merged is one fused candidate before record hydration.
type Merged struct {
	ID        string
	Score     float64
	MatchedBy types.MatchSource
	Fragments []string
}

// Merge fuses the two provider result sets into one ranked candidate list,
// deduplicated by record id and stably sorted by score descending. Either
// side may be empty; the merge then reduces to the other side's ranking.
func Merge(lex []index.LexicalHit, sem []index.SemanticHit, cfg MergeConfig) ([]Merged, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	wSum := cfg.LexicalWeight + cfg.SemanticWeight
	wLex := cfg.LexicalWeight / wSum
	wSem := cfg.SemanticWeight / wSum

	// Threshold filter happens before the merge so sub-threshold semantic
	// matches cannot resurrect via the both-found boost.
	filtered := sem[:0:0]
	for _, h := range sem {
		if h.Similarity >= cfg.SemanticThreshold {
			filtered = append(filtered, h)
		}
	}
	sem = filtered

	maxRaw := 0.0
	for _, h := range lex {
		if h.RawScore > maxRaw {
			maxRaw = h.RawScore
		}
	}

	type side struct {
		norm float64 // normalized score (lexical) or similarity (semantic)
		rank int     // 1-based provider rank
	}
	lexSide := make(map[string]side, len(lex))
	for i, h := range lex {
		norm := 0.0
		if maxRaw > 0 {
			norm = h.RawScore / maxRaw
		}
		lexSide[h.ID] = side{norm: norm, rank: i + 1}
	}
	semSide := make(map[string]side, len(sem))
	for i, h := range sem {
		semSide[h.ID] = side{norm: h.Similarity, rank: i + 1}
	}

	fragments := make(map[string][]string, len(lex))
	for _, h := range lex {
		fragments[h.ID] = h.Fragments
	}

	ids := make([]string, 0, len(lexSide)+len(semSide))
	for _, h := range lex {
		ids = append(ids, h.ID)
	}
	for _, h := range sem {
		if _, dup := lexSide[h.ID]; !dup {
			ids = append(ids, h.ID)
		}
	}

	out := make([]Merged, 0, len(ids))
	for _, id := range ids {
		ls, inLex := lexSide[id]
		ss, inSem := semSide[id]

		var score float64
		switch cfg.Strategy {
		case StrategyLinear:
			score = wLex*ls.norm + wSem*ss.norm
		case StrategyReciprocal:
			if inLex {
				score += wLex / float64(rrfK+ls.rank)
			}
			if inSem {
				score += wSem / float64(rrfK+ss.rank)
			}
			// Scale so a rank-1 hit on both sides lands at 1.0 and scores
			// stay comparable with the other strategies.
			score *= float64(rrfK + 1)
		case StrategyMultiplicative:
			// A missing side contributes 0, not an undefined power.
			if inLex && inSem {
				score = math.Pow(ls.norm, wLex) * math.Pow(ss.norm, wSem)
			} else if inLex {
				score = math.Pow(ls.norm, wLex) * wLex
			} else if inSem {
				score = math.Pow(ss.norm, wSem) * wSem
			}
		}

		matched := types.MatchLexical
		switch {
		case inLex && inSem:
			matched = types.MatchBoth
			score *= cfg.BothFoundBoost
		case inSem:
			matched = types.MatchSemantic
		}

		out = append(out, Merged{
			ID:        id,
			Score:     clamp01(score),
			MatchedBy: matched,
			Fragments: fragments[id],
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
