package quality

import (
	"context"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/soundprediction/recall/pkg/types"
)

// Validator scores one aspect of a record in [0, 1] and may suggest
// concrete improvements. Validators must be safe for concurrent use.
type Validator interface {
	Name() string
	Validate(ctx context.Context, rec *types.Record) (float64, []string, error)
}

// Completeness thresholds. Content at or above fullContentLen earns full
// credit; shorter content earns proportionally less.
const (
	fullContentLen = 120
	minContentLen  = 20
)

// CompletenessValidator rewards records that carry enough substance to be
// useful later: meaningful content, structured fields, file links.
type CompletenessValidator struct{}

func (CompletenessValidator) Name() string { return "completeness" }

func (CompletenessValidator) Validate(_ context.Context, rec *types.Record) (float64, []string, error) {
	var suggestions []string

	contentLen := len(strings.TrimSpace(rec.Content))
	contentScore := float64(contentLen) / fullContentLen
	if contentScore > 1 {
		contentScore = 1
	}
	if contentLen < minContentLen {
		suggestions = append(suggestions, "content is very short; capture enough detail to be useful out of context")
	}

	fieldScore := 0.0
	if len(rec.Fields) > 0 {
		fieldScore = 1
	} else {
		suggestions = append(suggestions, "no custom fields; add structured attributes so the record can be filtered")
	}

	fileScore := 0.0
	if len(rec.RelatedFiles) > 0 {
		fileScore = 1
	} else {
		suggestions = append(suggestions, "no related files; link the code this knowledge is about")
	}

	score := 0.6*contentScore + 0.2*fieldScore + 0.2*fileScore
	return score, suggestions, nil
}

// ConsistencyValidator checks that the record's bookkeeping is internally
// coherent: sane timestamps, a known type, no contradictory lifecycle
// state.
type ConsistencyValidator struct{}

func (ConsistencyValidator) Name() string { return "consistency" }

var wellKnownTypes = map[string]struct{}{
	types.TypeArchitecturalDecision: {},
	types.TypeCodePattern:           {},
	types.TypeTechnicalDebt:         {},
	types.TypeSessionInsight:        {},
	types.TypeWorkingNote:           {},
}

func (ConsistencyValidator) Validate(_ context.Context, rec *types.Record) (float64, []string, error) {
	score := 1.0
	var suggestions []string

	if rec.ModifiedAt.Before(rec.CreatedAt) {
		score -= 0.4
		suggestions = append(suggestions, "modified timestamp precedes creation; the record history is corrupt")
	}
	if rec.ExpiresAt != nil && !rec.ExpiresAt.After(rec.CreatedAt) {
		score -= 0.3
		suggestions = append(suggestions, "expiry is not after creation; the record was born expired")
	}
	if _, known := wellKnownTypes[rec.Type]; !known {
		score -= 0.1
		suggestions = append(suggestions, "record type is not one of the well-known types; consider reclassifying")
	}
	if rec.Archived && rec.ExpiresAt != nil {
		score -= 0.1
		suggestions = append(suggestions, "record is both archived and expiring; pick one retirement path")
	}

	if score < 0 {
		score = 0
	}
	return score, suggestions, nil
}

// RelevanceValidator estimates whether a record still matters: its linked
// files should still exist under the project root and the record should
// see occasional access. Entries with glob metacharacters are matched as
// doublestar patterns against the tree.
type RelevanceValidator struct {
	// Root is the directory related file paths are resolved against.
	// Empty disables the file-existence check.
	Root string

	// StaleAfter marks a record stale when it has not been accessed for
	// this long. Zero means 90 days.
	StaleAfter time.Duration

	now func() time.Time
}

func (v *RelevanceValidator) Name() string { return "relevance" }

func (v *RelevanceValidator) clock() time.Time {
	if v.now != nil {
		return v.now()
	}
	return time.Now()
}

func (v *RelevanceValidator) staleAfter() time.Duration {
	if v.StaleAfter > 0 {
		return v.StaleAfter
	}
	return 90 * 24 * time.Hour
}

func (v *RelevanceValidator) Validate(_ context.Context, rec *types.Record) (float64, []string, error) {
	fileScore := 1.0
	var suggestions []string

	if v.Root != "" && len(rec.RelatedFiles) > 0 {
		root := os.DirFS(v.Root)
		found := 0
		for _, entry := range rec.RelatedFiles {
			if relatedFileExists(root, entry) {
				found++
			}
		}
		fileScore = float64(found) / float64(len(rec.RelatedFiles))
		if found < len(rec.RelatedFiles) {
			suggestions = append(suggestions, "some related files no longer exist; update or remove the stale links")
		}
	}

	freshScore := 1.0
	last := rec.AccessedAt
	if last.IsZero() {
		last = rec.ModifiedAt
	}
	if age := v.clock().Sub(last); age > v.staleAfter() {
		freshScore = 0.5
		suggestions = append(suggestions, "record has not been used recently; review whether it is still accurate")
	}

	return 0.6*fileScore + 0.4*freshScore, suggestions, nil
}

func relatedFileExists(root fs.FS, entry string) bool {
	entry = strings.TrimPrefix(entry, "./")
	if strings.ContainsAny(entry, "*?[{") {
		matches, err := doublestar.Glob(root, entry)
		return err == nil && len(matches) > 0
	}
	_, err := fs.Stat(root, entry)
	return err == nil
}

// DefaultValidators returns the standard validator set rooted at dir.
func DefaultValidators(dir string) []Validator {
	return []Validator{
		CompletenessValidator{},
		ConsistencyValidator{},
		&RelevanceValidator{Root: dir},
	}
}
