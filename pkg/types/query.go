package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Wildcard is the query sentinel meaning "match all records".
const Wildcard = "*"

// Ordering keys for query results. Any other non-empty value is treated as
// a custom field name and ordered via FieldValue.Compare.
const (
	OrderScore    = "score"
	OrderCreated  = "created"
	OrderModified = "modified"
	OrderType     = "type"
)

// MatchSource records which provider(s) surfaced a result.
type MatchSource string

const (
	MatchLexical  MatchSource = "lexical"
	MatchSemantic MatchSource = "semantic"
	MatchBoth     MatchSource = "both"
)

// DateRange restricts results by modification time. Either absolute bounds
// or a relative expression ("last-week", "last-30-days") may be given; the
// expression is resolved once per query against a single clock reading.
type DateRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
	Expr string     `json:"expr,omitempty"`
}

// Resolve turns the range into absolute bounds. Relative expressions take
// precedence over absolute bounds when both are present.
func (d *DateRange) Resolve(now time.Time) (from, to time.Time, err error) {
	if d == nil {
		return time.Time{}, time.Time{}, nil
	}
	if d.Expr != "" {
		dur, err := parseRelativeExpr(d.Expr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		return now.Add(-dur), now, nil
	}
	if d.From != nil {
		from = *d.From
	}
	if d.To != nil {
		to = *d.To
	}
	return from, to, nil
}

func parseRelativeExpr(expr string) (time.Duration, error) {
	const day = 24 * time.Hour
	switch strings.ToLower(strings.TrimSpace(expr)) {
	case "last-day", "last-24-hours":
		return day, nil
	case "last-week", "last-7-days":
		return 7 * day, nil
	case "last-month", "last-30-days":
		return 30 * day, nil
	case "last-year", "last-365-days":
		return 365 * day, nil
	}
	// last-N-days
	parts := strings.Split(strings.ToLower(strings.TrimSpace(expr)), "-")
	if len(parts) == 3 && parts[0] == "last" && parts[2] == "days" {
		n, err := strconv.Atoi(parts[1])
		if err == nil && n > 0 {
			return time.Duration(n) * day, nil
		}
	}
	return 0, &ValidationError{Field: "date_range", Reason: fmt.Sprintf("unrecognized relative expression %q", expr)}
}

// Query is the transient value object describing one search.
type Query struct {
	Text      string                `json:"text"`
	Types     []string              `json:"types,omitempty"`
	DateRange *DateRange            `json:"date_range,omitempty"`
	Facets    map[string]FieldValue `json:"facets,omitempty"`

	OrderBy    string `json:"order_by,omitempty"` // defaults to score
	MaxResults int    `json:"max_results,omitempty"`
	Offset     int    `json:"offset,omitempty"`

	IncludeArchived bool `json:"include_archived,omitempty"`

	// V2 feature toggles.
	EnableExpansion bool     `json:"enable_expansion,omitempty"`
	ContextAware    bool     `json:"context_aware,omitempty"`
	CurrentFile     string   `json:"current_file,omitempty"`
	RecentFiles     []string `json:"recent_files,omitempty"`
}

// MatchAll reports whether the query text is empty or the wildcard sentinel.
func (q *Query) MatchAll() bool {
	t := strings.TrimSpace(q.Text)
	return t == "" || t == Wildcard
}

// SearchItem is one scored result.
type SearchItem struct {
	Record    *Record     `json:"record"`
	Score     float64     `json:"score"`
	MatchedBy MatchSource `json:"matched_by"`
	Fragments []string    `json:"fragments,omitempty"`
}

// SearchResults is a paginated result page. TotalCount is the number of
// records matching before pagination; Degraded flags that one search
// provider was unavailable and the ranking came from the surviving side.
type SearchResults struct {
	Items      []SearchItem `json:"items"`
	TotalCount int          `json:"total_count"`
	Degraded   bool         `json:"degraded,omitempty"`
	Advisories []string     `json:"advisories,omitempty"`
}

// QualityReport is the outcome of assessing a single record. It is computed
// on demand and not persisted unless the caller stores it back.
type QualityReport struct {
	RecordID        string             `json:"record_id"`
	OverallScore    float64            `json:"overall_score"`
	ValidatorScores map[string]float64 `json:"validator_scores"`
	Suggestions     []string           `json:"suggestions,omitempty"`
	BelowThreshold  bool               `json:"below_threshold"`
}

// BatchQualityReport aggregates per-record assessments. Per-record failures
// are captured here rather than aborting the batch.
type BatchQualityReport struct {
	Reports        []*QualityReport  `json:"reports"`
	Failures       map[string]string `json:"failures,omitempty"`
	Assessed       int               `json:"assessed"`
	BelowThreshold int               `json:"below_threshold"`
}
