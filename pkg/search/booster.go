package search

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/soundprediction/recall/pkg/types"
)

// BoostConfig tunes the contextual score adjustments applied after the
// merge. All multipliers are >= 1.0; a zero value disables that boost.
type BoostConfig struct {
	RecencyWindow    time.Duration `mapstructure:"recency_window"`
	RecencyBoost     float64       `mapstructure:"recency_boost"`
	FrequencyBoost   float64       `mapstructure:"frequency_boost"`
	CurrentFileBoost float64       `mapstructure:"current_file_boost"`
	RecentFileBoost  float64       `mapstructure:"recent_file_boost"`
}

// DefaultBoostConfig returns the boost defaults used when config is silent.
func DefaultBoostConfig() BoostConfig {
	return BoostConfig{
		RecencyWindow:    7 * 24 * time.Hour,
		RecencyBoost:     1.3,
		FrequencyBoost:   1.2,
		CurrentFileBoost: 1.5,
		RecentFileBoost:  1.2,
	}
}

// Booster applies context-aware score adjustments. It is stateless; the
// request context (current file, recent files) arrives per call.
type Booster struct {
	cfg BoostConfig
	now func() time.Time
}

func NewBooster(cfg BoostConfig) *Booster {
	return &Booster{cfg: cfg, now: time.Now}
}

// SetClock overrides the time source. Test hook.
func (b *Booster) SetClock(now func() time.Time) { b.now = now }

// Boost returns the adjusted score for rec. Boosts apply in a fixed order
// (recency, then frequency, then file context) and the result is clamped
// to [0, 1] so downstream ordering stays on a bounded scale.
func (b *Booster) Boost(score float64, rec *types.Record, q *types.Query) float64 {
	score *= b.recencyFactor(rec)
	score *= b.frequencyFactor(rec)
	if q != nil && q.ContextAware {
		score *= b.fileFactor(rec, q.CurrentFile, q.RecentFiles)
	}
	return clamp01(score)
}

// recencyFactor decays linearly from RecencyBoost at age zero back to 1.0
// at the window edge. Age is measured from the record's modification time,
// or from the last access when that is newer, so a freshly written record
// is boosted even before anything reads it.
func (b *Booster) recencyFactor(rec *types.Record) float64 {
	ref := rec.ModifiedAt
	if rec.AccessedAt.After(ref) {
		ref = rec.AccessedAt
	}
	if b.cfg.RecencyBoost <= 1 || b.cfg.RecencyWindow <= 0 || ref.IsZero() {
		return 1
	}
	age := b.now().Sub(ref)
	if age < 0 {
		age = 0
	}
	if age >= b.cfg.RecencyWindow {
		return 1
	}
	frac := 1 - float64(age)/float64(b.cfg.RecencyWindow)
	return 1 + (b.cfg.RecencyBoost-1)*frac
}

// frequencyFactor saturates: the boost approaches FrequencyBoost as the
// access count grows, with half the effect at five accesses.
func (b *Booster) frequencyFactor(rec *types.Record) float64 {
	if b.cfg.FrequencyBoost <= 1 || rec.AccessCount <= 0 {
		return 1
	}
	n := float64(rec.AccessCount)
	return 1 + (b.cfg.FrequencyBoost-1)*(n/(n+5))
}

// fileFactor matches the record's related files against the session's
// current and recently touched files. The current file wins over recent
// files; only the strongest factor applies.
func (b *Booster) fileFactor(rec *types.Record, current string, recent []string) float64 {
	if len(rec.RelatedFiles) == 0 {
		return 1
	}
	if current != "" && b.cfg.CurrentFileBoost > 1 && matchesAny(rec.RelatedFiles, current) {
		return b.cfg.CurrentFileBoost
	}
	if b.cfg.RecentFileBoost > 1 {
		for _, f := range recent {
			if matchesAny(rec.RelatedFiles, f) {
				return b.cfg.RecentFileBoost
			}
		}
	}
	return 1
}

// matchesAny reports whether file matches one of the record's related
// paths. Entries containing glob metacharacters are treated as doublestar
// patterns; plain entries compare by cleaned path, falling back to a
// basename match so "auth.go" relates to "internal/auth/auth.go".
func matchesAny(related []string, file string) bool {
	file = filepath.ToSlash(filepath.Clean(file))
	for _, r := range related {
		r = filepath.ToSlash(filepath.Clean(r))
		if strings.ContainsAny(r, "*?[{") {
			if ok, err := doublestar.Match(r, file); err == nil && ok {
				return true
			}
			continue
		}
		if r == file || filepath.Base(r) == filepath.Base(file) {
			return true
		}
	}
	return false
}
