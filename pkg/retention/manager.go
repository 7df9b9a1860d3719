package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/soundprediction/recall/pkg/store"
	"github.com/soundprediction/recall/pkg/types"
)

// Deindexer drops a removed record from derived indexes. Wired to the
// search providers by the assembling layer.
type Deindexer func(ctx context.Context, id string) error

// SweepResult summarizes one sweep pass.
type SweepResult struct {
	Deleted  int `json:"deleted"`
	Archived int `json:"archived"`
}

// Manager applies retention policy to the record store.
type Manager struct {
	records store.RecordStore
	deindex Deindexer
	logger  *slog.Logger
	now     func() time.Time
}

func NewManager(records store.RecordStore, deindex Deindexer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{records: records, deindex: deindex, logger: logger, now: time.Now}
}

// SetClock overrides the time source. Test hook.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// Archive marks every live record of recType whose last modification is
// older than olderThanDays as archived. Already archived records are left
// alone, so repeated runs converge: the second pass archives nothing.
func (m *Manager) Archive(ctx context.Context, recType string, olderThanDays int) (int, error) {
	if olderThanDays <= 0 {
		return 0, &types.ValidationError{Field: "older_than_days", Reason: "must be positive"}
	}
	cutoff := m.now().AddDate(0, 0, -olderThanDays)

	recs, err := m.records.List(ctx, &store.ListFilter{Types: []string{recType}})
	if err != nil {
		return 0, err
	}

	archived := 0
	yes := true
	for _, rec := range recs {
		if !rec.ModifiedAt.Before(cutoff) {
			continue
		}
		if _, err := m.records.Patch(ctx, rec.ID, &store.PatchSpec{Archived: &yes}); err != nil {
			return archived, fmt.Errorf("failed to archive %s: %w", rec.ID, err)
		}
		archived++
	}

	m.logger.Info("archival pass complete",
		"type", recType, "older_than_days", olderThanDays, "archived", archived)
	return archived, nil
}

// Sweep removes expired records. Local-scope records are deleted and
// deindexed; shared-scope records are archived instead, since another
// session may still reference them. Records without an expiry are never
// touched.
func (m *Manager) Sweep(ctx context.Context) (*SweepResult, error) {
	now := m.now()
	recs, err := m.records.List(ctx, &store.ListFilter{
		IncludeArchived: true,
		IncludeExpired:  true,
	})
	if err != nil {
		return nil, err
	}

	res := &SweepResult{}
	yes := true
	for _, rec := range recs {
		if !rec.Expired(now) {
			continue
		}
		if rec.Scope == types.ScopeShared {
			if rec.Archived {
				continue
			}
			if _, err := m.records.Patch(ctx, rec.ID, &store.PatchSpec{Archived: &yes}); err != nil {
				return res, fmt.Errorf("failed to archive expired shared record %s: %w", rec.ID, err)
			}
			res.Archived++
			continue
		}
		if err := m.records.Delete(ctx, rec.ID); err != nil {
			return res, fmt.Errorf("failed to sweep %s: %w", rec.ID, err)
		}
		if m.deindex != nil {
			if err := m.deindex(ctx, rec.ID); err != nil {
				m.logger.Warn("failed to deindex swept record", "id", rec.ID, "error", err)
			}
		}
		res.Deleted++
	}

	m.logger.Info("sweep complete", "deleted", res.Deleted, "archived", res.Archived)
	return res, nil
}
