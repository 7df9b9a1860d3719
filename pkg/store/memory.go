package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/soundprediction/recall/pkg/types"
)

// MemoryStore is an in-process RecordStore and RelationStore used by tests
// and throwaway sessions. It mirrors the Badger backend's semantics exactly.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*types.Record
	edges   map[string]types.Relationship

	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*types.Record),
		edges:   make(map[string]types.Relationship),
		now:     time.Now,
	}
}

// SetClock overrides the store's clock. Intended for tests.
func (s *MemoryStore) SetClock(now func() time.Time) { s.now = now }

func (s *MemoryStore) Get(ctx context.Context, id string) (*types.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, types.NewRecordNotFound(id)
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Put(ctx context.Context, rec *types.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := rec.ValidateForCreate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := rec.Clone()
	now := s.now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	if cp.ModifiedAt.IsZero() {
		cp.ModifiedAt = cp.CreatedAt
	}
	s.records[cp.ID] = cp
	return nil
}

func (s *MemoryStore) Patch(ctx context.Context, id string, spec *PatchSpec) (*types.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, types.NewRecordNotFound(id)
	}
	next, changed, err := applyPatch(rec, spec, s.now())
	if err != nil {
		return nil, err
	}
	if changed {
		s.records[id] = next
	}
	return next.Clone(), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return types.NewRecordNotFound(id)
	}
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, filter *ListFilter) ([]*types.Record, error) {
	if filter == nil {
		filter = &ListFilter{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	var out []*types.Record
	for _, rec := range s.records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !filter.matchType(rec.Type) {
			continue
		}
		if filter.Scope != "" && rec.Scope != filter.Scope {
			continue
		}
		if !filter.IncludeArchived && rec.Archived {
			continue
		}
		if !filter.IncludeExpired && rec.Expired(now) {
			continue
		}
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) TouchAccess(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, id := range ids {
		if rec, ok := s.records[id]; ok {
			rec.AccessCount++
			rec.AccessedAt = now
		}
	}
	return nil
}

func edgeKey(source, target, relType string) string {
	return source + "\x00" + target + "\x00" + relType
}

func (s *MemoryStore) Link(ctx context.Context, rel types.Relationship) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := rel.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = s.now()
	}
	key := edgeKey(rel.SourceID, rel.TargetID, rel.Type)
	if _, ok := s.edges[key]; !ok {
		s.edges[key] = rel
	}
	if rel.Bidirectional {
		mirror := rel.Mirror()
		mkey := edgeKey(mirror.SourceID, mirror.TargetID, mirror.Type)
		if _, ok := s.edges[mkey]; !ok {
			s.edges[mkey] = mirror
		}
	}
	return nil
}

func (s *MemoryStore) Unlink(ctx context.Context, source, target, relType string, bidirectional bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := edgeKey(source, target, relType)
	if _, ok := s.edges[key]; !ok {
		return &types.NotFoundError{Kind: "relationship", ID: key}
	}
	delete(s.edges, key)
	if bidirectional {
		delete(s.edges, edgeKey(target, source, relType))
	}
	return nil
}

func (s *MemoryStore) Edges(ctx context.Context, recordID string, relTypes []string) ([]types.Relationship, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Relationship
	prefix := recordID + "\x00"
	for key, rel := range s.edges {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if len(relTypes) > 0 && !containsString(relTypes, rel.Type) {
			continue
		}
		out = append(out, rel)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TargetID != out[j].TargetID {
			return out[i].TargetID < out[j].TargetID
		}
		return out[i].Type < out[j].Type
	})
	return out, nil
}

func (s *MemoryStore) All(ctx context.Context) ([]types.Relationship, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Relationship, 0, len(s.edges))
	for _, rel := range s.edges {
		out = append(out, rel)
	}
	sort.Slice(out, func(i, j int) bool {
		ki := edgeKey(out[i].SourceID, out[i].TargetID, out[i].Type)
		kj := edgeKey(out[j].SourceID, out[j].TargetID, out[j].Type)
		return ki < kj
	})
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func containsString(hay []string, needle string) bool {
	for _, h := range hay {
		if h == needle {
			return true
		}
	}
	return false
}
