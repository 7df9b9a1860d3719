package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/soundprediction/recall/pkg/types"
)

const (
	recordPrefix = "r:"
	edgePrefix   = "e:"
)

// BadgerStore is a Badger-backed RecordStore and RelationStore. Badger's
// optimistic transactions give per-key conflict detection, so concurrent
// mutations of the same record surface as ConflictError while different
// records commit independently.
type BadgerStore struct {
	db  *badger.DB
	now func() time.Time
}

// BadgerOptions configures the store backend.
type BadgerOptions struct {
	Path     string
	InMemory bool
}

// NewBadgerStore opens (or creates) the store at opts.Path. With InMemory
// set the store lives entirely in RAM, which tests use.
func NewBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	bopts := badger.DefaultOptions(opts.Path).WithLogger(nil)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return &BadgerStore{db: db, now: time.Now}, nil
}

// SetClock overrides the store's clock. Intended for tests.
func (s *BadgerStore) SetClock(now func() time.Time) { s.now = now }

func recordKey(id string) []byte { return []byte(recordPrefix + id) }

func badgerEdgeKey(source, target, relType string) []byte {
	return []byte(edgePrefix + source + "\x00" + target + "\x00" + relType)
}

func mapBadgerErr(err error, id string) error {
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return types.NewRecordNotFound(id)
	case errors.Is(err, badger.ErrConflict):
		return &types.ConflictError{ID: id}
	default:
		return err
	}
}

func getRecord(txn *badger.Txn, id string) (*types.Record, error) {
	item, err := txn.Get(recordKey(id))
	if err != nil {
		return nil, mapBadgerErr(err, id)
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	var rec types.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", id, err)
	}
	return &rec, nil
}

func setRecord(txn *badger.Txn, rec *types.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", rec.ID, err)
	}
	return txn.Set(recordKey(rec.ID), data)
}

func (s *BadgerStore) Get(ctx context.Context, id string) (*types.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec *types.Record
	err := s.db.View(func(txn *badger.Txn) error {
		var inner error
		rec, inner = getRecord(txn, id)
		return inner
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *BadgerStore) Put(ctx context.Context, rec *types.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := rec.ValidateForCreate(); err != nil {
		return err
	}
	cp := rec.Clone()
	now := s.now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	if cp.ModifiedAt.IsZero() {
		cp.ModifiedAt = cp.CreatedAt
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return setRecord(txn, cp)
	})
	return mapNilOr(err, cp.ID)
}

func (s *BadgerStore) Patch(ctx context.Context, id string, spec *PatchSpec) (*types.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var updated *types.Record
	err := s.db.Update(func(txn *badger.Txn) error {
		rec, err := getRecord(txn, id)
		if err != nil {
			return err
		}
		next, changed, err := applyPatch(rec, spec, s.now())
		if err != nil {
			return err
		}
		updated = next
		if !changed {
			return nil
		}
		return setRecord(txn, next)
	})
	if err != nil {
		return nil, mapNilOr(err, id)
	}
	return updated, nil
}

func (s *BadgerStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(recordKey(id)); err != nil {
			return mapBadgerErr(err, id)
		}
		return txn.Delete(recordKey(id))
	})
	return mapNilOr(err, id)
}

func (s *BadgerStore) List(ctx context.Context, filter *ListFilter) ([]*types.Record, error) {
	if filter == nil {
		filter = &ListFilter{}
	}
	now := s.now()
	var out []*types.Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var rec types.Record
			if err := json.Unmarshal(data, &rec); err != nil {
				return fmt.Errorf("failed to decode record %s: %w", it.Item().Key(), err)
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
			out = append(out, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerStore) TouchAccess(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// One transaction per record keeps the write set small and avoids
	// cross-record conflicts during large result pages.
	now := s.now()
	for _, id := range ids {
		err := s.db.Update(func(txn *badger.Txn) error {
			rec, err := getRecord(txn, id)
			if err != nil {
				return err
			}
			rec.AccessCount++
			rec.AccessedAt = now
			return setRecord(txn, rec)
		})
		if err != nil && !errors.Is(err, types.ErrNotFound) {
			return mapNilOr(err, id)
		}
	}
	return nil
}

func (s *BadgerStore) Link(ctx context.Context, rel types.Relationship) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := rel.Validate(); err != nil {
		return err
	}
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = s.now()
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := putEdgeIfAbsent(txn, rel); err != nil {
			return err
		}
		if rel.Bidirectional {
			return putEdgeIfAbsent(txn, rel.Mirror())
		}
		return nil
	})
}

func putEdgeIfAbsent(txn *badger.Txn, rel types.Relationship) error {
	key := badgerEdgeKey(rel.SourceID, rel.TargetID, rel.Type)
	if _, err := txn.Get(key); err == nil {
		return nil // idempotent re-link
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	data, err := json.Marshal(rel)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

func (s *BadgerStore) Unlink(ctx context.Context, source, target, relType string, bidirectional bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		key := badgerEdgeKey(source, target, relType)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return &types.NotFoundError{Kind: "relationship", ID: source + "->" + target}
			}
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		if bidirectional {
			mkey := badgerEdgeKey(target, source, relType)
			if err := txn.Delete(mkey); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) Edges(ctx context.Context, recordID string, relTypes []string) ([]types.Relationship, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []types.Relationship
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(edgePrefix + recordID + "\x00")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var rel types.Relationship
			if err := json.Unmarshal(data, &rel); err != nil {
				return err
			}
			if len(relTypes) > 0 && !containsString(relTypes, rel.Type) {
				continue
			}
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerStore) All(ctx context.Context) ([]types.Relationship, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []types.Relationship
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(edgePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var rel types.Relationship
			if err := json.Unmarshal(data, &rel); err != nil {
				return err
			}
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func mapNilOr(err error, id string) error {
	if err == nil {
		return nil
	}
	return mapBadgerErr(err, id)
}
