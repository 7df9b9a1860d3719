package store

import (
	"context"
	"sort"
	"time"

	"github.com/soundprediction/recall/pkg/types"
)

// PatchSpec describes a partial record update. Unset fields are untouched.
type PatchSpec struct {
	Content *string

	// Fields maps field name to new value; a nil value removes the field.
	Fields map[string]*types.FieldValue

	AddFiles    []string
	RemoveFiles []string

	Archived *bool

	// ExpiresAt sets a new expiry; ClearExpires removes it. Setting both is
	// rejected.
	ExpiresAt    *time.Time
	ClearExpires bool

	// ExpectVersion enables compare-and-swap: the patch fails with a
	// ConflictError when the stored version differs.
	ExpectVersion *uint64
}

// Empty reports whether the patch changes nothing by construction.
func (p *PatchSpec) Empty() bool {
	return p.Content == nil && len(p.Fields) == 0 && len(p.AddFiles) == 0 &&
		len(p.RemoveFiles) == 0 && p.Archived == nil && p.ExpiresAt == nil && !p.ClearExpires
}

// ListFilter narrows a record scan. The zero value lists every live record:
// expired and archived records are excluded unless explicitly included.
type ListFilter struct {
	Types           []string
	Scope           types.Scope // empty matches both scopes
	IncludeArchived bool
	IncludeExpired  bool
}

func (f *ListFilter) matchType(t string) bool {
	if len(f.Types) == 0 {
		return true
	}
	for _, want := range f.Types {
		if want == t {
			return true
		}
	}
	return false
}

// RecordStore is typed access to flexible-schema memory records.
//
// Get is an administrative read: it returns expired and archived records so
// they stay retrievable by id until physically swept. List is a standard
// read and applies the filter's exclusions. Mutations are serialized
// per-record; different records may be mutated concurrently.
type RecordStore interface {
	Get(ctx context.Context, id string) (*types.Record, error)
	Put(ctx context.Context, rec *types.Record) error
	Patch(ctx context.Context, id string, spec *PatchSpec) (*types.Record, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter *ListFilter) ([]*types.Record, error)

	// TouchAccess increments the access counter of each record that counts
	// as retrieved by a search. It does not bump ModifiedAt.
	TouchAccess(ctx context.Context, ids []string) error

	Close() error
}

// RelationStore persists typed edges between records.
//
// Link is idempotent on the (source, target, type) triple; bidirectional
// edges are stored with their mirror. Unlink removes exactly the matching
// triple and its mirror when bidirectional.
type RelationStore interface {
	Link(ctx context.Context, rel types.Relationship) error
	Unlink(ctx context.Context, source, target, relType string, bidirectional bool) error

	// Edges returns edges leaving the given record, optionally filtered by
	// relationship type.
	Edges(ctx context.Context, recordID string, relTypes []string) ([]types.Relationship, error)

	All(ctx context.Context) ([]types.Relationship, error)

	Close() error
}

// applyPatch applies spec to a clone of rec and reports whether anything
// semantically changed. Shared by both backends so their patch semantics
// cannot drift.
func applyPatch(rec *types.Record, spec *PatchSpec, now time.Time) (*types.Record, bool, error) {
	if spec.ExpiresAt != nil && spec.ClearExpires {
		return nil, false, &types.ValidationError{Field: "expires_at", Reason: "cannot set and clear expiry in one patch"}
	}
	if spec.ExpectVersion != nil && *spec.ExpectVersion != rec.Version {
		return nil, false, &types.ConflictError{ID: rec.ID}
	}

	next := rec.Clone()
	changed := false

	if spec.Content != nil && *spec.Content != next.Content {
		if *spec.Content == "" {
			return nil, false, &types.ValidationError{Field: "content", Reason: "must not be empty"}
		}
		next.Content = *spec.Content
		changed = true
	}

	for name, val := range spec.Fields {
		if val == nil {
			if _, ok := next.Fields[name]; ok {
				delete(next.Fields, name)
				changed = true
			}
			continue
		}
		if next.Fields == nil {
			next.Fields = make(map[string]types.FieldValue)
		}
		if cur, ok := next.Fields[name]; !ok || !cur.Equal(*val) {
			next.Fields[name] = *val
			changed = true
		}
	}

	if len(spec.AddFiles) > 0 || len(spec.RemoveFiles) > 0 {
		files := make(map[string]struct{}, len(next.RelatedFiles))
		for _, f := range next.RelatedFiles {
			files[f] = struct{}{}
		}
		before := len(files)
		for _, f := range spec.AddFiles {
			files[f] = struct{}{}
		}
		added := len(files) != before
		removed := false
		for _, f := range spec.RemoveFiles {
			if _, ok := files[f]; ok {
				delete(files, f)
				removed = true
			}
		}
		if added || removed {
			next.RelatedFiles = next.RelatedFiles[:0]
			for f := range files {
				next.RelatedFiles = append(next.RelatedFiles, f)
			}
			sort.Strings(next.RelatedFiles)
			changed = true
		}
	}

	if spec.Archived != nil && *spec.Archived != next.Archived {
		next.Archived = *spec.Archived
		changed = true
	}

	if spec.ClearExpires && next.ExpiresAt != nil {
		next.ExpiresAt = nil
		changed = true
	}
	if spec.ExpiresAt != nil {
		if next.ExpiresAt == nil || !next.ExpiresAt.Equal(*spec.ExpiresAt) {
			t := *spec.ExpiresAt
			next.ExpiresAt = &t
			changed = true
		}
	}

	if changed {
		next.ModifiedAt = now
		next.Version++
	}
	return next, changed, nil
}
