package types

import (
	"time"
)

// Scope controls durability and backup policy for a record.
type Scope string

const (
	// ScopeShared records are durable, version-controlled, and eligible for
	// export/import as a portable backup.
	ScopeShared Scope = "shared"

	// ScopeLocal records are personal or ephemeral and are excluded from
	// backups by default.
	ScopeLocal Scope = "local"
)

// Well-known record types. The taxonomy is open: any non-empty string is a
// valid record type, these are just the ones the assistant commonly writes.
const (
	TypeArchitecturalDecision = "ArchitecturalDecision"
	TypeCodePattern           = "CodePattern"
	TypeTechnicalDebt         = "TechnicalDebt"
	TypeSessionInsight        = "SessionInsight"
	TypeWorkingNote           = "WorkingNote"
)

// Record is a stored unit of knowledge with flexible custom fields.
type Record struct {
	ID           string                `json:"id"`
	Type         string                `json:"type"`
	Content      string                `json:"content"`
	Fields       map[string]FieldValue `json:"fields,omitempty"`
	RelatedFiles []string              `json:"related_files,omitempty"`
	Scope        Scope                 `json:"scope"`
	CreatedAt    time.Time             `json:"created_at"`
	ModifiedAt   time.Time             `json:"modified_at"`
	AccessCount  int64                 `json:"access_count"`
	AccessedAt   time.Time             `json:"accessed_at,omitzero"`
	ExpiresAt    *time.Time            `json:"expires_at,omitempty"`
	Archived     bool                  `json:"archived"`

	// Version increments on every successful mutation and backs the
	// compare-and-swap discipline for concurrent updates.
	Version uint64 `json:"version"`
}

// Validate checks the invariants required of every stored record.
func (r *Record) Validate() error {
	if r.Type == "" {
		return &ValidationError{Field: "type", Reason: "must not be empty"}
	}
	if r.Content == "" {
		return &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if r.Scope != ScopeShared && r.Scope != ScopeLocal {
		return &ValidationError{Field: "scope", Reason: "must be shared or local"}
	}
	if !r.ModifiedAt.IsZero() && !r.CreatedAt.IsZero() && r.ModifiedAt.Before(r.CreatedAt) {
		return &ValidationError{Field: "modified_at", Reason: "must not precede created_at"}
	}
	return nil
}

// ValidateForCreate additionally requires an assigned ID.
func (r *Record) ValidateForCreate() error {
	if r.ID == "" {
		return &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	return r.Validate()
}

// Expired reports whether the record's TTL has passed. Records without an
// expiry never expire.
func (r *Record) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}

// HasRelatedFile reports whether path is in the record's related file set.
func (r *Record) HasRelatedFile(path string) bool {
	for _, f := range r.RelatedFiles {
		if f == path {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate without racing readers.
func (r *Record) Clone() *Record {
	cp := *r
	if r.Fields != nil {
		cp.Fields = make(map[string]FieldValue, len(r.Fields))
		for k, v := range r.Fields {
			cp.Fields[k] = v.clone()
		}
	}
	if r.RelatedFiles != nil {
		cp.RelatedFiles = append([]string(nil), r.RelatedFiles...)
	}
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		cp.ExpiresAt = &t
	}
	return &cp
}

// Relationship is a typed, optionally bidirectional link between two records.
type Relationship struct {
	SourceID      string    `json:"source_id"`
	TargetID      string    `json:"target_id"`
	Type          string    `json:"type"`
	Bidirectional bool      `json:"bidirectional"`
	CreatedAt     time.Time `json:"created_at"`
}

// Validate rejects self-loops and incomplete edges.
func (rel *Relationship) Validate() error {
	if rel.SourceID == "" || rel.TargetID == "" {
		return &ValidationError{Field: "relationship", Reason: "source and target are required"}
	}
	if rel.SourceID == rel.TargetID {
		return &ValidationError{Field: "relationship", Reason: "self-loops are not allowed"}
	}
	if rel.Type == "" {
		return &ValidationError{Field: "relationship", Reason: "relationship type is required"}
	}
	return nil
}

// Mirror returns the reverse edge of a bidirectional relationship.
func (rel Relationship) Mirror() Relationship {
	rel.SourceID, rel.TargetID = rel.TargetID, rel.SourceID
	return rel
}
