package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordValidate(t *testing.T) {
	now := time.Now()
	rec := &Record{
		ID:         "r1",
		Type:       TypeCodePattern,
		Content:    "prefer context-aware constructors",
		Scope:      ScopeShared,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	require.NoError(t, rec.ValidateForCreate())

	missing := &Record{ID: "r2", Type: TypeCodePattern, Scope: ScopeShared}
	err := missing.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, &ValidationError{})

	backwards := &Record{
		ID:         "r3",
		Type:       TypeCodePattern,
		Content:    "x",
		Scope:      ScopeLocal,
		CreatedAt:  now,
		ModifiedAt: now.Add(-time.Hour),
	}
	assert.Error(t, backwards.Validate())
}

func TestRecordExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.False(t, (&Record{}).Expired(now))
	assert.True(t, (&Record{ExpiresAt: &past}).Expired(now))
	assert.False(t, (&Record{ExpiresAt: &future}).Expired(now))
}

func TestRelationshipValidate(t *testing.T) {
	ok := &Relationship{SourceID: "a", TargetID: "b", Type: "relatedTo"}
	require.NoError(t, ok.Validate())

	selfLoop := &Relationship{SourceID: "a", TargetID: "a", Type: "relatedTo"}
	assert.Error(t, selfLoop.Validate())

	untyped := &Relationship{SourceID: "a", TargetID: "b"}
	assert.Error(t, untyped.Validate())
}

func TestFieldValueEqualAndCompare(t *testing.T) {
	assert.True(t, StringValue("open").Equal(StringValue("open")))
	assert.False(t, StringValue("open").Equal(StringValue("closed")))
	assert.False(t, StringValue("1").Equal(NumberValue(1)))

	// Numbers order before strings, strings before bools.
	assert.Equal(t, -1, NumberValue(3).Compare(StringValue("a")))
	assert.Equal(t, -1, StringValue("a").Compare(BoolValue(false)))
	assert.Equal(t, -1, NumberValue(1).Compare(NumberValue(2)))
	assert.Equal(t, 1, StringValue("b").Compare(StringValue("a")))
}

func TestFieldValueJSONRoundTrip(t *testing.T) {
	list, err := ListValue(StringValue("go"), StringValue("sqlite"))
	require.NoError(t, err)

	fields := map[string]FieldValue{
		"status":   StringValue("active"),
		"priority": NumberValue(2),
		"pinned":   BoolValue(true),
		"tags":     list,
	}

	data, err := json.Marshal(fields)
	require.NoError(t, err)

	var decoded map[string]FieldValue
	require.NoError(t, json.Unmarshal(data, &decoded))

	for k, v := range fields {
		assert.True(t, v.Equal(decoded[k]), "field %s should round-trip", k)
	}
}

func TestListValueRejectsNesting(t *testing.T) {
	inner, err := ListValue(StringValue("x"))
	require.NoError(t, err)
	_, err = ListValue(inner)
	assert.Error(t, err)
}

func TestDateRangeResolve(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	from, to, err := (&DateRange{Expr: "last-week"}).Resolve(now)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -7), from)
	assert.Equal(t, now, to)

	from, _, err = (&DateRange{Expr: "last-15-days"}).Resolve(now)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -15), from)

	_, _, err = (&DateRange{Expr: "yesterweek"}).Resolve(now)
	assert.Error(t, err)

	abs := now.Add(-time.Hour)
	from, to, err = (&DateRange{From: &abs}).Resolve(now)
	require.NoError(t, err)
	assert.Equal(t, abs, from)
	assert.True(t, to.IsZero())
}

func TestErrorTaxonomy(t *testing.T) {
	var err error = NewRecordNotFound("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = &ConflictError{ID: "r1"}
	assert.ErrorIs(t, err, ErrConflict)

	err = &ProviderUnavailableError{Provider: "lexical", Err: assert.AnError}
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.ErrorIs(t, err, assert.AnError)
}
