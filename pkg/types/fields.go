package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FieldKind discriminates the variant held by a FieldValue.
type FieldKind string

const (
	KindString FieldKind = "string"
	KindNumber FieldKind = "number"
	KindBool   FieldKind = "bool"
	KindList   FieldKind = "list"
)

// FieldValue is a tagged variant for custom record facets. Lists hold
// scalars only; nested lists are rejected on construction and decode.
type FieldValue struct {
	Kind FieldKind
	Str  string
	Num  float64
	Bool bool
	List []FieldValue
}

func StringValue(s string) FieldValue  { return FieldValue{Kind: KindString, Str: s} }
func NumberValue(n float64) FieldValue { return FieldValue{Kind: KindNumber, Num: n} }
func BoolValue(b bool) FieldValue      { return FieldValue{Kind: KindBool, Bool: b} }

// ListValue builds a list field from scalar values. Nested lists return an
// error rather than silently flattening.
func ListValue(items ...FieldValue) (FieldValue, error) {
	for _, it := range items {
		if it.Kind == KindList {
			return FieldValue{}, &ValidationError{Field: "fields", Reason: "nested lists are not supported"}
		}
	}
	return FieldValue{Kind: KindList, List: items}, nil
}

// Equal reports exact-match equality, the semantics used by facet filters.
func (v FieldValue) Equal(o FieldValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return v.Str == o.Str
	case KindNumber:
		return v.Num == o.Num
	case KindBool:
		return v.Bool == o.Bool
	case KindList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(o.List[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// kindRank defines the total order across kinds used when ordering query
// results by a custom field: numbers, then strings, then bools, then lists.
func (v FieldValue) kindRank() int {
	switch v.Kind {
	case KindNumber:
		return 0
	case KindString:
		return 1
	case KindBool:
		return 2
	default:
		return 3
	}
}

// Compare implements a total order over field values. Values of different
// kinds order by kind rank; lists compare only by length.
func (v FieldValue) Compare(o FieldValue) int {
	if r1, r2 := v.kindRank(), o.kindRank(); r1 != r2 {
		if r1 < r2 {
			return -1
		}
		return 1
	}
	switch v.Kind {
	case KindNumber:
		switch {
		case v.Num < o.Num:
			return -1
		case v.Num > o.Num:
			return 1
		}
		return 0
	case KindString:
		return strings.Compare(v.Str, o.Str)
	case KindBool:
		switch {
		case !v.Bool && o.Bool:
			return -1
		case v.Bool && !o.Bool:
			return 1
		}
		return 0
	default:
		switch {
		case len(v.List) < len(o.List):
			return -1
		case len(v.List) > len(o.List):
			return 1
		}
		return 0
	}
}

// String renders the value for fragments, suggestions, and logs.
func (v FieldValue) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return fmt.Sprintf("%g", v.Num)
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindList:
		parts := make([]string, len(v.List))
		for i, it := range v.List {
			parts[i] = it.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return ""
}

func (v FieldValue) clone() FieldValue {
	if v.Kind != KindList {
		return v
	}
	cp := v
	cp.List = make([]FieldValue, len(v.List))
	copy(cp.List, v.List)
	return cp
}

// MarshalJSON encodes the variant as its natural JSON value.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.Str)
	case KindNumber:
		return json.Marshal(v.Num)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindList:
		return json.Marshal(v.List)
	}
	return nil, fmt.Errorf("unknown field kind %q", v.Kind)
}

// UnmarshalJSON decodes a JSON scalar or array of scalars into the variant.
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fv, err := FieldValueOf(raw)
	if err != nil {
		return err
	}
	*v = fv
	return nil
}

// FieldValueOf converts a decoded JSON value into a FieldValue.
func FieldValueOf(raw any) (FieldValue, error) {
	switch x := raw.(type) {
	case string:
		return StringValue(x), nil
	case float64:
		return NumberValue(x), nil
	case int:
		return NumberValue(float64(x)), nil
	case int64:
		return NumberValue(float64(x)), nil
	case bool:
		return BoolValue(x), nil
	case []any:
		items := make([]FieldValue, 0, len(x))
		for _, it := range x {
			fv, err := FieldValueOf(it)
			if err != nil {
				return FieldValue{}, err
			}
			items = append(items, fv)
		}
		return ListValue(items...)
	}
	return FieldValue{}, &ValidationError{Field: "fields", Reason: fmt.Sprintf("unsupported field value type %T", raw)}
}
