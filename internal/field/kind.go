package field

import (
	"fmt"
	"strings"
)

// Kind identifies the value type of a field.
type Kind string

const (
	Boolean   Kind = "boolean"
	Integer   Kind = "integer"
	Long      Kind = "long"
	Float     Kind = "float"
	String    Kind = "string"
	Array     Kind = "array"
	Object    Kind = "object"
	Timestamp Kind = "timestamp"

	// Nested embeds another model's record inline in the owning record.
	Nested Kind = "nested"

	// NestedID references another model by an id stored on the owning record.
	NestedID Kind = "nested_id"

	// Relation lists records of another model whose filter field points back
	// at the owning record.
	Relation Kind = "relation"

	// Association lists related records produced by a named server method.
	Association Kind = "association"
)

var kinds = []Kind{
	Boolean, Integer, Long, Float, String, Array, Object, Timestamp,
	Nested, NestedID, Relation, Association,
}

// Kinds returns every known kind in declaration order.
func Kinds() []Kind {
	return append([]Kind(nil), kinds...)
}

// ParseKind converts a kind name to a Kind. Matching is case-insensitive and
// accepts hyphens in place of underscores.
func ParseKind(s string) (Kind, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for _, k := range kinds {
		if string(k) == norm {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown field kind %q", s)
}

// IsNested reports whether fields of this kind refer to another model.
func (k Kind) IsNested() bool {
	switch k {
	case Nested, NestedID, Relation, Association:
		return true
	}
	return false
}

// IsList reports whether the projected value is a list of records.
func (k Kind) IsList() bool {
	return k == Relation || k == Association
}

// IsStored reports whether the value lives on the owning record.
// Relation and association values are always computed.
func (k Kind) IsStored() bool {
	return k != Relation && k != Association && k != NestedID
}

// DefaultFormats returns the formats a kind accepts when none are declared.
func (k Kind) DefaultFormats() []string {
	if k == Timestamp {
		return []string{FormatMillis, FormatISO, FormatUnix}
	}
	return nil
}
