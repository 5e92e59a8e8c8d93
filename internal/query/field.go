// Package query parses client field selections against model schemas.
//
// A selection is a comma-separated list of terms:
//
//	title,author(name,email),comments/id,body
//	created.iso
//
// field(sub) and field/sub select sub-fields of a nested field; the slash
// form consumes the remainder of the selection at its level. field.format
// applies an output format to a leaf. Matching ignores case and surrounding
// whitespace.
package query

import (
	"strings"

	"github.com/roach88/selectapi/internal/field"
	"github.com/roach88/selectapi/internal/schema"
)

// Field is one parsed selection node.
type Field struct {
	// Key is the normalized field name.
	Key string

	// Spec is the resolved field spec. Nil for unknown keys in generic mode.
	Spec *field.Spec

	// Schema is the target schema of a nested field.
	Schema *schema.Schema

	// Sub holds the sub-selection of a nested field.
	Sub []Field

	// Format is the output format of a leaf, or "".
	Format string
}

// Known reports whether the field resolved against a schema.
func (f Field) Known() bool {
	return f.Spec != nil
}

// String renders the field back into selection syntax.
func (f Field) String() string {
	var b strings.Builder
	f.write(&b)
	return b.String()
}

func (f Field) write(b *strings.Builder) {
	b.WriteString(f.Key)
	if f.Format != "" {
		b.WriteByte('.')
		b.WriteString(f.Format)
	}
	if len(f.Sub) > 0 {
		b.WriteByte('(')
		writeFields(b, f.Sub)
		b.WriteByte(')')
	}
}

// Format renders fields back into selection syntax. The output parses to an
// equivalent tree.
func Format(fields []Field) string {
	var b strings.Builder
	writeFields(&b, fields)
	return b.String()
}

func writeFields(b *strings.Builder, fields []Field) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		f.write(b)
	}
}

// Keys returns the keys of fields in order.
func Keys(fields []Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Key
	}
	return out
}
