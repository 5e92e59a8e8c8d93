package query

import (
	"regexp"
	"strings"

	"github.com/roach88/selectapi/internal/apierr"
	"github.com/roach88/selectapi/internal/field"
	"github.com/roach88/selectapi/internal/schema"
)

// DefaultMaxDepth bounds sub-selection nesting.
const DefaultMaxDepth = 8

// Term patterns, tried in order on a normalized term. Whitespace around a
// delimiter is ignored.
var (
	slashTerm  = regexp.MustCompile(`^([a-z0-9_]+)\s*/\s*(.*)$`)
	parenTerm  = regexp.MustCompile(`^([a-z0-9_]+)\s*\((.*)\)$`)
	formatTerm = regexp.MustCompile(`^([a-z0-9_]+)\s*\.\s*([a-z0-9_]+)$`)
	bareTerm   = regexp.MustCompile(`^[a-z0-9_]+$`)
)

// Resolver finds the target schema of a nested field.
// *schema.Registry implements it.
type Resolver interface {
	Resolve(spec *field.Spec) (*schema.Schema, error)
}

// Options controls parsing.
type Options struct {
	// IgnoreInvalid drops unknown and non-selectable names instead of failing.
	IgnoreInvalid bool

	// Generic keeps unknown names as fields without a spec.
	Generic bool

	// OmitID disables inserting the id field at the top level.
	OmitID bool

	// MaxDepth bounds nesting. Zero means DefaultMaxDepth.
	MaxDepth int
}

// Parse resolves a selection string against s.
//
// An empty selection yields the default fields. Unknown or non-selectable
// names are collected across the whole tree and reported in one validation
// error. Structural problems (unbalanced parentheses, a bad format, a
// sub-selection on a leaf) fail immediately. Unless OmitID is set, the id
// field is inserted first when the selection does not name it. Nested
// selections never get an implicit id.
//
// s may be nil in generic mode, in which case every key is unknown.
func Parse(sel string, s *schema.Schema, res Resolver, opts Options) ([]Field, error) {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if s == nil && !opts.Generic {
		return nil, apierr.Internal("parse without a schema requires generic mode")
	}

	p := &parser{res: res, opts: opts}
	fields, err := p.parse(sel, s, "", 0)
	if err != nil {
		return nil, err
	}
	if len(p.invalid) > 0 && !opts.IgnoreInvalid {
		return nil, apierr.InvalidFields(p.invalid)
	}

	if s != nil && !opts.OmitID {
		id := s.IDField()
		for _, f := range fields {
			if f.Key == id {
				return fields, nil
			}
		}
		fields = append([]Field{{Key: id, Spec: s.ID()}}, fields...)
	}
	return fields, nil
}

// Defaults returns the default selection of s, expanding nested defaults.
func Defaults(s *schema.Schema, res Resolver) ([]Field, error) {
	p := &parser{res: res, opts: Options{MaxDepth: DefaultMaxDepth}}
	return p.defaults(s, 0)
}

// Selectable returns every selectable field of s as a flat selection.
// Nested fields get their target's default selection.
func Selectable(s *schema.Schema, res Resolver) ([]Field, error) {
	p := &parser{res: res, opts: Options{MaxDepth: DefaultMaxDepth}}
	var out []Field
	for _, spec := range s.Selectable() {
		f, err := p.withDefaults(spec, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

type parser struct {
	res     Resolver
	opts    Options
	invalid []string
}

type term struct {
	key    string
	sub    string
	hasSub bool
	format string
}

// same reports whether two terms for one key ask for the same thing.
func (t term) same(o term) bool {
	return t.hasSub == o.hasSub && t.format == o.format &&
		strings.Join(strings.Fields(t.sub), "") == strings.Join(strings.Fields(o.sub), "")
}

func splitTerm(raw string) (term, bool) {
	t := strings.ToLower(strings.TrimSpace(raw))
	if m := slashTerm.FindStringSubmatch(t); m != nil {
		return term{key: m[1], sub: m[2], hasSub: true}, true
	}
	if m := parenTerm.FindStringSubmatch(t); m != nil {
		return term{key: m[1], sub: m[2], hasSub: true}, true
	}
	if m := formatTerm.FindStringSubmatch(t); m != nil {
		return term{key: m[1], format: m[2]}, true
	}
	if bareTerm.MatchString(t) {
		return term{key: t}, true
	}
	return term{key: t}, false
}

func (p *parser) parse(sel string, s *schema.Schema, prefix string, depth int) ([]Field, error) {
	if depth > p.opts.MaxDepth {
		return nil, apierr.Validation("selection nested deeper than %d levels", p.opts.MaxDepth)
	}
	raw, err := SplitTerms(sel)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 && s != nil {
		return p.defaults(s, depth)
	}

	fields := make([]Field, 0, len(raw))
	seen := make(map[string]term, len(raw))
	for _, r := range raw {
		t, ok := splitTerm(r)
		if prev, dup := seen[t.key]; dup {
			if !prev.same(t) {
				return nil, apierr.Validation("field %q selected twice with different sub-selections or formats", prefix+t.key)
			}
			continue
		}
		seen[t.key] = t
		if !ok {
			p.invalid = append(p.invalid, prefix+t.key)
			continue
		}

		var spec *field.Spec
		if s != nil {
			spec, _ = s.Field(t.key)
		}

		if spec == nil {
			if !p.opts.Generic {
				p.invalid = append(p.invalid, prefix+t.key)
				continue
			}
			f := Field{Key: t.key, Format: t.format}
			if t.hasSub {
				f.Sub, err = p.parse(t.sub, nil, prefix+t.key+".", depth+1)
				if err != nil {
					return nil, err
				}
			}
			fields = append(fields, f)
			continue
		}

		if !spec.Selectable {
			p.invalid = append(p.invalid, prefix+t.key)
			continue
		}

		f, err := p.resolve(spec, t, prefix, depth)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func (p *parser) resolve(spec *field.Spec, t term, prefix string, depth int) (Field, error) {
	f := Field{Key: spec.Name, Spec: spec}

	if !spec.Kind.IsNested() {
		if t.hasSub {
			return Field{}, apierr.Validation("field %q does not accept a sub-selection", prefix+t.key)
		}
		if t.format != "" && !spec.AllowsFormat(t.format) {
			return Field{}, apierr.Validation("invalid format %q for field %q", t.format, prefix+t.key)
		}
		f.Format = t.format
		return f, nil
	}

	if t.format != "" {
		return Field{}, apierr.Validation("nested field %q does not accept a format", prefix+t.key)
	}
	target, err := p.res.Resolve(spec)
	if err != nil {
		return Field{}, err
	}
	f.Schema = target
	if t.hasSub {
		f.Sub, err = p.parse(t.sub, target, prefix+t.key+".", depth+1)
	} else {
		f.Sub, err = p.defaults(target, depth+1)
	}
	if err != nil {
		return Field{}, err
	}
	return f, nil
}

func (p *parser) defaults(s *schema.Schema, depth int) ([]Field, error) {
	if depth > p.opts.MaxDepth {
		return nil, apierr.Validation("default selection of %s nested deeper than %d levels", s.Name, p.opts.MaxDepth)
	}
	specs := s.Defaults()
	out := make([]Field, 0, len(specs))
	for _, spec := range specs {
		f, err := p.withDefaults(spec, depth)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (p *parser) withDefaults(spec *field.Spec, depth int) (Field, error) {
	f := Field{Key: spec.Name, Spec: spec}
	if !spec.Kind.IsNested() {
		return f, nil
	}
	target, err := p.res.Resolve(spec)
	if err != nil {
		return Field{}, err
	}
	f.Schema = target
	f.Sub, err = p.defaults(target, depth+1)
	if err != nil {
		return Field{}, err
	}
	return f, nil
}
