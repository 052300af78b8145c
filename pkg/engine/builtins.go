package engine

import (
	"errors"
	"fmt"
	"image/color"
	"sort"
	"strings"

	"github.com/chazu/sdfview/pkg/shape"
	"github.com/chazu/sdfview/pkg/surface"
	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms scene Lisp source code before passing it to
// zygomys. It performs three transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: my-shape -> my_shape
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). Keywords keep their hyphens.
//
//  3. Line comments: ; -> //
//
// All transformations respect string literal boundaries.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				result = append(result, '"')
				result = append(result, kwPrefix...)
				result = append(result, b[i+1:j]...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Only when the hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVec3 wraps a vector.
type sexpVec3 struct {
	vec v3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpColor wraps a color.
type sexpColor struct {
	c color.NRGBA
}

func (c *sexpColor) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(color %q)", surface.FormatColor(c.c))
}
func (c *sexpColor) Type() *zygo.RegisteredType { return nil }

// sexpSurface wraps a surface so it can be returned from one builtin and
// consumed by another.
type sexpSurface struct {
	s surface.Surface
}

func (s *sexpSurface) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(surface %q #%d)", surface.Name(s.s), surface.ID(s.s))
}
func (s *sexpSurface) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value: treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// take removes and returns a keyword argument.
func (a kwArgs) take(key string) (zygo.Sexp, bool) {
	v, ok := a.kw[key]
	delete(a.kw, key)
	return v, ok
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toUint32 extracts a non-negative integer id.
func toUint32(s zygo.Sexp) (uint32, error) {
	v, ok := s.(*zygo.SexpInt)
	if !ok {
		return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
	}
	if v.Val < 0 || v.Val > int64(^uint32(0)) {
		return 0, fmt.Errorf("integer %d out of range", v.Val)
	}
	return uint32(v.Val), nil
}

// toVec3 extracts a vector from a sexpVec3. A plain number n yields (n,n,n).
func toVec3(s zygo.Sexp) (v3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	if f, err := toFloat64(s); err == nil {
		return v3.Vec{X: f, Y: f, Z: f}, nil
	}
	return v3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// toSurface extracts a surface from a sexpSurface.
func toSurface(s zygo.Sexp) (surface.Surface, error) {
	if v, ok := s.(*sexpSurface); ok {
		return v.s, nil
	}
	return nil, fmt.Errorf("expected shape, got %T (%s)", s, s.SexpString(nil))
}

// toParamValue converts a Sexp into a value surface.Resolve understands.
func toParamValue(s zygo.Sexp) (any, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return v.Val, nil
	case *zygo.SexpFloat:
		return v.Val, nil
	case *zygo.SexpStr:
		return v.S, nil
	case *zygo.SexpBool:
		return v.Val, nil
	case *sexpColor:
		return v.c, nil
	}
	return nil, fmt.Errorf("expected number, string, bool or color, got %T (%s)", s, s.SexpString(nil))
}

// toChannel converts a number in [0, 255] to a color channel.
func toChannel(s zygo.Sexp) (uint8, error) {
	f, err := toFloat64(s)
	if err != nil {
		return 0, err
	}
	if f < 0 || f > 255 {
		return 0, fmt.Errorf("channel %v outside [0, 255]", f)
	}
	return uint8(f), nil
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// surfaceArgs flattens positional arguments into surfaces. Lists and arrays
// of shapes are spliced in place.
func surfaceArgs(args []zygo.Sexp) ([]surface.Surface, error) {
	var out []surface.Surface
	for i, a := range args {
		if s, err := toSurface(a); err == nil {
			out = append(out, s)
			continue
		}
		items, err := sexpListToSlice(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: expected shape, got %T (%s)", i+1, a, a.SexpString(nil))
		}
		nested, err := surfaceArgs(items)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out = append(out, nested...)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Identity
// ---------------------------------------------------------------------------

var errDuplicateID = errors.New("duplicate id")

// identity consumes :id and :name. Without :id the next free id is used;
// without :name the shape is called kind-id.
func (b *builder) identity(kind string, pa kwArgs) (uint32, string, error) {
	var id uint32
	if v, ok := pa.take("id"); ok {
		n, err := toUint32(v)
		if err != nil {
			return 0, "", fmt.Errorf("id: %w", err)
		}
		if n == 0 {
			return 0, "", fmt.Errorf("id: 0 is reserved for the scene root")
		}
		if prev, taken := b.ids[n]; taken {
			return 0, "", fmt.Errorf("id %d: %w (already used by %q)", n, errDuplicateID, prev)
		}
		id = n
	} else {
		for {
			b.nextID++
			if _, taken := b.ids[b.nextID]; !taken {
				break
			}
		}
		id = b.nextID
	}

	name := fmt.Sprintf("%s-%d", kind, id)
	if v, ok := pa.take("name"); ok {
		s, err := toString(v)
		if err != nil {
			return 0, "", fmt.Errorf("name: %w", err)
		}
		name = s
	}
	b.ids[id] = name
	return id, name, nil
}

// add records a new shape and returns it to Lisp.
func (b *builder) add(s surface.Surface) zygo.Sexp {
	b.created = append(b.created, s)
	return &sexpSurface{s: s}
}

// consume marks children as owned by a parent so they are not collected
// as top-level shapes.
func (b *builder) consume(children ...surface.Surface) {
	for _, c := range children {
		b.consumed[c] = true
	}
}

// applyParams sets every remaining keyword argument as a surface parameter.
// Declared parameters are applied in declaration order so that dependent
// values (a rounding radius after the size) validate against the final
// shape; unknown keywords are passed in sorted order and rejected by the
// surface.
func applyParams(s surface.Surface, pa kwArgs) error {
	var order []string
	for _, p := range surface.Parameters(s) {
		if _, ok := pa.kw[p.Key]; ok {
			order = append(order, p.Key)
		}
	}
	var rest []string
	for k := range pa.kw {
		if _, ok := surface.Lookup(surface.Parameters(s), k); !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, key := range append(order, rest...) {
		v, err := toParamValue(pa.kw[key])
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if err := surface.SetParameter(s, surface.Param{Key: key, Value: v}); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// shapeFunc builds a shape from its identity and the remaining arguments.
type shapeFunc func(id uint32, name string, pa kwArgs) (surface.Surface, error)

// registerBuiltins installs all scene DSL builtins into a zygomys
// environment. The builtins record what they create in b.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, b *builder) {

	// shapeBuiltin wraps a constructor with identity handling and generic
	// parameter application.
	shapeBuiltin := func(kind string, build shapeFunc) {
		env.AddFunction(kind, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			pa := parseArgs(args)
			id, shapeName, err := b.identity(kind, pa)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", kind, err)
			}
			s, err := build(id, shapeName, pa)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", kind, err)
			}
			if err := applyParams(s, pa); err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", kind, err)
			}
			return b.add(s), nil
		})
	}

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var c [3]float64
		for i, axis := range []string{"x", "y", "z"} {
			f, err := toFloat64(args[i])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %s: %w", axis, err)
			}
			c[i] = f
		}
		return &sexpVec3{vec: v3.Vec{X: c[0], Y: c[1], Z: c[2]}}, nil
	})

	// -----------------------------------------------------------------------
	// (color 255 0 0) (color 255 0 0 128) (color "#ff0000")
	// -----------------------------------------------------------------------
	env.AddFunction("color", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		switch len(args) {
		case 1:
			s, err := toString(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("color: %w", err)
			}
			c, err := surface.ParseColor(s)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("color: %w", err)
			}
			return &sexpColor{c: c}, nil
		case 3, 4:
			ch := [4]uint8{255, 255, 255, 255}
			for i, a := range args {
				v, err := toChannel(a)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("color: channel %d: %w", i, err)
				}
				ch[i] = v
			}
			return &sexpColor{c: color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}}, nil
		}
		return zygo.SexpNull, fmt.Errorf("color requires a hex string or 3-4 channels, got %d arguments", len(args))
	})

	// -----------------------------------------------------------------------
	// (sphere :radius 1 :color (color 255 0 0))
	// -----------------------------------------------------------------------
	shapeBuiltin("sphere", func(id uint32, name string, pa kwArgs) (surface.Surface, error) {
		return shape.NewSphere(id, name, 1)
	})

	// -----------------------------------------------------------------------
	// (box :size (vec3 1 2 3) :round 0.1)
	// -----------------------------------------------------------------------
	shapeBuiltin("box", func(id uint32, name string, pa kwArgs) (surface.Surface, error) {
		size := v3.Vec{X: 1, Y: 1, Z: 1}
		if v, ok := pa.take("size"); ok {
			s, err := toVec3(v)
			if err != nil {
				return nil, fmt.Errorf("size: %w", err)
			}
			size = s
		}
		return shape.NewBox(id, name, size, 0)
	})

	// -----------------------------------------------------------------------
	// (cylinder :height 2 :radius 0.5 :round 0.1)
	// -----------------------------------------------------------------------
	shapeBuiltin("cylinder", func(id uint32, name string, pa kwArgs) (surface.Surface, error) {
		return shape.NewCylinder(id, name, 1, 0.5, 0)
	})

	// -----------------------------------------------------------------------
	// (plane :offset -1)
	// -----------------------------------------------------------------------
	shapeBuiltin("plane", func(id uint32, name string, pa kwArgs) (surface.Surface, error) {
		return shape.NewPlane(id, name, 0), nil
	})

	// -----------------------------------------------------------------------
	// (volume :size (vec3 2 2 2) :res 32 :threshold 0.2)
	// -----------------------------------------------------------------------
	shapeBuiltin("volume", func(id uint32, name string, pa kwArgs) (surface.Surface, error) {
		size := v3.Vec{X: 1, Y: 1, Z: 1}
		if v, ok := pa.take("size"); ok {
			s, err := toVec3(v)
			if err != nil {
				return nil, fmt.Errorf("size: %w", err)
			}
			size = s
		}
		res := 16
		if v, ok := pa.take("res"); ok {
			n, err := toUint32(v)
			if err != nil {
				return nil, fmt.Errorf("res: %w", err)
			}
			if n > shape.MaxBlobRes {
				return nil, fmt.Errorf("res: %d exceeds %d", n, shape.MaxBlobRes)
			}
			res = int(n)
		}
		return shape.NewBlobVolume(id, name, size, res)
	})

	// -----------------------------------------------------------------------
	// (translate (sphere) (vec3 0 1 0))
	// -----------------------------------------------------------------------
	shapeBuiltin("translate", func(id uint32, name string, pa kwArgs) (surface.Surface, error) {
		if len(pa.positional) < 1 || len(pa.positional) > 2 {
			return nil, fmt.Errorf("requires a shape and an optional offset, got %d arguments", len(pa.positional))
		}
		child, err := toSurface(pa.positional[0])
		if err != nil {
			return nil, fmt.Errorf("child: %w", err)
		}
		var offset v3.Vec
		if len(pa.positional) == 2 {
			if offset, err = toVec3(pa.positional[1]); err != nil {
				return nil, fmt.Errorf("offset: %w", err)
			}
		}
		b.consume(child)
		return shape.NewTranslate(id, name, child, offset), nil
	})

	// -----------------------------------------------------------------------
	// (union a b c)
	// -----------------------------------------------------------------------
	shapeBuiltin("union", func(id uint32, name string, pa kwArgs) (surface.Surface, error) {
		children, err := surfaceArgs(pa.positional)
		if err != nil {
			return nil, err
		}
		b.consume(children...)
		return shape.NewUnion(id, name, children...), nil
	})

	// -----------------------------------------------------------------------
	// (scene a b c)
	// -----------------------------------------------------------------------
	env.AddFunction("scene", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if b.scene != nil {
			return zygo.SexpNull, fmt.Errorf("scene: already defined")
		}
		pa := parseArgs(args)
		sceneName := "scene"
		if v, ok := pa.take("name"); ok {
			s, err := toString(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("scene: name: %w", err)
			}
			sceneName = s
		}
		if len(pa.kw) > 0 {
			return zygo.SexpNull, fmt.Errorf("scene: unexpected keyword :%s", firstKey(pa.kw))
		}
		children, err := surfaceArgs(pa.positional)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("scene: %w", err)
		}
		b.consume(children...)
		b.scene = shape.NewUnion(0, sceneName, children...)
		return &sexpSurface{s: b.scene}, nil
	})
}

func firstKey(m map[string]zygo.Sexp) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[0]
}
