package surface

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// ErrParameterRejected is the root of every parameter rejection.
var ErrParameterRejected = errors.New("parameter rejected")

// ErrNoParameters is returned by surfaces that declare no parameters.
var ErrNoParameters = fmt.Errorf("%w: no parameters implemented by default", ErrParameterRejected)

// ParamError describes why a specific parameter change was rejected.
type ParamError struct {
	Key    string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("parameter %q rejected: %s", e.Key, e.Reason)
}

func (e *ParamError) Unwrap() error { return ErrParameterRejected }

func rejectf(key, format string, args ...any) error {
	return &ParamError{Key: key, Reason: fmt.Sprintf(format, args...)}
}

// ParamKind is the value type of a parameter.
type ParamKind int

const (
	KindFloat ParamKind = iota
	KindInt
	KindBool
	KindColor
)

func (k ParamKind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindColor:
		return "color"
	default:
		return "unknown"
	}
}

// Param is a named, typed value exposed by a surface for editing.
// When Bounded is set, Min and Max bound numeric kinds inclusively.
type Param struct {
	Key         string    `json:"key"`
	Kind        ParamKind `json:"kind"`
	Value       any       `json:"value"`
	Bounded     bool      `json:"bounded"`
	Min         float64   `json:"min"`
	Max         float64   `json:"max"`
	Description string    `json:"description,omitempty"`
}

// FloatParam declares a float parameter bounded to [min, max].
func FloatParam(key string, value, min, max float64, desc string) Param {
	return Param{Key: key, Kind: KindFloat, Value: value, Bounded: true, Min: min, Max: max, Description: desc}
}

// IntParam declares an int parameter bounded to [min, max].
func IntParam(key string, value, min, max int, desc string) Param {
	return Param{Key: key, Kind: KindInt, Value: value, Bounded: true, Min: float64(min), Max: float64(max), Description: desc}
}

// BoolParam declares a boolean parameter.
func BoolParam(key string, value bool, desc string) Param {
	return Param{Key: key, Kind: KindBool, Value: value, Description: desc}
}

// ColorParam declares a color parameter.
func ColorParam(key string, value color.NRGBA, desc string) Param {
	return Param{Key: key, Kind: KindColor, Value: value, Description: desc}
}

// Float returns the value as a float64.
func (p Param) Float() (float64, error) {
	switch v := p.Value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, rejectf(p.Key, "not a number: %q", v)
		}
		return f, nil
	}
	return 0, rejectf(p.Key, "expected number, got %T", p.Value)
}

// Int returns the value as an int. Floats must be integral.
func (p Param) Int() (int, error) {
	switch v := p.Value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint32:
		return int(v), nil
	}
	f, err := p.Float()
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, rejectf(p.Key, "expected integer, got %v", f)
	}
	return int(f), nil
}

// Bool returns the value as a bool.
func (p Param) Bool() (bool, error) {
	switch v := p.Value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, rejectf(p.Key, "not a boolean: %q", v)
		}
		return b, nil
	}
	return false, rejectf(p.Key, "expected bool, got %T", p.Value)
}

// Color returns the value as a color. Strings use #rrggbb or #rrggbbaa.
func (p Param) Color() (color.NRGBA, error) {
	switch v := p.Value.(type) {
	case color.NRGBA:
		return v, nil
	case color.Color:
		return color.NRGBAModel.Convert(v).(color.NRGBA), nil
	case string:
		c, err := ParseColor(v)
		if err != nil {
			return color.NRGBA{}, rejectf(p.Key, "%v", err)
		}
		return c, nil
	}
	return color.NRGBA{}, rejectf(p.Key, "expected color, got %T", p.Value)
}

// ParseColor parses #rrggbb or #rrggbbaa.
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 && len(s) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	if len(s) == 6 {
		s += "ff"
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return color.NRGBA{R: uint8(n >> 24), G: uint8(n >> 16), B: uint8(n >> 8), A: uint8(n)}, nil
}

// FormatColor renders c as #rrggbbaa.
func FormatColor(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// Lookup returns the parameter with the given key.
func Lookup(params []Param, key string) (Param, bool) {
	for _, p := range params {
		if p.Key == key {
			return p, true
		}
	}
	return Param{}, false
}

// Resolve checks p against the declared parameters and returns it with its
// value converted to the canonical Go type of the declared kind
// (float64, int, bool or color.NRGBA). Unknown keys and out-of-range values
// are rejected.
func Resolve(decls []Param, p Param) (Param, error) {
	decl, ok := Lookup(decls, p.Key)
	if !ok {
		return Param{}, rejectf(p.Key, "unknown parameter")
	}
	out := decl
	switch decl.Kind {
	case KindFloat:
		f, err := p.Float()
		if err != nil {
			return Param{}, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Param{}, rejectf(p.Key, "value %v is not finite", f)
		}
		if err := checkRange(decl, f); err != nil {
			return Param{}, err
		}
		out.Value = f
	case KindInt:
		i, err := p.Int()
		if err != nil {
			return Param{}, err
		}
		if err := checkRange(decl, float64(i)); err != nil {
			return Param{}, err
		}
		out.Value = i
	case KindBool:
		b, err := p.Bool()
		if err != nil {
			return Param{}, err
		}
		out.Value = b
	case KindColor:
		c, err := p.Color()
		if err != nil {
			return Param{}, err
		}
		out.Value = c
	default:
		return Param{}, rejectf(p.Key, "unsupported kind %v", decl.Kind)
	}
	return out, nil
}

func checkRange(decl Param, v float64) error {
	if !decl.Bounded {
		return nil
	}
	if v < decl.Min || v > decl.Max {
		return rejectf(decl.Key, "value %v outside [%v, %v]", v, decl.Min, decl.Max)
	}
	return nil
}
