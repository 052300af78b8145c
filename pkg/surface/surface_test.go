package surface

import (
	"errors"
	"math"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// bare implements only the mandatory primitive.
type bare struct{}

func (bare) Sample(p v3.Vec, _ bool) SampleResult {
	return SampleResult{Distance: p.Length() - 1}
}

// plane is the field d(p) = p.y.
type plane struct{}

func (plane) Sample(p v3.Vec, _ bool) SampleResult {
	return SampleResult{Distance: p.Y}
}

// pending reports queued regions one at a time.
type pending struct {
	queue []Box
	calls int
}

func (p *pending) Sample(v3.Vec, bool) SampleResult { return SampleResult{} }

func (p *pending) Changed() (Box, bool) {
	p.calls++
	if len(p.queue) == 0 {
		return Box{}, false
	}
	b := p.queue[0]
	p.queue = p.queue[1:]
	return b, true
}

// group exposes children and relies on DefaultChanged.
type group struct {
	children []Surface
}

func (g *group) Sample(p v3.Vec, m bool) SampleResult {
	best := SampleResult{Distance: math.Inf(1)}
	for _, ch := range g.children {
		if r := ch.Sample(p, m); r.Distance < best.Distance {
			best = r
		}
	}
	return best
}

func (g *group) Children() []Surface { return g.children }

var (
	_ Surface        = bare{}
	_ ChangeReporter = (*pending)(nil)
	_ Composite      = (*group)(nil)
)

func box(x0, y0, z0, x1, y1, z1 float64) Box {
	return Box{Min: v3.Vec{X: x0, Y: y0, Z: z0}, Max: v3.Vec{X: x1, Y: y1, Z: z1}}
}

func TestDefaults(t *testing.T) {
	var s Surface = bare{}
	if got := ID(s); got != 0 {
		t.Errorf("ID() = %d, want 0", got)
	}
	if got := Name(s); got != "Root" {
		t.Errorf("Name() = %q, want %q", got, "Root")
	}
	if got := Parameters(s); len(got) != 0 {
		t.Errorf("Parameters() = %v, want empty", got)
	}
	if got := Children(s); len(got) != 0 {
		t.Errorf("Children() = %v, want empty", got)
	}
	if _, ok := Bounds(s); ok {
		t.Error("Bounds() of an unbounded leaf should be absent")
	}
}

func TestDefaultSetParameterFails(t *testing.T) {
	params := []Param{
		{},
		FloatParam("radius", 1, 0, 10, ""),
		BoolParam("visible", true, ""),
		{Key: "anything", Value: "x"},
	}
	for _, p := range params {
		err := SetParameter(bare{}, p)
		if err == nil {
			t.Fatalf("SetParameter(%q) succeeded on a surface without parameters", p.Key)
		}
		if !errors.Is(err, ErrParameterRejected) {
			t.Errorf("SetParameter(%q) error %v does not wrap ErrParameterRejected", p.Key, err)
		}
		if !errors.Is(err, ErrNoParameters) {
			t.Errorf("SetParameter(%q) error %v is not ErrNoParameters", p.Key, err)
		}
	}
}

func TestChangedLeafIsAbsent(t *testing.T) {
	for i := 0; i < 3; i++ {
		if _, ok := Changed(bare{}); ok {
			t.Fatal("leaf without change tracking reported a change")
		}
	}
}

func TestChangedFirstMatch(t *testing.T) {
	c1 := &pending{}
	c2 := &pending{queue: []Box{box(1, 1, 1, 2, 2, 2)}}
	g := &group{children: []Surface{c1, c2}}

	b, ok := Changed(g)
	if !ok {
		t.Fatal("expected c2's change")
	}
	if b != box(1, 1, 1, 2, 2, 2) {
		t.Errorf("Changed() = %v, want c2's region", b)
	}
	if _, ok := Changed(g); ok {
		t.Error("second call should be absent after c2 drained")
	}
}

func TestChangedDrainsAllChildren(t *testing.T) {
	c1 := &pending{queue: []Box{box(0, 0, 0, 1, 1, 1)}}
	c2 := &pending{queue: []Box{box(5, 5, 5, 6, 6, 6), box(7, 7, 7, 8, 8, 8)}}
	inner := &group{children: []Surface{&pending{queue: []Box{box(-2, -2, -2, -1, -1, -1)}}}}
	g := &group{children: []Surface{c1, inner, c2}}

	var got []Box
	for i := 0; i < 10; i++ {
		b, ok := Changed(g)
		if !ok {
			break
		}
		got = append(got, b)
	}
	if len(got) != 4 {
		t.Fatalf("drained %d regions, want 4: %v", len(got), got)
	}
	want := []Box{
		box(0, 0, 0, 1, 1, 1),
		box(-2, -2, -2, -1, -1, -1),
		box(5, 5, 5, 6, 6, 6),
		box(7, 7, 7, 8, 8, 8),
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("region %d = %v, want %v", i, got[i], want[i])
		}
	}
	if _, ok := Changed(g); ok {
		t.Error("tree should be clean after draining")
	}
}

func TestChangedStopsAtFirstDirtyChild(t *testing.T) {
	c1 := &pending{queue: []Box{box(0, 0, 0, 1, 1, 1)}}
	c2 := &pending{queue: []Box{box(2, 2, 2, 3, 3, 3)}}
	g := &group{children: []Surface{c1, c2}}

	if _, ok := Changed(g); !ok {
		t.Fatal("expected a change")
	}
	if c2.calls != 0 {
		t.Errorf("c2 queried %d times before c1 drained, want 0", c2.calls)
	}
}

func TestNormalPlane(t *testing.T) {
	points := []v3.Vec{{}, {X: 3, Y: 0.5, Z: -2}, {X: -100, Y: 7, Z: 1e3}}
	want := v3.Vec{Y: 1}
	for _, p := range points {
		n := Normal(plane{}, p, 0.001)
		if n.Sub(want).Length() > 1e-3 {
			t.Errorf("Normal(%v) = %v, want %v", p, n, want)
		}
	}
}

func TestNormalSphereIsUnitAndRadial(t *testing.T) {
	points := []v3.Vec{
		{X: 1},
		{Y: -2},
		{X: 0.3, Y: 0.4, Z: -0.5},
		{X: 10, Y: 20, Z: 30},
	}
	for _, p := range points {
		n := Normal(bare{}, p, 0)
		if math.Abs(n.Length()-1) > 1e-6 {
			t.Errorf("|Normal(%v)| = %v, want 1", p, n.Length())
		}
		radial := p.MulScalar(1 / p.Length())
		if n.Sub(radial).Length() > 1e-3 {
			t.Errorf("Normal(%v) = %v, want %v", p, n, radial)
		}
	}
}

// flat has a constant field.
type flat struct{}

func (flat) Sample(v3.Vec, bool) SampleResult { return SampleResult{Distance: 2} }

func TestNormalFlatFieldIsZero(t *testing.T) {
	n := Normal(flat{}, v3.Vec{X: 1}, 0.01)
	if n != (v3.Vec{}) {
		t.Errorf("Normal of constant field = %v, want zero", n)
	}
}

func TestSampleOnSurface(t *testing.T) {
	for _, p := range []v3.Vec{{X: 1}, {Y: -1}, {Z: 1}} {
		if d := (bare{}).Sample(p, false).Distance; math.Abs(d) > 1e-12 {
			t.Errorf("Sample(%v) = %v, want 0", p, d)
		}
	}
}

// named overrides identity.
type named struct {
	Node
}

func (n *named) Sample(v3.Vec, bool) SampleResult { return SampleResult{} }

func TestFindAndWalk(t *testing.T) {
	a := &named{Node: NewNode(1, "a")}
	b := &named{Node: NewNode(2, "b")}
	shared := &named{Node: NewNode(3, "shared")}
	root := &group{children: []Surface{a, &group{children: []Surface{b, shared}}, shared}}

	if s, ok := Find(root, 2); !ok || s != Surface(b) {
		t.Errorf("Find(2) = %v, %v", s, ok)
	}
	if _, ok := Find(root, 42); ok {
		t.Error("Find(42) should fail")
	}

	var names []string
	Walk(root, func(s Surface) bool {
		names = append(names, Name(s))
		return true
	})
	want := []string{"Root", "a", "Root", "b", "shared", "shared"}
	if len(names) != len(want) {
		t.Fatalf("Walk visited %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("visit %d = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestNodeChangedDrains(t *testing.T) {
	n := NewNode(7, "")
	if n.Name() != "Root" {
		t.Errorf("unnamed node Name() = %q", n.Name())
	}
	n.MarkDirty(box(0, 0, 0, 1, 1, 1))
	n.MarkDirty(box(2, -1, 0, 3, 1, 1))
	b, ok := n.Changed()
	if !ok {
		t.Fatal("expected pending change")
	}
	if b != box(0, -1, 0, 3, 1, 1) {
		t.Errorf("pending region = %v, want merged region", b)
	}
	if _, ok := n.Changed(); ok {
		t.Error("Changed() should drain the pending region")
	}
}
