package viewer

import (
	"reflect"

	"github.com/chazu/sdfview/pkg/surface"
)

// dirtier is implemented by surfaces embedding surface.Node.
type dirtier interface {
	Dirty() bool
}

// identifiable reports whether n can serve as a map key. Surfaces written
// as plain values holding slices or maps cannot, and cannot be shared by
// identity either.
func identifiable(n surface.Surface) bool {
	return n != nil && reflect.ValueOf(n).Comparable()
}

// sharing describes the part of a tree reachable along more than one path.
// A change below a shared node is reported through one parent only, in
// that parent's frame.
type sharing struct {
	nodes []surface.Surface
	// opaque is set when a shared node cannot say whether it is dirty.
	opaque bool
}

// findSharing walks root and collects every node with more than one parent
// together with everything below it.
func findSharing(root surface.Surface) sharing {
	refs := make(map[surface.Surface]int)
	var count func(n surface.Surface)
	count = func(n surface.Surface) {
		if identifiable(n) {
			refs[n]++
			if refs[n] > 1 {
				return
			}
		}
		for _, ch := range surface.Children(n) {
			count(ch)
		}
	}
	count(root)

	var sh sharing
	marked := make(map[surface.Surface]bool)
	var mark func(n surface.Surface)
	mark = func(n surface.Surface) {
		if !identifiable(n) {
			sh.opaque = true
		} else {
			if marked[n] {
				return
			}
			marked[n] = true
			sh.nodes = append(sh.nodes, n)
			if _, ok := n.(dirtier); !ok {
				sh.opaque = true
			}
		}
		for _, ch := range surface.Children(n) {
			mark(ch)
		}
	}
	surface.Walk(root, func(n surface.Surface) bool {
		if identifiable(n) && refs[n] > 1 {
			mark(n)
			return false
		}
		return true
	})
	return sh
}

// contains reports whether n is one of the shared nodes.
func (sh sharing) contains(n surface.Surface) bool {
	if !identifiable(n) {
		return false
	}
	for _, s := range sh.nodes {
		if s == n {
			return true
		}
	}
	return false
}

// dirty reports whether any shared node has a pending change.
func (sh sharing) dirty() bool {
	for _, n := range sh.nodes {
		if d, ok := n.(dirtier); ok && d.Dirty() {
			return true
		}
	}
	return false
}
