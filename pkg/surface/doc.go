// Package surface defines the signed distance field abstraction used by
// sdfview. A scene is a tree (or DAG) of surfaces; every node can be sampled
// for its signed distance and may optionally expose children, identity,
// parameters, change tracking, a custom normal estimator and bounds.
//
// Optional behaviours are expressed as small interfaces. Callers never
// type-assert directly; they use the package functions (Children, ID, Name,
// Parameters, SetParameter, Changed, Normal, Bounds), which fall back to the
// shared default logic when a surface does not implement the capability.
//
// Surface graphs must be acyclic. Sharing a child between several parents is
// allowed, but no cycle detection is performed.
package surface
