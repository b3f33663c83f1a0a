// Package accel provides spatial acceleration structures over collections of
// geometric primitives: a median-split bounding volume hierarchy (Bvh), a
// spatial-split hierarchy with configurable cost heuristics (Sbvh), a
// brute-force baseline, and a constructive solid geometry combinator
// (CsgNode). All of them satisfy the Aggregate contract, so the result of any
// combination is itself queryable as if it were a primitive.
package accel

import (
	"math"

	"github.com/pkg/errors"

	"go.spatial.dev/geomaccel/geometry"
)

// Aggregate is any queryable spatial structure: a bare primitive, a
// hierarchy, or a CSG combination. Aggregates are immutable after
// construction and safe for concurrent queries; queries mutate only the
// caller's ray/sphere and output buffer.
type Aggregate interface {
	geometry.Primitive
}

// BooleanOperation selects how a CsgNode combines its two children.
type BooleanOperation int

const (
	// Union keeps points inside either child.
	Union BooleanOperation = iota
	// Intersection keeps points inside both children.
	Intersection
	// Difference keeps points inside the left child but not the right.
	Difference
	// None performs no boolean filtering; interaction lists are merged
	// as-is.
	None
)

func (op BooleanOperation) String() string {
	switch op {
	case Union:
		return "Union"
	case Intersection:
		return "Intersection"
	case Difference:
		return "Difference"
	default:
		return "None"
	}
}

// ParseBooleanOperation maps an operation name to its value.
func ParseBooleanOperation(name string) (BooleanOperation, error) {
	switch name {
	case "Union":
		return Union, nil
	case "Intersection":
		return Intersection, nil
	case "Difference":
		return Difference, nil
	case "None":
		return None, nil
	default:
		return None, errors.Errorf("unknown boolean operation %q", name)
	}
}

// CostHeuristic selects the partition-cost model used by the Sbvh build.
type CostHeuristic int

const (
	// LongestAxisCenter splits at the centroid-bound midpoint of the
	// longest axis; the cheapest build, no spatial splitting.
	LongestAxisCenter CostHeuristic = iota
	// SurfaceArea is the classic SAH: child surface areas weighted by
	// primitive counts.
	SurfaceArea
	// OverlapSurfaceArea is SAH plus a penalty for the surface area of the
	// child overlap region.
	OverlapSurfaceArea
	// Volume weights child volumes by primitive counts.
	Volume
	// OverlapVolume is the volume heuristic plus an overlap-volume
	// penalty.
	OverlapVolume
)

func (h CostHeuristic) String() string {
	switch h {
	case LongestAxisCenter:
		return "LongestAxisCenter"
	case SurfaceArea:
		return "SurfaceArea"
	case OverlapSurfaceArea:
		return "OverlapSurfaceArea"
	case Volume:
		return "Volume"
	case OverlapVolume:
		return "OverlapVolume"
	default:
		return "Unknown"
	}
}

// ParseCostHeuristic maps a heuristic name to its value.
func ParseCostHeuristic(name string) (CostHeuristic, error) {
	switch name {
	case "LongestAxisCenter":
		return LongestAxisCenter, nil
	case "SurfaceArea":
		return SurfaceArea, nil
	case "OverlapSurfaceArea":
		return OverlapSurfaceArea, nil
	case "Volume":
		return Volume, nil
	case "OverlapVolume":
		return OverlapVolume, nil
	default:
		return LongestAxisCenter, errors.Errorf("unknown cost heuristic %q", name)
	}
}

// distanceTolerance separates genuinely distinct hits from duplicates of the
// same primitive reference produced by spatial splitting.
const distanceTolerance = 1e-9

// finalizeInteractions sorts the interactions appended after base, optionally
// removes duplicate references to the same primitive at the same distance, and
// tightens the ray when only the nearest hit was requested. Entries before
// base belong to the caller and are left alone. It returns the final count of
// appended hits.
func finalizeInteractions(r *geometry.Ray, is *[]geometry.Interaction, base int, countHits, dedup bool) int {
	appended := (*is)[base:]
	if len(appended) == 0 {
		return 0
	}
	geometry.SortInteractions(appended)
	if dedup {
		out := appended[:1]
		for _, in := range appended[1:] {
			last := &out[len(out)-1]
			if in.PrimitiveIndex == last.PrimitiveIndex && math.Abs(in.D-last.D) < distanceTolerance {
				continue
			}
			out = append(out, in)
		}
		*is = (*is)[:base+len(out)]
	}
	if !countHits {
		r.TMax = (*is)[base].D
	}
	return len(*is) - base
}
