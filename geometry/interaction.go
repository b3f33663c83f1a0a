package geometry

import (
	"sort"

	"github.com/golang/geo/r3"
)

// DistanceInfo marks whether an interaction's distance is the true geometric
// distance or only a certified bound on it.
type DistanceInfo int

const (
	// DistanceExact means the recorded distance is the true distance.
	DistanceExact DistanceInfo = iota
	// DistanceBounded means the recorded distance is only a valid bound;
	// conservative bounding volumes may have hidden a closer feature.
	DistanceBounded
)

// Interaction is a single ray-hit or closest-point record.
type Interaction struct {
	// D is the distance along the ray, or from the query point.
	D float64
	// Point is the hit or closest point on the geometry.
	Point r3.Vector
	// Normal is the surface normal at Point.
	Normal r3.Vector
	// Sign is +1 when the query point is outside the shape and -1 when
	// inside. It is flipped by CSG difference operations.
	Sign int
	// PrimitiveIndex identifies the primitive within its aggregate.
	PrimitiveIndex int
	// Info classifies D as exact or bounded.
	Info DistanceInfo
}

// SignedDistance returns the distance from x to the interaction point,
// negated when the query point is inside the shape.
func (i *Interaction) SignedDistance(x r3.Vector) float64 {
	return x.Sub(i.Point).Norm() * float64(i.Sign)
}

// SortInteractions orders interactions ascending by distance.
func SortInteractions(is []Interaction) {
	sort.SliceStable(is, func(a, b int) bool { return is[a].D < is[b].D })
}
