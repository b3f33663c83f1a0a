package geometry

import (
	"math"

	"github.com/golang/geo/r3"
)

const floatEpsilon = 1e-6

// Component returns the axis-indexed component of a vector (0=X, 1=Y, 2=Z).
func Component(v r3.Vector, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// SetComponent sets the axis-indexed component of a vector.
func SetComponent(v *r3.Vector, axis int, value float64) {
	switch axis {
	case 0:
		v.X = value
	case 1:
		v.Y = value
	default:
		v.Z = value
	}
}

func minVec(a, b r3.Vector) r3.Vector {
	return r3.Vector{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)}
}

func maxVec(a, b r3.Vector) r3.Vector {
	return r3.Vector{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)}
}

// BoundingBox is an axis-aligned box. Tight reports whether the box is an
// exact fit around the geometry it bounds; a non-tight box is a conservative
// overestimate and never excludes anything the true geometry would include.
type BoundingBox struct {
	Min   r3.Vector
	Max   r3.Vector
	Tight bool
}

// NewBoundingBox returns an empty box ready to be expanded. An empty box is
// considered tight.
func NewBoundingBox() BoundingBox {
	inf := math.Inf(1)
	return BoundingBox{
		Min:   r3.Vector{X: inf, Y: inf, Z: inf},
		Max:   r3.Vector{X: -inf, Y: -inf, Z: -inf},
		Tight: true,
	}
}

// NewBoundingBoxFromPoints returns the tight box around the given points.
func NewBoundingBoxFromPoints(points ...r3.Vector) BoundingBox {
	b := NewBoundingBox()
	for _, p := range points {
		b.ExpandToIncludePoint(p)
	}
	return b
}

// ExpandToIncludePoint grows the box to contain the given point.
func (b *BoundingBox) ExpandToIncludePoint(p r3.Vector) {
	b.Min = minVec(b.Min, p)
	b.Max = maxVec(b.Max, p)
}

// ExpandToIncludeBox grows the box to contain another box. The result is
// tight only if both inputs were tight.
func (b *BoundingBox) ExpandToIncludeBox(other BoundingBox) {
	b.Min = minVec(b.Min, other.Min)
	b.Max = maxVec(b.Max, other.Max)
	b.Tight = b.Tight && other.Tight
}

// IsEmpty reports whether the box contains no points.
func (b BoundingBox) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Extent returns the box dimensions.
func (b BoundingBox) Extent() r3.Vector {
	return b.Max.Sub(b.Min)
}

// Centroid returns the box center.
func (b BoundingBox) Centroid() r3.Vector {
	return b.Min.Add(b.Max).Mul(0.5)
}

// SurfaceArea returns the total area of the box faces.
func (b BoundingBox) SurfaceArea() float64 {
	if b.IsEmpty() {
		return 0
	}
	e := b.Extent()
	return 2 * (e.X*e.Y + e.Y*e.Z + e.Z*e.X)
}

// Volume returns the box volume.
func (b BoundingBox) Volume() float64 {
	if b.IsEmpty() {
		return 0
	}
	e := b.Extent()
	return e.X * e.Y * e.Z
}

// MaxDimension returns the axis of largest extent (0=X, 1=Y, 2=Z).
func (b BoundingBox) MaxDimension() int {
	e := b.Extent()
	axis := 0
	if e.Y > Component(e, axis) {
		axis = 1
	}
	if e.Z > Component(e, axis) {
		axis = 2
	}
	return axis
}

// Contains reports whether the point lies in the box.
func (b BoundingBox) Contains(p r3.Vector) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Overlaps reports whether two boxes share any point.
func (b BoundingBox) Overlaps(other BoundingBox) bool {
	return b.Min.X <= other.Max.X && b.Max.X >= other.Min.X &&
		b.Min.Y <= other.Max.Y && b.Max.Y >= other.Min.Y &&
		b.Min.Z <= other.Max.Z && b.Max.Z >= other.Min.Z
}

// Intersection returns the overlap region of two boxes. The result may be
// empty and is never marked tight, since an intersection of bounds does not
// bound an intersection of geometry exactly.
func (b BoundingBox) Intersection(other BoundingBox) BoundingBox {
	return BoundingBox{
		Min:   maxVec(b.Min, other.Min),
		Max:   minVec(b.Max, other.Max),
		Tight: false,
	}
}

// IntersectRay performs a slab test against the ray, clipped to [0, r.TMax].
// On a hit it returns the entry and exit parameters along the ray.
func (b BoundingBox) IntersectRay(r *Ray) (float64, float64, bool) {
	if b.IsEmpty() {
		// the per-axis swap would turn an inverted slab into (-inf, +inf)
		return 0, 0, false
	}
	tMin := 0.0
	tMax := r.TMax
	for axis := 0; axis < 3; axis++ {
		inv := Component(r.InvDir, axis)
		tNear := (Component(b.Min, axis) - Component(r.Origin, axis)) * inv
		tFar := (Component(b.Max, axis) - Component(r.Origin, axis)) * inv
		if tNear > tFar {
			tNear, tFar = tFar, tNear
		}
		if tNear > tMin {
			tMin = tNear
		}
		if tFar < tMax {
			tMax = tFar
		}
		if tMin > tMax {
			return 0, 0, false
		}
	}
	return tMin, tMax, true
}

// OverlapsSphere tests the box against a bounding sphere. It returns the
// minimum and maximum squared distances from the sphere center to the box,
// and whether the box comes within the sphere's current radius.
func (b BoundingBox) OverlapsSphere(s *BoundingSphere) (float64, float64, bool) {
	d2Min := 0.0
	d2Max := 0.0
	for axis := 0; axis < 3; axis++ {
		c := Component(s.Center, axis)
		lo := Component(b.Min, axis)
		hi := Component(b.Max, axis)
		if c < lo {
			d := lo - c
			d2Min += d * d
		} else if c > hi {
			d := c - hi
			d2Min += d * d
		}
		far := math.Max(math.Abs(c-lo), math.Abs(hi-c))
		d2Max += far * far
	}
	return d2Min, d2Max, d2Min <= s.R2
}
