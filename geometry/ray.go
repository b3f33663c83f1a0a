package geometry

import (
	"math"

	"github.com/golang/geo/r3"
)

// Ray is a query ray. TMax shrinks monotonically as nearer hits are found,
// which lets traversal prune subtrees that can only contain farther hits.
type Ray struct {
	Origin r3.Vector
	Dir    r3.Vector
	InvDir r3.Vector
	TMax   float64
}

// NewRay returns a ray with a normalized direction and an unbounded TMax.
func NewRay(origin, dir r3.Vector) *Ray {
	d := dir.Normalize()
	return &Ray{
		Origin: origin,
		Dir:    d,
		InvDir: r3.Vector{X: 1.0 / d.X, Y: 1.0 / d.Y, Z: 1.0 / d.Z},
		TMax:   math.Inf(1),
	}
}

// Point returns the point at parameter t along the ray.
func (r *Ray) Point(t float64) r3.Vector {
	return r.Origin.Add(r.Dir.Mul(t))
}

// BoundingSphere is a closest-point query region: a center and a squared
// radius. The radius only ever shrinks during a query.
type BoundingSphere struct {
	Center r3.Vector
	R2     float64
}

// NewBoundingSphere returns a query sphere around the given center. A
// non-positive radius means unbounded.
func NewBoundingSphere(center r3.Vector, radius float64) *BoundingSphere {
	r2 := math.Inf(1)
	if radius > 0 {
		r2 = radius * radius
	}
	return &BoundingSphere{Center: center, R2: r2}
}
