package geometry

import (
	"math"

	"github.com/golang/geo/r3"
)

// ClosestPointSegmentPoint takes a line segment defined by pts a and b, then
// returns the point on the segment closest to the given point.
func ClosestPointSegmentPoint(a, b, point r3.Vector) r3.Vector {
	ab := b.Sub(a)
	t := point.Sub(a).Dot(ab) / ab.Norm2()
	if t <= 0 {
		return a
	} else if t >= 1 {
		return b
	}
	return a.Add(ab.Mul(t))
}

// Segment is a line-segment primitive. Its normal is a fixed perpendicular
// to the segment direction; for planar contour geometry (segments in the XY
// plane) this matches the in-plane outward normal convention.
type Segment struct {
	a r3.Vector
	b r3.Vector

	normal r3.Vector
}

// NewSegment constructs a segment primitive between two endpoints.
func NewSegment(a, b r3.Vector) *Segment {
	dir := b.Sub(a)
	n := dir.Cross(r3.Vector{Z: 1})
	if n.Norm2() < floatEpsilon*floatEpsilon {
		n = dir.Cross(r3.Vector{X: 1})
	}
	return &Segment{a: a, b: b, normal: n.Normalize()}
}

// Points returns the segment endpoints.
func (s *Segment) Points() []r3.Vector {
	return []r3.Vector{s.a, s.b}
}

// Normal returns the segment normal.
func (s *Segment) Normal() r3.Vector {
	return s.normal
}

// BoundingBox returns the tight axis-aligned bound of the segment.
func (s *Segment) BoundingBox() BoundingBox {
	return NewBoundingBoxFromPoints(s.a, s.b)
}

// Centroid returns the segment midpoint.
func (s *Segment) Centroid() r3.Vector {
	return s.a.Add(s.b).Mul(0.5)
}

// SurfaceArea returns the segment length.
func (s *Segment) SurfaceArea() float64 {
	return s.b.Sub(s.a).Norm()
}

// SignedVolume returns zero; a segment encloses no volume. Cost heuristics
// substitute a max-float sentinel for zero volumes so comparisons stay
// ordered.
func (s *Segment) SignedVolume() float64 {
	return 0
}

// Intersect tests the ray against the segment. A hit requires the ray to
// pass within a small tolerance of the segment, since two lines in 3D
// generically miss each other.
func (s *Segment) Intersect(r *Ray, is *[]Interaction, checkOcclusion, countHits, collectAll bool) int {
	d2 := s.b.Sub(s.a)
	r0 := r.Origin.Sub(s.a)
	a := r.Dir.Norm2()
	b := r.Dir.Dot(d2)
	c := d2.Norm2()
	d := r.Dir.Dot(r0)
	e := d2.Dot(r0)
	den := a*c - b*b
	if den < 1e-12 {
		// parallel lines
		return 0
	}

	t := (b*e - c*d) / den
	u := (a*e - b*d) / den
	if u < 0 || u > 1 || t <= rayEpsilon || t > r.TMax {
		return 0
	}
	onRay := r.Point(t)
	onSegment := s.a.Add(d2.Mul(u))
	if onRay.Sub(onSegment).Norm2() > floatEpsilon*floatEpsilon {
		return 0
	}
	if checkOcclusion && !collectAll {
		return 1
	}

	sign := 1
	if r.Dir.Dot(s.normal) > 0 {
		sign = -1
	}
	*is = append(*is, Interaction{D: t, Point: onSegment, Normal: s.normal, Sign: sign, Info: DistanceExact})
	if !countHits {
		r.TMax = t
	}
	return 1
}

// ClosestPoint finds the closest point on the segment within the query
// sphere's radius.
func (s *Segment) ClosestPoint(sp *BoundingSphere, i *Interaction) bool {
	p := ClosestPointSegmentPoint(s.a, s.b, sp.Center)
	d2 := sp.Center.Sub(p).Norm2()
	if d2 > sp.R2 {
		return false
	}

	sign := 1
	if sp.Center.Sub(p).Dot(s.normal) < 0 {
		sign = -1
	}
	*i = Interaction{
		D:      math.Sqrt(d2),
		Point:  p,
		Normal: s.normal,
		Sign:   sign,
		Info:   DistanceExact,
	}
	sp.R2 = d2
	return true
}
