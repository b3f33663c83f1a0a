package geometry

import (
	"math"

	"github.com/golang/geo/r3"
)

// Triangle is a single oriented triangle primitive.
type Triangle struct {
	p0 r3.Vector
	p1 r3.Vector
	p2 r3.Vector

	normal r3.Vector
}

// NewTriangle constructs a triangle from its three vertices. The normal
// follows the right-hand rule on the vertex order.
func NewTriangle(p0, p1, p2 r3.Vector) *Triangle {
	return &Triangle{
		p0:     p0,
		p1:     p1,
		p2:     p2,
		normal: p1.Sub(p0).Cross(p2.Sub(p0)).Normalize(),
	}
}

// Points returns the triangle vertices.
func (t *Triangle) Points() []r3.Vector {
	return []r3.Vector{t.p0, t.p1, t.p2}
}

// Normal returns the triangle normal.
func (t *Triangle) Normal() r3.Vector {
	return t.normal
}

// BoundingBox returns the tight axis-aligned bound of the triangle.
func (t *Triangle) BoundingBox() BoundingBox {
	return NewBoundingBoxFromPoints(t.p0, t.p1, t.p2)
}

// Centroid returns the vertex average.
func (t *Triangle) Centroid() r3.Vector {
	return t.p0.Add(t.p1).Add(t.p2).Mul(1.0 / 3.0)
}

// SurfaceArea returns the triangle area.
func (t *Triangle) SurfaceArea() float64 {
	return 0.5 * t.p1.Sub(t.p0).Cross(t.p2.Sub(t.p0)).Norm()
}

// SignedVolume returns the signed volume of the tetrahedron formed with the
// origin; summed over a closed mesh this yields the enclosed volume.
func (t *Triangle) SignedVolume() float64 {
	return t.p0.Dot(t.p1.Cross(t.p2)) / 6.0
}

// Intersect performs a Moller-Trumbore ray-triangle test.
func (t *Triangle) Intersect(r *Ray, is *[]Interaction, checkOcclusion, countHits, collectAll bool) int {
	e1 := t.p1.Sub(t.p0)
	e2 := t.p2.Sub(t.p0)
	pv := r.Dir.Cross(e2)
	det := e1.Dot(pv)
	if math.Abs(det) < 1e-12 {
		return 0
	}
	inv := 1.0 / det

	tv := r.Origin.Sub(t.p0)
	u := tv.Dot(pv) * inv
	if u < -floatEpsilon || u > 1+floatEpsilon {
		return 0
	}
	qv := tv.Cross(e1)
	v := r.Dir.Dot(qv) * inv
	if v < -floatEpsilon || u+v > 1+floatEpsilon {
		return 0
	}
	d := e2.Dot(qv) * inv
	if d <= rayEpsilon || d > r.TMax {
		return 0
	}
	if checkOcclusion && !collectAll {
		return 1
	}

	sign := 1
	if r.Dir.Dot(t.normal) > 0 {
		sign = -1
	}
	*is = append(*is, Interaction{D: d, Point: r.Point(d), Normal: t.normal, Sign: sign, Info: DistanceExact})
	if !countHits {
		r.TMax = d
	}
	return 1
}

// ClosestPoint finds the closest point on the triangle within the query
// sphere's radius.
func (t *Triangle) ClosestPoint(sp *BoundingSphere, i *Interaction) bool {
	p := t.closestPointToPoint(sp.Center)
	d2 := sp.Center.Sub(p).Norm2()
	if d2 > sp.R2 {
		return false
	}

	sign := 1
	if sp.Center.Sub(p).Dot(t.normal) < 0 {
		sign = -1
	}
	*i = Interaction{
		D:      math.Sqrt(d2),
		Point:  p,
		Normal: t.normal,
		Sign:   sign,
		Info:   DistanceExact,
	}
	sp.R2 = d2
	return true
}

// closestPointToPoint returns the closest point on the triangle to the given
// point, checking the interior projection first and the edges otherwise.
func (t *Triangle) closestPointToPoint(point r3.Vector) r3.Vector {
	closestPtInside, inside := t.closestInsidePoint(point)
	if inside {
		return closestPtInside
	}

	// If the closest point is outside the triangle, it must be on an edge,
	// so we check each triangle edge for a closest point to the point.
	closestPt := ClosestPointSegmentPoint(t.p0, t.p1, point)
	bestDist := point.Sub(closestPt).Norm2()

	newPt := ClosestPointSegmentPoint(t.p1, t.p2, point)
	if newDist := point.Sub(newPt).Norm2(); newDist < bestDist {
		closestPt = newPt
		bestDist = newDist
	}

	newPt = ClosestPointSegmentPoint(t.p2, t.p0, point)
	if newDist := point.Sub(newPt).Norm2(); newDist < bestDist {
		return newPt
	}
	return closestPt
}

// closestInsidePoint returns the closest point on the triangle if and only if
// the query point's projection overlaps the triangle interior.
func (t *Triangle) closestInsidePoint(point r3.Vector) (r3.Vector, bool) {
	// Parametrize the triangle s.t. a point inside the triangle is
	// Q = p0 + u * e0 + v * e1, when 0 <= u <= 1, 0 <= v <= 1, and
	// 0 <= u + v <= 1. Let e0 = (p1 - p0) and e1 = (p2 - p0).
	// We analytically minimize the distance between the point and Q.
	e0 := t.p1.Sub(t.p0)
	e1 := t.p2.Sub(t.p0)
	a := e0.Norm2()
	b := e0.Dot(e1)
	c := e1.Norm2()
	d := point.Sub(t.p0)
	// The determinant is 0 only if the angle between e1 and e0 is 0
	// (i.e. the triangle has overlapping lines).
	det := a*c - b*b
	u := (c*e0.Dot(d) - b*e1.Dot(d)) / det
	v := (-b*e0.Dot(d) + a*e1.Dot(d)) / det
	inside := (0 <= u+floatEpsilon) && (u <= 1+floatEpsilon) &&
		(0 <= v+floatEpsilon) && (v <= 1+floatEpsilon) && (u+v <= 1+floatEpsilon)
	return t.p0.Add(e0.Mul(u)).Add(e1.Mul(v)), inside
}
