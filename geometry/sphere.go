package geometry

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// rayEpsilon keeps self-intersections at a hit point from registering as a
// new hit when a ray is re-cast from a surface.
const rayEpsilon = 1e-9

// Sphere is a watertight primitive. A ray passing through it yields both the
// entry and exit crossings, so it carries real interval information for CSG
// combination.
type Sphere struct {
	center r3.Vector
	radius float64
}

// NewSphere returns a sphere primitive. The radius must be positive.
func NewSphere(center r3.Vector, radius float64) (*Sphere, error) {
	if radius <= 0 {
		return nil, errors.Errorf("sphere radius must be positive, got %f", radius)
	}
	return &Sphere{center: center, radius: radius}, nil
}

// Center returns the sphere center.
func (s *Sphere) Center() r3.Vector {
	return s.center
}

// Radius returns the sphere radius.
func (s *Sphere) Radius() float64 {
	return s.radius
}

// BoundingBox returns the tight axis-aligned bound of the sphere.
func (s *Sphere) BoundingBox() BoundingBox {
	r := r3.Vector{X: s.radius, Y: s.radius, Z: s.radius}
	return BoundingBox{Min: s.center.Sub(r), Max: s.center.Add(r), Tight: true}
}

// Centroid returns the sphere center.
func (s *Sphere) Centroid() r3.Vector {
	return s.center
}

// SurfaceArea returns the sphere surface area.
func (s *Sphere) SurfaceArea() float64 {
	return 4 * math.Pi * s.radius * s.radius
}

// SignedVolume returns the sphere volume.
func (s *Sphere) SignedVolume() float64 {
	return 4.0 / 3.0 * math.Pi * s.radius * s.radius * s.radius
}

// Intersect reports the ray's crossings of the sphere surface, nearest first.
func (s *Sphere) Intersect(r *Ray, is *[]Interaction, checkOcclusion, countHits, collectAll bool) int {
	oc := r.Origin.Sub(s.center)
	b := oc.Dot(r.Dir)
	c := oc.Norm2() - s.radius*s.radius
	disc := b*b - c
	if disc < 0 {
		return 0
	}
	sq := math.Sqrt(disc)

	hits := 0
	for _, t := range [2]float64{-b - sq, -b + sq} {
		if t <= rayEpsilon || t > r.TMax {
			continue
		}
		if checkOcclusion && !collectAll {
			return 1
		}
		p := r.Point(t)
		n := p.Sub(s.center).Normalize()
		sign := 1
		if r.Dir.Dot(n) > 0 {
			sign = -1
		}
		*is = append(*is, Interaction{D: t, Point: p, Normal: n, Sign: sign, Info: DistanceExact})
		hits++
		if !countHits {
			r.TMax = t
			break
		}
	}
	return hits
}

// ClosestPoint finds the closest point on the sphere surface within the
// query sphere's radius. The returned sign is negative when the query point
// is inside the sphere.
func (s *Sphere) ClosestPoint(sp *BoundingSphere, i *Interaction) bool {
	toCenter := sp.Center.Sub(s.center)
	dist := toCenter.Norm()

	n := r3.Vector{X: 1}
	if dist > floatEpsilon {
		n = toCenter.Mul(1 / dist)
	}
	d := math.Abs(dist - s.radius)
	if d*d > sp.R2 {
		return false
	}

	sign := 1
	if dist < s.radius {
		sign = -1
	}
	*i = Interaction{
		D:      d,
		Point:  s.center.Add(n.Mul(s.radius)),
		Normal: n,
		Sign:   sign,
		Info:   DistanceExact,
	}
	sp.R2 = d * d
	return true
}
