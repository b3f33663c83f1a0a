// Package geometry provides the primitive shapes and bounding-volume math
// used by the acceleration structures in package accel: axis-aligned boxes,
// query rays and spheres, hit records, and the Primitive capability contract
// every queryable shape satisfies.
package geometry

import "github.com/golang/geo/r3"

// Primitive is the capability contract shared by leaf shapes and composite
// spatial structures, enabling uniform recursion: a CSG node's children can
// be single triangles or entire hierarchies.
type Primitive interface {
	// BoundingBox returns a conservative or tight axis-aligned bound.
	BoundingBox() BoundingBox

	// Centroid returns a representative point. It is used for split
	// decisions during builds and need not be exact for correctness.
	Centroid() r3.Vector

	// SurfaceArea returns the surface area; composites may overestimate.
	SurfaceArea() float64

	// SignedVolume returns the signed volume; composites may overestimate.
	SignedVolume() float64

	// Intersect appends the ray's interactions with the shape to is and
	// returns the number of hits found; zero hits is a miss, not an error.
	// When checkOcclusion is set the query stops at the first hit and
	// returns 1, unless collectAll forces it to keep going. When countHits
	// is set the complete interaction list is produced and r.TMax is left
	// alone; otherwise r.TMax shrinks to the nearest hit so callers can
	// prune. Appended interactions are sorted ascending by distance.
	Intersect(r *Ray, is *[]Interaction, checkOcclusion, countHits, collectAll bool) int

	// ClosestPoint finds the closest point on the shape within the
	// sphere's current radius. It returns false when nothing is within
	// range; on success the sphere's squared radius is tightened to the
	// found distance as a side effect.
	ClosestPoint(s *BoundingSphere, i *Interaction) bool
}
