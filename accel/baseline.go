package accel

import (
	"github.com/golang/geo/r3"

	"go.spatial.dev/geomaccel/geometry"
)

// Baseline answers queries with a linear scan over its primitives. It is the
// ground truth the hierarchies are tested against and a sensible choice for
// very small primitive sets.
type Baseline struct {
	primitives []geometry.Primitive
	box        geometry.BoundingBox
}

// NewBaseline wraps a primitive list in a brute-force aggregate.
func NewBaseline(primitives []geometry.Primitive) *Baseline {
	box := geometry.NewBoundingBox()
	for _, p := range primitives {
		box.ExpandToIncludeBox(p.BoundingBox())
	}
	return &Baseline{primitives: primitives, box: box}
}

// BoundingBox returns the bound over all primitives.
func (b *Baseline) BoundingBox() geometry.BoundingBox {
	return b.box
}

// Centroid returns the bounding box center.
func (b *Baseline) Centroid() r3.Vector {
	return b.box.Centroid()
}

// SurfaceArea returns the summed primitive surface area.
func (b *Baseline) SurfaceArea() float64 {
	area := 0.0
	for _, p := range b.primitives {
		area += p.SurfaceArea()
	}
	return area
}

// SignedVolume returns the summed primitive signed volume.
func (b *Baseline) SignedVolume() float64 {
	volume := 0.0
	for _, p := range b.primitives {
		volume += p.SignedVolume()
	}
	return volume
}

// Intersect tests every primitive against the ray.
func (b *Baseline) Intersect(r *geometry.Ray, is *[]geometry.Interaction, checkOcclusion, countHits, collectAll bool) int {
	base := len(*is)
	hits := 0
	for idx, p := range b.primitives {
		var cs []geometry.Interaction
		h := p.Intersect(r, &cs, checkOcclusion, countHits, collectAll)
		if h == 0 {
			continue
		}
		if checkOcclusion && !collectAll {
			return 1
		}
		for k := range cs {
			cs[k].PrimitiveIndex = idx
		}
		*is = append(*is, cs...)
		hits += h
	}
	if hits == 0 {
		return 0
	}
	return finalizeInteractions(r, is, base, countHits, false)
}

// ClosestPoint tests every primitive against the sphere.
func (b *Baseline) ClosestPoint(s *geometry.BoundingSphere, i *geometry.Interaction) bool {
	found := false
	for idx, p := range b.primitives {
		var ci geometry.Interaction
		if p.ClosestPoint(s, &ci) {
			ci.PrimitiveIndex = idx
			*i = ci
			found = true
		}
	}
	return found
}
