package geometry

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.spatial.dev/geomaccel/utils"
)

func TestSphere(t *testing.T) {
	t.Run("non-positive radius is rejected", func(t *testing.T) {
		_, err := NewSphere(r3.Vector{}, 0)
		test.That(t, err, test.ShouldNotBeNil)
		_, err = NewSphere(r3.Vector{}, -1)
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("ray through the center yields entry and exit", func(t *testing.T) {
		s, err := NewSphere(r3.Vector{}, 1)
		test.That(t, err, test.ShouldBeNil)

		r := NewRay(r3.Vector{X: -3}, r3.Vector{X: 1})
		var is []Interaction
		hits := s.Intersect(r, &is, false, true, false)
		test.That(t, hits, test.ShouldEqual, 2)
		test.That(t, is[0].D, test.ShouldAlmostEqual, 2, 1e-9)
		test.That(t, is[1].D, test.ShouldAlmostEqual, 4, 1e-9)

		// entry faces the ray, exit faces away
		test.That(t, is[0].Sign, test.ShouldEqual, 1)
		test.That(t, is[0].Normal.X, test.ShouldAlmostEqual, -1, 1e-9)
		test.That(t, is[1].Sign, test.ShouldEqual, -1)
		test.That(t, is[1].Normal.X, test.ShouldAlmostEqual, 1, 1e-9)
	})

	t.Run("nearest-hit mode stops after the entry and shrinks the ray", func(t *testing.T) {
		s, err := NewSphere(r3.Vector{}, 1)
		test.That(t, err, test.ShouldBeNil)

		r := NewRay(r3.Vector{X: -3}, r3.Vector{X: 1})
		var is []Interaction
		hits := s.Intersect(r, &is, false, false, false)
		test.That(t, hits, test.ShouldEqual, 1)
		test.That(t, r.TMax, test.ShouldAlmostEqual, 2, 1e-9)
	})

	t.Run("ray starting inside exits once", func(t *testing.T) {
		s, err := NewSphere(r3.Vector{}, 1)
		test.That(t, err, test.ShouldBeNil)

		r := NewRay(r3.Vector{}, r3.Vector{X: 1})
		var is []Interaction
		hits := s.Intersect(r, &is, false, true, false)
		test.That(t, hits, test.ShouldEqual, 1)
		test.That(t, is[0].D, test.ShouldAlmostEqual, 1, 1e-9)
		test.That(t, is[0].Sign, test.ShouldEqual, -1)
	})

	t.Run("tangent ray misses cleanly or grazes", func(t *testing.T) {
		s, err := NewSphere(r3.Vector{}, 1)
		test.That(t, err, test.ShouldBeNil)

		r := NewRay(r3.Vector{X: -3, Y: 2}, r3.Vector{X: 1})
		var is []Interaction
		test.That(t, s.Intersect(r, &is, false, true, false), test.ShouldEqual, 0)
	})

	t.Run("closest point reports inside with negative sign", func(t *testing.T) {
		s, err := NewSphere(r3.Vector{}, 2)
		test.That(t, err, test.ShouldBeNil)

		sp := NewBoundingSphere(r3.Vector{X: 1}, 0)
		var i Interaction
		test.That(t, s.ClosestPoint(sp, &i), test.ShouldBeTrue)
		test.That(t, i.D, test.ShouldAlmostEqual, 1, 1e-9)
		test.That(t, i.Sign, test.ShouldEqual, -1)
		test.That(t, utils.R3VectorAlmostEqual(i.Point, r3.Vector{X: 2}, 1e-9), test.ShouldBeTrue)
		test.That(t, i.SignedDistance(r3.Vector{X: 1}), test.ShouldAlmostEqual, -1, 1e-9)
	})

	t.Run("closest point respects the query radius", func(t *testing.T) {
		s, err := NewSphere(r3.Vector{}, 1)
		test.That(t, err, test.ShouldBeNil)

		sp := NewBoundingSphere(r3.Vector{X: 5}, 2)
		var i Interaction
		test.That(t, s.ClosestPoint(sp, &i), test.ShouldBeFalse)
	})
}

func TestTriangle(t *testing.T) {
	tri := NewTriangle(
		r3.Vector{X: 0, Y: 0, Z: 0},
		r3.Vector{X: 1, Y: 0, Z: 0},
		r3.Vector{X: 0, Y: 1, Z: 0},
	)

	t.Run("measures", func(t *testing.T) {
		test.That(t, tri.SurfaceArea(), test.ShouldAlmostEqual, 0.5, 1e-9)
		test.That(t, tri.Centroid(), test.ShouldResemble, r3.Vector{X: 1.0 / 3.0, Y: 1.0 / 3.0, Z: 0})
		test.That(t, tri.Normal().Z, test.ShouldAlmostEqual, 1, 1e-9)
	})

	t.Run("perpendicular ray hits", func(t *testing.T) {
		r := NewRay(r3.Vector{X: 0.25, Y: 0.25, Z: 2}, r3.Vector{Z: -1})
		var is []Interaction
		hits := tri.Intersect(r, &is, false, false, false)
		test.That(t, hits, test.ShouldEqual, 1)
		test.That(t, is[0].D, test.ShouldAlmostEqual, 2, 1e-9)
		// ray travels against the normal, so it sees the front face
		test.That(t, is[0].Sign, test.ShouldEqual, 1)
	})

	t.Run("ray outside the triangle misses", func(t *testing.T) {
		r := NewRay(r3.Vector{X: 0.9, Y: 0.9, Z: 2}, r3.Vector{Z: -1})
		var is []Interaction
		test.That(t, tri.Intersect(r, &is, false, false, false), test.ShouldEqual, 0)
	})

	t.Run("parallel ray misses", func(t *testing.T) {
		r := NewRay(r3.Vector{X: -1, Y: 0.25, Z: 0}, r3.Vector{X: 1})
		var is []Interaction
		test.That(t, tri.Intersect(r, &is, false, false, false), test.ShouldEqual, 0)
	})

	t.Run("closest point above the interior projects down", func(t *testing.T) {
		sp := NewBoundingSphere(r3.Vector{X: 0.25, Y: 0.25, Z: 3}, 0)
		var i Interaction
		test.That(t, tri.ClosestPoint(sp, &i), test.ShouldBeTrue)
		test.That(t, i.D, test.ShouldAlmostEqual, 3, 1e-9)
		test.That(t, utils.R3VectorAlmostEqual(i.Point, r3.Vector{X: 0.25, Y: 0.25, Z: 0}, 1e-9), test.ShouldBeTrue)
	})

	t.Run("closest point beyond an edge lands on the edge", func(t *testing.T) {
		sp := NewBoundingSphere(r3.Vector{X: 2, Y: -1, Z: 0}, 0)
		var i Interaction
		test.That(t, tri.ClosestPoint(sp, &i), test.ShouldBeTrue)
		test.That(t, utils.R3VectorAlmostEqual(i.Point, r3.Vector{X: 1, Y: 0, Z: 0}, 1e-9), test.ShouldBeTrue)
		test.That(t, i.D, test.ShouldAlmostEqual, math.Sqrt2, 1e-9)
	})
}

func TestSegment(t *testing.T) {
	seg := NewSegment(r3.Vector{X: 0, Y: 0, Z: 0}, r3.Vector{X: 2, Y: 0, Z: 0})

	t.Run("measures", func(t *testing.T) {
		test.That(t, seg.SurfaceArea(), test.ShouldAlmostEqual, 2, 1e-9)
		test.That(t, seg.SignedVolume(), test.ShouldEqual, 0)
		test.That(t, seg.Centroid(), test.ShouldResemble, r3.Vector{X: 1, Y: 0, Z: 0})
	})

	t.Run("normal is perpendicular to the segment", func(t *testing.T) {
		test.That(t, seg.Normal().Dot(r3.Vector{X: 1}), test.ShouldAlmostEqual, 0, 1e-9)
		test.That(t, seg.Normal().Norm(), test.ShouldAlmostEqual, 1, 1e-9)
	})

	t.Run("crossing ray in the plane hits", func(t *testing.T) {
		r := NewRay(r3.Vector{X: 1, Y: -2, Z: 0}, r3.Vector{Y: 1})
		var is []Interaction
		hits := seg.Intersect(r, &is, false, false, false)
		test.That(t, hits, test.ShouldEqual, 1)
		test.That(t, is[0].D, test.ShouldAlmostEqual, 2, 1e-9)
	})

	t.Run("skew ray misses", func(t *testing.T) {
		r := NewRay(r3.Vector{X: 1, Y: -2, Z: 1}, r3.Vector{Y: 1})
		var is []Interaction
		test.That(t, seg.Intersect(r, &is, false, false, false), test.ShouldEqual, 0)
	})

	t.Run("ray crossing beyond the endpoint misses", func(t *testing.T) {
		r := NewRay(r3.Vector{X: 3, Y: -2, Z: 0}, r3.Vector{Y: 1})
		var is []Interaction
		test.That(t, seg.Intersect(r, &is, false, false, false), test.ShouldEqual, 0)
	})

	t.Run("closest point clamps to the endpoints", func(t *testing.T) {
		sp := NewBoundingSphere(r3.Vector{X: 5, Y: 1, Z: 0}, 0)
		var i Interaction
		test.That(t, seg.ClosestPoint(sp, &i), test.ShouldBeTrue)
		test.That(t, utils.R3VectorAlmostEqual(i.Point, r3.Vector{X: 2, Y: 0, Z: 0}, 1e-9), test.ShouldBeTrue)
	})
}

func TestInteractionOrdering(t *testing.T) {
	is := []Interaction{{D: 3}, {D: 1}, {D: 2}}
	SortInteractions(is)
	test.That(t, is[0].D, test.ShouldEqual, 1)
	test.That(t, is[1].D, test.ShouldEqual, 2)
	test.That(t, is[2].D, test.ShouldEqual, 3)
}

func TestSignedDistance(t *testing.T) {
	i := Interaction{Point: r3.Vector{X: 1}, Sign: -1}
	test.That(t, i.SignedDistance(r3.Vector{X: 3}), test.ShouldAlmostEqual, -2, 1e-9)
	i.Sign = 1
	test.That(t, i.SignedDistance(r3.Vector{X: 3}), test.ShouldAlmostEqual, 2, 1e-9)
}
