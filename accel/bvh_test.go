package accel

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.spatial.dev/geomaccel/geometry"
)

func triangleRow(n int) []geometry.Primitive {
	primitives := make([]geometry.Primitive, n)
	for i := 0; i < n; i++ {
		x := float64(i)
		primitives[i] = geometry.NewTriangle(
			r3.Vector{X: x, Y: 0, Z: 0},
			r3.Vector{X: x + 1, Y: 0, Z: 0},
			r3.Vector{X: x, Y: 1, Z: 0},
		)
	}
	return primitives
}

func randomTriangles(n int, rnd *rand.Rand) []geometry.Primitive {
	primitives := make([]geometry.Primitive, n)
	for i := 0; i < n; i++ {
		center := r3.Vector{X: rnd.Float64() * 10, Y: rnd.Float64() * 10, Z: rnd.Float64() * 10}
		offset := func() r3.Vector {
			return r3.Vector{
				X: (rnd.Float64() - 0.5),
				Y: (rnd.Float64() - 0.5),
				Z: (rnd.Float64() - 0.5),
			}
		}
		primitives[i] = geometry.NewTriangle(center.Add(offset()), center.Add(offset()), center.Add(offset()))
	}
	return primitives
}

func randomRay(rnd *rand.Rand) *geometry.Ray {
	origin := r3.Vector{X: rnd.Float64()*14 - 2, Y: rnd.Float64()*14 - 2, Z: rnd.Float64()*14 - 2}
	var dir r3.Vector
	for {
		dir = r3.Vector{X: rnd.Float64()*2 - 1, Y: rnd.Float64()*2 - 1, Z: rnd.Float64()*2 - 1}
		if dir.Norm() > 1e-6 {
			break
		}
	}
	return geometry.NewRay(origin, dir)
}

func TestBvhBuild(t *testing.T) {
	t.Run("empty primitives build an empty tree", func(t *testing.T) {
		b := NewBvh(nil, 0)
		test.That(t, b.NumNodes(), test.ShouldEqual, 0)
		test.That(t, b.BoundingBox().IsEmpty(), test.ShouldBeTrue)

		r := geometry.NewRay(r3.Vector{}, r3.Vector{X: 1})
		var is []geometry.Interaction
		test.That(t, b.Intersect(r, &is, false, false, false), test.ShouldEqual, 0)

		s := geometry.NewBoundingSphere(r3.Vector{}, 0)
		var i geometry.Interaction
		test.That(t, b.ClosestPoint(s, &i), test.ShouldBeFalse)
	})

	t.Run("few primitives create a single leaf", func(t *testing.T) {
		b := NewBvh(triangleRow(3), 4)
		test.That(t, b.NumNodes(), test.ShouldEqual, 1)
		test.That(t, b.NumLeaves(), test.ShouldEqual, 1)
		test.That(t, b.flatTree[0].rightOffset, test.ShouldEqual, 0)
		test.That(t, b.flatTree[0].nPrimitives, test.ShouldEqual, 3)
	})

	t.Run("many primitives create internal nodes", func(t *testing.T) {
		b := NewBvh(triangleRow(10), 4)
		test.That(t, b.NumNodes(), test.ShouldBeGreaterThan, 1)
		test.That(t, b.NumLeaves(), test.ShouldBeGreaterThanOrEqualTo, 2)
		test.That(t, b.flatTree[0].rightOffset, test.ShouldBeGreaterThan, 0)
	})

	t.Run("flat layout is pre-order with valid right offsets", func(t *testing.T) {
		rnd := rand.New(rand.NewSource(7))
		b := NewBvh(randomTriangles(100, rnd), 4)

		leafPrims := 0
		for idx, node := range b.flatTree {
			if node.rightOffset == 0 {
				test.That(t, node.nPrimitives, test.ShouldBeGreaterThan, 0)
				test.That(t, node.nPrimitives, test.ShouldBeLessThanOrEqualTo, 4)
				leafPrims += node.nPrimitives
				continue
			}
			left, right := idx+1, idx+node.rightOffset
			test.That(t, right, test.ShouldBeGreaterThan, left)
			test.That(t, right, test.ShouldBeLessThan, len(b.flatTree))

			// child bounds stay inside the parent bound
			for _, child := range []int{left, right} {
				childBox := b.flatTree[child].box
				test.That(t, node.box.Contains(childBox.Min), test.ShouldBeTrue)
				test.That(t, node.box.Contains(childBox.Max), test.ShouldBeTrue)
			}
		}
		test.That(t, leafPrims, test.ShouldEqual, 100)
	})
}

func TestBvhIntersect(t *testing.T) {
	t.Run("ray hits the covering triangle", func(t *testing.T) {
		b := NewBvh(triangleRow(10), 4)
		r := geometry.NewRay(r3.Vector{X: 0.25, Y: 0.25, Z: 5}, r3.Vector{Z: -1})
		var is []geometry.Interaction
		hits := b.Intersect(r, &is, false, false, false)
		test.That(t, hits, test.ShouldBeGreaterThanOrEqualTo, 1)
		test.That(t, is[0].D, test.ShouldAlmostEqual, 5, 1e-9)
		test.That(t, is[0].Point.Z, test.ShouldAlmostEqual, 0, 1e-9)
		test.That(t, r.TMax, test.ShouldAlmostEqual, 5, 1e-9)
	})

	t.Run("ray missing every box returns zero", func(t *testing.T) {
		b := NewBvh(triangleRow(10), 4)
		r := geometry.NewRay(r3.Vector{X: 0.25, Y: 0.25, Z: 5}, r3.Vector{Z: 1})
		var is []geometry.Interaction
		test.That(t, b.Intersect(r, &is, false, false, false), test.ShouldEqual, 0)
		test.That(t, len(is), test.ShouldEqual, 0)
	})

	t.Run("occlusion check returns early with a single hit", func(t *testing.T) {
		b := NewBvh(triangleRow(10), 4)
		r := geometry.NewRay(r3.Vector{X: 0.25, Y: 0.25, Z: 5}, r3.Vector{Z: -1})
		var is []geometry.Interaction
		test.That(t, b.Intersect(r, &is, true, false, false), test.ShouldEqual, 1)
	})

	t.Run("counting hits keeps every crossing sorted by distance", func(t *testing.T) {
		sphere, err := geometry.NewSphere(r3.Vector{}, 1)
		test.That(t, err, test.ShouldBeNil)
		b := NewBvh([]geometry.Primitive{sphere}, 4)

		r := geometry.NewRay(r3.Vector{X: -3}, r3.Vector{X: 1})
		var is []geometry.Interaction
		hits := b.Intersect(r, &is, false, true, false)
		test.That(t, hits, test.ShouldEqual, 2)
		test.That(t, is[0].D, test.ShouldAlmostEqual, 2, 1e-9)
		test.That(t, is[1].D, test.ShouldAlmostEqual, 4, 1e-9)
		// counting mode leaves the ray extent untouched
		test.That(t, math.IsInf(r.TMax, 1), test.ShouldBeTrue)
	})

	t.Run("hits append after existing buffer entries without counting them", func(t *testing.T) {
		b := NewBvh(triangleRow(10), 4)
		r := geometry.NewRay(r3.Vector{X: 0.25, Y: 0.25, Z: 5}, r3.Vector{Z: -1})
		is := []geometry.Interaction{{D: 0.5}}
		hits := b.Intersect(r, &is, false, false, false)
		test.That(t, hits, test.ShouldEqual, 1)
		test.That(t, len(is), test.ShouldEqual, 2)
		test.That(t, is[0].D, test.ShouldEqual, 0.5)
		test.That(t, is[1].D, test.ShouldAlmostEqual, 5, 1e-9)
		// the ray tightens to the nearest appended hit, not the caller's entry
		test.That(t, r.TMax, test.ShouldAlmostEqual, 5, 1e-9)
	})
}

func TestBvhMatchesBaseline(t *testing.T) {
	rnd := rand.New(rand.NewSource(11))
	primitives := randomTriangles(200, rnd)

	baseline := NewBaseline(append([]geometry.Primitive{}, primitives...))
	bvh := NewBvh(append([]geometry.Primitive{}, primitives...), 4)

	t.Run("nearest ray hits agree", func(t *testing.T) {
		for q := 0; q < 200; q++ {
			origin := r3.Vector{X: rnd.Float64()*14 - 2, Y: rnd.Float64()*14 - 2, Z: rnd.Float64()*14 - 2}
			dir := r3.Vector{X: rnd.Float64()*2 - 1, Y: rnd.Float64()*2 - 1, Z: rnd.Float64()*2 - 1}
			if dir.Norm() < 1e-6 {
				continue
			}

			rBase := geometry.NewRay(origin, dir)
			var isBase []geometry.Interaction
			hitsBase := baseline.Intersect(rBase, &isBase, false, false, false)

			rBvh := geometry.NewRay(origin, dir)
			var isBvh []geometry.Interaction
			hitsBvh := bvh.Intersect(rBvh, &isBvh, false, false, false)

			test.That(t, hitsBvh > 0, test.ShouldEqual, hitsBase > 0)
			if hitsBase > 0 {
				test.That(t, isBvh[0].D, test.ShouldAlmostEqual, isBase[0].D, 1e-9)
			}
		}
	})

	t.Run("closest points agree", func(t *testing.T) {
		for q := 0; q < 200; q++ {
			point := r3.Vector{X: rnd.Float64()*14 - 2, Y: rnd.Float64()*14 - 2, Z: rnd.Float64()*14 - 2}

			sBase := geometry.NewBoundingSphere(point, 0)
			var iBase geometry.Interaction
			foundBase := baseline.ClosestPoint(sBase, &iBase)

			sBvh := geometry.NewBoundingSphere(point, 0)
			var iBvh geometry.Interaction
			foundBvh := bvh.ClosestPoint(sBvh, &iBvh)

			test.That(t, foundBvh, test.ShouldEqual, foundBase)
			if foundBase {
				test.That(t, iBvh.D, test.ShouldAlmostEqual, iBase.D, 1e-9)
			}
		}
	})
}

func TestBvhClosestPoint(t *testing.T) {
	t.Run("unbounded query finds the nearest primitive", func(t *testing.T) {
		b := NewBvh(triangleRow(10), 4)
		s := geometry.NewBoundingSphere(r3.Vector{X: 0.25, Y: 0.25, Z: 3}, 0)
		var i geometry.Interaction
		test.That(t, b.ClosestPoint(s, &i), test.ShouldBeTrue)
		test.That(t, i.D, test.ShouldAlmostEqual, 3, 1e-9)
		// query radius shrinks to the found distance
		test.That(t, s.R2, test.ShouldAlmostEqual, 9, 1e-9)
	})

	t.Run("bounded query misses when everything is farther", func(t *testing.T) {
		b := NewBvh(triangleRow(10), 4)
		s := geometry.NewBoundingSphere(r3.Vector{X: 0.25, Y: 0.25, Z: 3}, 1)
		var i geometry.Interaction
		test.That(t, b.ClosestPoint(s, &i), test.ShouldBeFalse)
	})

	t.Run("radius only shrinks across repeated queries", func(t *testing.T) {
		rnd := rand.New(rand.NewSource(23))
		b := NewBvh(randomTriangles(50, rnd), 4)

		s := geometry.NewBoundingSphere(r3.Vector{X: 5, Y: 5, Z: 5}, 0)
		var i geometry.Interaction
		prev := s.R2
		for q := 0; q < 5; q++ {
			b.ClosestPoint(s, &i)
			test.That(t, s.R2, test.ShouldBeLessThanOrEqualTo, prev)
			prev = s.R2
		}
	})
}
