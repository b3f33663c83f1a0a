package accel

import (
	"github.com/golang/geo/r3"

	"go.spatial.dev/geomaccel/geometry"
)

// DefaultLeafSize bounds the primitives per leaf when no explicit value is
// given, trading tree depth against per-leaf linear-scan cost.
const DefaultLeafSize = 4

// Bvh is an object-partitioning bounding volume hierarchy stored as a single
// flattened pre-order array. Nodes split their primitive range at the median
// centroid along the axis of largest centroid-bound extent.
type Bvh struct {
	primitives []geometry.Primitive
	flatTree   []bvhFlatNode
	leafSize   int
	nNodes     int
	nLeafs     int
}

// NewBvh builds a hierarchy over the given primitives. The primitive slice is
// reordered in place during the build. An empty slice produces an empty tree
// whose queries all miss. A non-positive leafSize selects DefaultLeafSize.
func NewBvh(primitives []geometry.Primitive, leafSize int) *Bvh {
	if leafSize <= 0 {
		leafSize = DefaultLeafSize
	}
	b := &Bvh{primitives: primitives, leafSize: leafSize}
	b.build()
	return b
}

// NumNodes returns the flat tree length.
func (b *Bvh) NumNodes() int {
	return b.nNodes
}

// NumLeaves returns the number of leaf nodes.
func (b *Bvh) NumLeaves() int {
	return b.nLeafs
}

type bvhBuildEntry struct {
	start  int
	end    int
	parent int
}

// build partitions the primitive index range with an explicit worklist so
// pathological inputs cannot exhaust the call stack.
func (b *Bvh) build() {
	n := len(b.primitives)
	if n == 0 {
		return
	}
	b.flatTree = make([]bvhFlatNode, 0, 2*n)

	todo := make([]bvhBuildEntry, 1, 64)
	todo[0] = bvhBuildEntry{start: 0, end: n, parent: rootParentSentinel}
	for len(todo) > 0 {
		entry := todo[len(todo)-1]
		todo = todo[:len(todo)-1]
		start, end := entry.start, entry.end
		nPrims := end - start

		bb := geometry.NewBoundingBox()
		bc := geometry.NewBoundingBox()
		for p := start; p < end; p++ {
			bb.ExpandToIncludeBox(b.primitives[p].BoundingBox())
			bc.ExpandToIncludePoint(b.primitives[p].Centroid())
		}

		node := bvhFlatNode{box: bb, start: start, nPrimitives: nPrims, rightOffset: untouchedNode}
		if nPrims <= b.leafSize {
			node.rightOffset = 0
			b.nLeafs++
		}
		b.flatTree = append(b.flatTree, node)
		idx := len(b.flatTree) - 1
		b.nNodes++
		patchParentOffset(b.flatTree, entry.parent, idx)

		if node.rightOffset == 0 {
			continue
		}

		axis := bc.MaxDimension()
		mid := (start + end) / 2
		nthElementByCentroid(b.primitives, start, end, mid, axis)
		// right pushed first; left pops next, keeping the array pre-order
		todo = append(todo,
			bvhBuildEntry{start: mid, end: end, parent: idx},
			bvhBuildEntry{start: start, end: mid, parent: idx},
		)
	}
}

// nthElementByCentroid partially orders prims[start:end] so the element at
// nth is the one that would be there under a full sort by centroid along
// axis, with smaller elements before it and larger after. Quickselect, not a
// full sort.
func nthElementByCentroid(prims []geometry.Primitive, start, end, nth, axis int) {
	lo, hi := start, end-1
	for lo < hi {
		p := partitionByCentroid(prims, lo, hi, axis)
		switch {
		case p == nth:
			return
		case nth < p:
			hi = p - 1
		default:
			lo = p + 1
		}
	}
}

func partitionByCentroid(prims []geometry.Primitive, lo, hi, axis int) int {
	key := func(k int) float64 { return geometry.Component(prims[k].Centroid(), axis) }

	// median-of-three pivot selection
	mid := lo + (hi-lo)/2
	if key(mid) < key(lo) {
		prims[mid], prims[lo] = prims[lo], prims[mid]
	}
	if key(hi) < key(lo) {
		prims[hi], prims[lo] = prims[lo], prims[hi]
	}
	if key(hi) < key(mid) {
		prims[hi], prims[mid] = prims[mid], prims[hi]
	}
	prims[mid], prims[hi] = prims[hi], prims[mid]

	pivot := key(hi)
	i := lo
	for j := lo; j < hi; j++ {
		if key(j) < pivot {
			prims[i], prims[j] = prims[j], prims[i]
			i++
		}
	}
	prims[i], prims[hi] = prims[hi], prims[i]
	return i
}

// BoundingBox returns the root bound, or an empty box for an empty tree.
func (b *Bvh) BoundingBox() geometry.BoundingBox {
	if len(b.flatTree) == 0 {
		return geometry.NewBoundingBox()
	}
	return b.flatTree[0].box
}

// Centroid returns the root bound center.
func (b *Bvh) Centroid() r3.Vector {
	return b.BoundingBox().Centroid()
}

// SurfaceArea returns the summed primitive surface area.
func (b *Bvh) SurfaceArea() float64 {
	area := 0.0
	for _, p := range b.primitives {
		area += p.SurfaceArea()
	}
	return area
}

// SignedVolume returns the summed primitive signed volume.
func (b *Bvh) SignedVolume() float64 {
	volume := 0.0
	for _, p := range b.primitives {
		volume += p.SignedVolume()
	}
	return volume
}

// Intersect traverses the hierarchy collecting ray hits.
func (b *Bvh) Intersect(r *geometry.Ray, is *[]geometry.Interaction, checkOcclusion, countHits, collectAll bool) int {
	base := len(*is)
	hits, occluded := intersectFlatTree(
		b.flatTree,
		func(slot int) (int, geometry.Primitive) { return slot, b.primitives[slot] },
		r, is, checkOcclusion, countHits, collectAll,
	)
	if occluded {
		return 1
	}
	if hits == 0 {
		return 0
	}
	return finalizeInteractions(r, is, base, countHits, false)
}

// ClosestPoint traverses the hierarchy shrinking the query sphere toward the
// nearest primitive.
func (b *Bvh) ClosestPoint(s *geometry.BoundingSphere, i *geometry.Interaction) bool {
	return closestPointFlatTree(
		b.flatTree,
		func(slot int) (int, geometry.Primitive) { return slot, b.primitives[slot] },
		s, i,
	)
}
