package accel

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"

	"go.spatial.dev/geomaccel/geometry"
)

const (
	// sbvhBinCount is the number of candidate partitions evaluated per
	// axis during the binned split search. Tunable; correctness does not
	// depend on it.
	sbvhBinCount = 32

	// overlapThreshold is the relative child-overlap surface area above
	// which a spatial split is attempted instead of a plain object split.
	overlapThreshold = 1e-5
)

// sbvhReference points at a primitive with a bounding box that may have been
// clipped by a spatial split; a single primitive can be referenced from both
// sides of a partition plane.
type sbvhReference struct {
	primIndex int
	box       geometry.BoundingBox
}

// Sbvh is a spatial-partitioning hierarchy. It generalizes Bvh's build with a
// configurable cost heuristic and reduces child overlap by splitting
// primitive references across the partition plane, with clipped conservative
// boxes. Traversal is identical to Bvh's; only the tree shape differs.
type Sbvh struct {
	primitives  []geometry.Primitive
	flatTree    []bvhFlatNode
	primIndices []int
	leafSize    int
	heuristic   CostHeuristic
	nNodes      int
	nLeafs      int
	nRefs       int
}

// NewSbvh builds a spatial-split hierarchy over the given primitives. An
// empty slice produces an empty tree whose queries all miss. A non-positive
// leafSize selects DefaultLeafSize.
func NewSbvh(primitives []geometry.Primitive, heuristic CostHeuristic, leafSize int) *Sbvh {
	if leafSize <= 0 {
		leafSize = DefaultLeafSize
	}
	s := &Sbvh{primitives: primitives, heuristic: heuristic, leafSize: leafSize}
	s.build()
	return s
}

// NumNodes returns the flat tree length.
func (s *Sbvh) NumNodes() int {
	return s.nNodes
}

// NumLeaves returns the number of leaf nodes.
func (s *Sbvh) NumLeaves() int {
	return s.nLeafs
}

// NumReferences returns the number of leaf primitive references; it exceeds
// the primitive count when spatial splits duplicated references.
func (s *Sbvh) NumReferences() int {
	return s.nRefs
}

type sbvhBuildEntry struct {
	refs   []sbvhReference
	parent int
}

func (s *Sbvh) build() {
	n := len(s.primitives)
	if n == 0 {
		return
	}
	refs := make([]sbvhReference, n)
	for i, p := range s.primitives {
		refs[i] = sbvhReference{primIndex: i, box: p.BoundingBox()}
	}
	s.flatTree = make([]bvhFlatNode, 0, 2*n)
	s.primIndices = make([]int, 0, n)

	todo := make([]sbvhBuildEntry, 1, 64)
	todo[0] = sbvhBuildEntry{refs: refs, parent: rootParentSentinel}
	for len(todo) > 0 {
		entry := todo[len(todo)-1]
		todo = todo[:len(todo)-1]

		bb := geometry.NewBoundingBox()
		bc := geometry.NewBoundingBox()
		for _, ref := range entry.refs {
			bb.ExpandToIncludeBox(ref.box)
			bc.ExpandToIncludePoint(ref.box.Centroid())
		}

		node := bvhFlatNode{box: bb, start: -1, nPrimitives: len(entry.refs), rightOffset: untouchedNode}
		if len(entry.refs) <= s.leafSize {
			node.start = len(s.primIndices)
			for _, ref := range entry.refs {
				s.primIndices = append(s.primIndices, ref.primIndex)
			}
			node.rightOffset = 0
			s.nLeafs++
			s.nRefs += len(entry.refs)
		}
		s.flatTree = append(s.flatTree, node)
		idx := len(s.flatTree) - 1
		s.nNodes++
		patchParentOffset(s.flatTree, entry.parent, idx)

		if node.rightOffset == 0 {
			continue
		}

		left, right := s.splitReferences(entry.refs, bb, bc)
		// right pushed first; left pops next, keeping the array pre-order
		todo = append(todo,
			sbvhBuildEntry{refs: right, parent: idx},
			sbvhBuildEntry{refs: left, parent: idx},
		)
	}
}

// splitReferences picks the best object split under the configured
// heuristic, and upgrades it to a spatial split when the object split's
// children overlap too much and the spatial split is estimated cheaper.
func (s *Sbvh) splitReferences(refs []sbvhReference, bb, bc geometry.BoundingBox) ([]sbvhReference, []sbvhReference) {
	axis, plane, objCost, ok := s.bestObjectSplit(refs, bb, bc)
	if !ok {
		return medianSplit(refs, bc.MaxDimension())
	}
	left, right, leftBox, rightBox := partitionByCentroidPlane(refs, axis, plane)
	if len(left) == 0 || len(right) == 0 {
		return medianSplit(refs, axis)
	}
	if s.heuristic == LongestAxisCenter {
		return left, right
	}

	overlap := leftBox.Intersection(rightBox)
	parentArea := bb.SurfaceArea()
	if overlap.IsEmpty() || parentArea == 0 || overlap.SurfaceArea()/parentArea <= overlapThreshold {
		return left, right
	}

	spatialAxis, spatialPlane, spatialCost, okSpatial := s.bestSpatialSplit(refs, bb)
	if !okSpatial || spatialCost >= objCost {
		return left, right
	}
	spatialLeft, spatialRight := s.spatialPartition(refs, spatialAxis, spatialPlane)
	// a side as large as the input no longer guarantees progress; keep the
	// object split, which always shrinks both sides
	if len(spatialLeft) == 0 || len(spatialRight) == 0 ||
		len(spatialLeft) >= len(refs) || len(spatialRight) >= len(refs) {
		return left, right
	}
	return spatialLeft, spatialRight
}

// bestObjectSplit evaluates binned centroid partitions along each axis and
// returns the partition minimizing the configured cost.
func (s *Sbvh) bestObjectSplit(refs []sbvhReference, bb, bc geometry.BoundingBox) (int, float64, float64, bool) {
	if s.heuristic == LongestAxisCenter {
		axis := bc.MaxDimension()
		if geometry.Component(bc.Extent(), axis) < 1e-12 {
			return 0, 0, 0, false
		}
		return axis, geometry.Component(bc.Centroid(), axis), math.MaxFloat64, true
	}

	bestAxis, bestPlane := 0, 0.0
	bestCost := math.MaxFloat64
	found := false
	for axis := 0; axis < 3; axis++ {
		extent := geometry.Component(bc.Extent(), axis)
		if extent < 1e-12 {
			continue
		}
		lo := geometry.Component(bc.Min, axis)
		binWidth := extent / sbvhBinCount

		var binBoxes [sbvhBinCount]geometry.BoundingBox
		var binCounts [sbvhBinCount]int
		for i := range binBoxes {
			binBoxes[i] = geometry.NewBoundingBox()
		}
		for _, ref := range refs {
			bin := binFor(geometry.Component(ref.box.Centroid(), axis), lo, binWidth)
			binBoxes[bin].ExpandToIncludeBox(ref.box)
			binCounts[bin]++
		}

		var suffixBoxes [sbvhBinCount]geometry.BoundingBox
		var suffixCounts [sbvhBinCount]int
		acc := geometry.NewBoundingBox()
		cnt := 0
		for i := sbvhBinCount - 1; i >= 1; i-- {
			acc.ExpandToIncludeBox(binBoxes[i])
			cnt += binCounts[i]
			suffixBoxes[i] = acc
			suffixCounts[i] = cnt
		}

		prefix := geometry.NewBoundingBox()
		nLeft := 0
		for k := 1; k < sbvhBinCount; k++ {
			prefix.ExpandToIncludeBox(binBoxes[k-1])
			nLeft += binCounts[k-1]
			nRight := suffixCounts[k]
			if nLeft == 0 || nRight == 0 {
				continue
			}
			cost := splitCost(s.heuristic, prefix, suffixBoxes[k], nLeft, nRight, bb)
			if cost < bestCost {
				bestCost = cost
				bestAxis = axis
				bestPlane = lo + binWidth*float64(k)
				found = true
			}
		}
	}
	return bestAxis, bestPlane, bestCost, found
}

// bestSpatialSplit evaluates chopped-binned partition planes along each axis:
// a reference contributes its plane-clipped box to every bin it spans.
func (s *Sbvh) bestSpatialSplit(refs []sbvhReference, bb geometry.BoundingBox) (int, float64, float64, bool) {
	bestAxis, bestPlane := 0, 0.0
	bestCost := math.MaxFloat64
	found := false
	for axis := 0; axis < 3; axis++ {
		extent := geometry.Component(bb.Extent(), axis)
		if extent < 1e-12 {
			continue
		}
		lo := geometry.Component(bb.Min, axis)
		binWidth := extent / sbvhBinCount

		var binBoxes [sbvhBinCount]geometry.BoundingBox
		var entries, exits [sbvhBinCount]int
		for i := range binBoxes {
			binBoxes[i] = geometry.NewBoundingBox()
		}
		for _, ref := range refs {
			first := binFor(geometry.Component(ref.box.Min, axis), lo, binWidth)
			last := binFor(geometry.Component(ref.box.Max, axis), lo, binWidth)
			entries[first]++
			exits[last]++
			for bin := first; bin <= last; bin++ {
				binLo := lo + binWidth*float64(bin)
				binHi := binLo + binWidth
				clipped := clipBoxToPlane(ref.box, axis, binLo, false)
				clipped = clipBoxToPlane(clipped, axis, binHi, true)
				binBoxes[bin].ExpandToIncludeBox(clipped)
			}
		}

		var suffixBoxes [sbvhBinCount]geometry.BoundingBox
		var suffixCounts [sbvhBinCount]int
		acc := geometry.NewBoundingBox()
		cnt := 0
		for i := sbvhBinCount - 1; i >= 1; i-- {
			acc.ExpandToIncludeBox(binBoxes[i])
			cnt += exits[i]
			suffixBoxes[i] = acc
			suffixCounts[i] = cnt
		}

		prefix := geometry.NewBoundingBox()
		nLeft := 0
		for k := 1; k < sbvhBinCount; k++ {
			prefix.ExpandToIncludeBox(binBoxes[k-1])
			nLeft += entries[k-1]
			nRight := suffixCounts[k]
			if nLeft == 0 || nRight == 0 {
				continue
			}
			cost := splitCost(s.heuristic, prefix, suffixBoxes[k], nLeft, nRight, bb)
			if cost < bestCost {
				bestCost = cost
				bestAxis = axis
				bestPlane = lo + binWidth*float64(k)
				found = true
			}
		}
	}
	return bestAxis, bestPlane, bestCost, found
}

// spatialPartition distributes references across the partition plane.
// Straddling references are either split (duplicated with clipped boxes on
// both sides) or unsplit onto one side when duplicating is estimated
// net-costlier, which keeps worst-case tree size bounded.
func (s *Sbvh) spatialPartition(refs []sbvhReference, axis int, plane float64) ([]sbvhReference, []sbvhReference) {
	var left, right, straddlers []sbvhReference
	leftBox := geometry.NewBoundingBox()
	rightBox := geometry.NewBoundingBox()
	for _, ref := range refs {
		switch {
		case geometry.Component(ref.box.Max, axis) <= plane:
			left = append(left, ref)
			leftBox.ExpandToIncludeBox(ref.box)
		case geometry.Component(ref.box.Min, axis) >= plane:
			right = append(right, ref)
			rightBox.ExpandToIncludeBox(ref.box)
		default:
			straddlers = append(straddlers, ref)
		}
	}

	for _, ref := range straddlers {
		clipLeft := clipBoxToPlane(ref.box, axis, plane, true)
		clipRight := clipBoxToPlane(ref.box, axis, plane, false)

		withClipLeft := leftBox
		withClipLeft.ExpandToIncludeBox(clipLeft)
		withClipRight := rightBox
		withClipRight.ExpandToIncludeBox(clipRight)
		costSplit := withClipLeft.SurfaceArea() + withClipRight.SurfaceArea()

		withWholeLeft := leftBox
		withWholeLeft.ExpandToIncludeBox(ref.box)
		costLeft := withWholeLeft.SurfaceArea() + rightBox.SurfaceArea()

		withWholeRight := rightBox
		withWholeRight.ExpandToIncludeBox(ref.box)
		costRight := leftBox.SurfaceArea() + withWholeRight.SurfaceArea()

		switch {
		case costSplit <= costLeft && costSplit <= costRight:
			left = append(left, sbvhReference{primIndex: ref.primIndex, box: clipLeft})
			right = append(right, sbvhReference{primIndex: ref.primIndex, box: clipRight})
			leftBox, rightBox = withClipLeft, withClipRight
		case costLeft <= costRight:
			left = append(left, ref)
			leftBox = withWholeLeft
		default:
			right = append(right, ref)
			rightBox = withWholeRight
		}
	}
	return left, right
}

// clipBoxToPlane clamps a box at an axis-aligned plane. The result is a
// conservative, no longer tight bound: clipping a primitive's box is only
// exact when the primitive is itself an axis-aligned box.
func clipBoxToPlane(b geometry.BoundingBox, axis int, plane float64, keepLower bool) geometry.BoundingBox {
	out := b
	out.Tight = false
	if keepLower {
		if geometry.Component(out.Max, axis) > plane {
			geometry.SetComponent(&out.Max, axis, plane)
		}
	} else {
		if geometry.Component(out.Min, axis) < plane {
			geometry.SetComponent(&out.Min, axis, plane)
		}
	}
	return out
}

func binFor(value, lo, binWidth float64) int {
	bin := int((value - lo) / binWidth)
	if bin < 0 {
		return 0
	}
	if bin >= sbvhBinCount {
		return sbvhBinCount - 1
	}
	return bin
}

func partitionByCentroidPlane(refs []sbvhReference, axis int, plane float64) ([]sbvhReference, []sbvhReference, geometry.BoundingBox, geometry.BoundingBox) {
	var left, right []sbvhReference
	leftBox := geometry.NewBoundingBox()
	rightBox := geometry.NewBoundingBox()
	for _, ref := range refs {
		if geometry.Component(ref.box.Centroid(), axis) < plane {
			left = append(left, ref)
			leftBox.ExpandToIncludeBox(ref.box)
		} else {
			right = append(right, ref)
			rightBox.ExpandToIncludeBox(ref.box)
		}
	}
	return left, right, leftBox, rightBox
}

// medianSplit is the fallback when no cost-guided partition exists, e.g.
// when every centroid coincides. Splitting by position guarantees progress.
func medianSplit(refs []sbvhReference, axis int) ([]sbvhReference, []sbvhReference) {
	sorted := make([]sbvhReference, len(refs))
	copy(sorted, refs)
	sort.Slice(sorted, func(i, j int) bool {
		return geometry.Component(sorted[i].box.Centroid(), axis) < geometry.Component(sorted[j].box.Centroid(), axis)
	})
	mid := len(sorted) / 2
	return sorted[:mid], sorted[mid:]
}

// splitCost estimates the traversal cost of a candidate partition under the
// given heuristic. Degenerate zero measures are replaced by a max-float
// sentinel so comparisons stay well-ordered instead of dividing by zero or
// looking infinitely cheap.
func splitCost(h CostHeuristic, left, right geometry.BoundingBox, nLeft, nRight int, parent geometry.BoundingBox) float64 {
	switch h {
	case SurfaceArea, OverlapSurfaceArea:
		parentArea := parent.SurfaceArea()
		if parentArea == 0 {
			return math.MaxFloat64
		}
		cost := (left.SurfaceArea()*float64(nLeft) + right.SurfaceArea()*float64(nRight)) / parentArea
		if h == OverlapSurfaceArea {
			if overlap := left.Intersection(right); !overlap.IsEmpty() {
				cost += float64(nLeft+nRight) * overlap.SurfaceArea() / parentArea
			}
		}
		return cost
	case Volume, OverlapVolume:
		parentVolume := volumeOrMax(parent)
		cost := (volumeOrMax(left)*float64(nLeft) + volumeOrMax(right)*float64(nRight)) / parentVolume
		if h == OverlapVolume {
			if overlap := left.Intersection(right); !overlap.IsEmpty() {
				cost += float64(nLeft+nRight) * volumeOrMax(overlap) / parentVolume
			}
		}
		return cost
	default:
		return math.MaxFloat64
	}
}

// volumeOrMax substitutes a max-float sentinel for a zero-volume (flat or
// coincident) box.
func volumeOrMax(b geometry.BoundingBox) float64 {
	v := b.Volume()
	if v == 0 {
		return math.MaxFloat64
	}
	return v
}

// BoundingBox returns the root bound, or an empty box for an empty tree.
func (s *Sbvh) BoundingBox() geometry.BoundingBox {
	if len(s.flatTree) == 0 {
		return geometry.NewBoundingBox()
	}
	return s.flatTree[0].box
}

// Centroid returns the root bound center.
func (s *Sbvh) Centroid() r3.Vector {
	return s.BoundingBox().Centroid()
}

// SurfaceArea returns the summed primitive surface area.
func (s *Sbvh) SurfaceArea() float64 {
	area := 0.0
	for _, p := range s.primitives {
		area += p.SurfaceArea()
	}
	return area
}

// SignedVolume returns the summed primitive signed volume.
func (s *Sbvh) SignedVolume() float64 {
	volume := 0.0
	for _, p := range s.primitives {
		volume += p.SignedVolume()
	}
	return volume
}

// Intersect traverses the hierarchy collecting ray hits. Duplicate hits from
// references split across both sides of a partition plane are removed before
// the list is returned.
func (s *Sbvh) Intersect(r *geometry.Ray, is *[]geometry.Interaction, checkOcclusion, countHits, collectAll bool) int {
	base := len(*is)
	hits, occluded := intersectFlatTree(
		s.flatTree,
		func(slot int) (int, geometry.Primitive) {
			idx := s.primIndices[slot]
			return idx, s.primitives[idx]
		},
		r, is, checkOcclusion, countHits, collectAll,
	)
	if occluded {
		return 1
	}
	if hits == 0 {
		return 0
	}
	return finalizeInteractions(r, is, base, countHits, true)
}

// ClosestPoint traverses the hierarchy shrinking the query sphere toward the
// nearest primitive.
func (s *Sbvh) ClosestPoint(sp *geometry.BoundingSphere, i *geometry.Interaction) bool {
	return closestPointFlatTree(
		s.flatTree,
		func(slot int) (int, geometry.Primitive) {
			idx := s.primIndices[slot]
			return idx, s.primitives[idx]
		},
		sp, i,
	)
}
