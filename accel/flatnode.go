package accel

import (
	"go.spatial.dev/geomaccel/geometry"
)

// bvhFlatNode is one node of the flattened binary tree. The whole tree is a
// single contiguous pre-order array: a node's left child is the next array
// slot and its right child is rightOffset slots ahead, so traversal can skip
// a pruned right subtree by jumping rightOffset entries instead of recursing.
// rightOffset == 0 iff the node is a leaf.
type bvhFlatNode struct {
	box         geometry.BoundingBox
	start       int
	nPrimitives int
	rightOffset int
}

// sentinel parent/offset values used while the flat tree is under
// construction; a finished internal node always has a positive rightOffset.
const (
	untouchedNode      = -1
	touchedOnceNode    = -2
	rootParentSentinel = -3
)

// patchParentOffset records a finished child on its parent. The second child
// created for a parent fixes the parent's rightOffset, since children are
// emitted in pre-order and the right child immediately follows the entire
// left subtree.
func patchParentOffset(flatTree []bvhFlatNode, parent, childIndex int) {
	if parent == rootParentSentinel {
		return
	}
	switch flatTree[parent].rightOffset {
	case untouchedNode:
		flatTree[parent].rightOffset = touchedOnceNode
	case touchedOnceNode:
		flatTree[parent].rightOffset = childIndex - parent
	}
}

// intersectFlatTree walks the flattened tree with an explicit stack of node
// indices, visiting the nearer child first so r.TMax tightens early. prim
// maps a leaf slot to the primitive and its index within the aggregate.
func intersectFlatTree(
	flatTree []bvhFlatNode,
	prim func(slot int) (int, geometry.Primitive),
	r *geometry.Ray,
	is *[]geometry.Interaction,
	checkOcclusion, countHits, collectAll bool,
) (int, bool) {
	if len(flatTree) == 0 {
		return 0, false
	}
	if _, _, hit := flatTree[0].box.IntersectRay(r); !hit {
		return 0, false
	}

	hits := 0
	todo := make([]int, 1, 64)
	todo[0] = 0
	for len(todo) > 0 {
		ni := todo[len(todo)-1]
		todo = todo[:len(todo)-1]
		node := &flatTree[ni]

		if node.rightOffset == 0 {
			for slot := node.start; slot < node.start+node.nPrimitives; slot++ {
				idx, p := prim(slot)
				var cs []geometry.Interaction
				h := p.Intersect(r, &cs, checkOcclusion, countHits, collectAll)
				if h == 0 {
					continue
				}
				if checkOcclusion && !collectAll {
					return 1, true
				}
				for k := range cs {
					cs[k].PrimitiveIndex = idx
				}
				*is = append(*is, cs...)
				hits += h
			}
			continue
		}

		left, right := ni+1, ni+node.rightOffset
		tLeft, _, hitLeft := flatTree[left].box.IntersectRay(r)
		tRight, _, hitRight := flatTree[right].box.IntersectRay(r)
		switch {
		case hitLeft && hitRight:
			// push the farther child first so the nearer one pops next
			if tRight < tLeft {
				left, right = right, left
			}
			todo = append(todo, right, left)
		case hitLeft:
			todo = append(todo, left)
		case hitRight:
			todo = append(todo, right)
		}
	}
	return hits, false
}

type closestPointEntry struct {
	node int
	d2   float64
}

// closestPointFlatTree walks the flattened tree pruning on the sphere's
// current squared radius, which only ever shrinks as closer primitives are
// found.
func closestPointFlatTree(
	flatTree []bvhFlatNode,
	prim func(slot int) (int, geometry.Primitive),
	s *geometry.BoundingSphere,
	i *geometry.Interaction,
) bool {
	if len(flatTree) == 0 {
		return false
	}
	d2Root, _, hit := flatTree[0].box.OverlapsSphere(s)
	if !hit {
		return false
	}

	found := false
	todo := make([]closestPointEntry, 1, 64)
	todo[0] = closestPointEntry{node: 0, d2: d2Root}
	for len(todo) > 0 {
		entry := todo[len(todo)-1]
		todo = todo[:len(todo)-1]
		if entry.d2 > s.R2 {
			continue
		}
		node := &flatTree[entry.node]

		if node.rightOffset == 0 {
			for slot := node.start; slot < node.start+node.nPrimitives; slot++ {
				idx, p := prim(slot)
				var ci geometry.Interaction
				if p.ClosestPoint(s, &ci) {
					ci.PrimitiveIndex = idx
					*i = ci
					found = true
				}
			}
			continue
		}

		left, right := entry.node+1, entry.node+node.rightOffset
		d2Left, _, hitLeft := flatTree[left].box.OverlapsSphere(s)
		d2Right, _, hitRight := flatTree[right].box.OverlapsSphere(s)
		switch {
		case hitLeft && hitRight:
			// push the farther child first so the nearer one pops next
			if d2Right < d2Left {
				left, right = right, left
				d2Left, d2Right = d2Right, d2Left
			}
			todo = append(todo, closestPointEntry{right, d2Right}, closestPointEntry{left, d2Left})
		case hitLeft:
			todo = append(todo, closestPointEntry{left, d2Left})
		case hitRight:
			todo = append(todo, closestPointEntry{right, d2Right})
		}
	}
	return found
}
