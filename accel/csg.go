package accel

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.spatial.dev/geomaccel/geometry"
)

// CsgNode combines two Aggregates under a boolean operation. The combination
// is itself an Aggregate, so CSG trees nest arbitrarily, and a child may be
// shared by several parents since nothing mutates after construction.
type CsgNode struct {
	left      Aggregate
	right     Aggregate
	operation BooleanOperation
	box       geometry.BoundingBox
}

// NewCsgNode combines two aggregates. Nil children are a configuration
// error the caller must rule out before construction.
func NewCsgNode(left, right Aggregate, operation BooleanOperation) (*CsgNode, error) {
	if left == nil || right == nil {
		return nil, errors.New("csg node children cannot be nil")
	}
	n := &CsgNode{left: left, right: right, operation: operation}
	n.computeBoundingBox()
	return n, nil
}

// Operation returns the node's boolean operation.
func (n *CsgNode) Operation() BooleanOperation {
	return n.operation
}

// computeBoundingBox caches a conservative bound once at construction;
// children are immutable afterwards so it is never recomputed.
func (n *CsgNode) computeBoundingBox() {
	box := geometry.NewBoundingBox()
	box.Tight = false

	switch n.operation {
	case Intersection:
		// use the child bounding box with the smaller extent; this is not
		// the tightest fit box
		leftBox := n.left.BoundingBox()
		rightBox := n.right.BoundingBox()
		if leftBox.Extent().Norm2() < rightBox.Extent().Norm2() {
			box.Min, box.Max = leftBox.Min, leftBox.Max
		} else {
			box.Min, box.Max = rightBox.Min, rightBox.Max
		}
	case Difference:
		// use the bounding box of the left child (the object subtracted
		// from); this is not the tightest fit box
		leftBox := n.left.BoundingBox()
		box.Min, box.Max = leftBox.Min, leftBox.Max
	default:
		// this is the tightest fit box for the union and none operations
		leftBox := n.left.BoundingBox()
		rightBox := n.right.BoundingBox()
		box.ExpandToIncludeBox(leftBox)
		box.ExpandToIncludeBox(rightBox)
		box.Tight = leftBox.Tight && rightBox.Tight
	}
	n.box = box
}

// BoundingBox returns the cached conservative bound.
func (n *CsgNode) BoundingBox() geometry.BoundingBox {
	return n.box
}

// Centroid returns the cached bound's center.
func (n *CsgNode) Centroid() r3.Vector {
	return n.box.Centroid()
}

// SurfaceArea returns an overestimate of the combined surface area.
func (n *CsgNode) SurfaceArea() float64 {
	return n.left.SurfaceArea() + n.right.SurfaceArea()
}

// SignedVolume returns an overestimate of the combined volume. A zero-volume
// bound is treated as effectively infinite so comparisons stay well-ordered.
func (n *CsgNode) SignedVolume() float64 {
	boxVolume := n.box.Volume()
	if boxVolume == 0 {
		boxVolume = math.MaxFloat64
	}

	switch n.operation {
	case Intersection:
		return math.Min(boxVolume, math.Min(n.left.SignedVolume(), n.right.SignedVolume()))
	case Difference:
		return math.Min(boxVolume, n.left.SignedVolume())
	default:
		return math.Min(boxVolume, n.left.SignedVolume()+n.right.SignedVolume())
	}
}

// emitCrossing decides whether a boundary crossing that moved the running
// inside-count from before to after belongs in the combined shape's surface
// under the node's operation.
func emitCrossing(operation BooleanOperation, before, after int) bool {
	if operation == Intersection || operation == Difference {
		return (before == 1 && after == 2) || (before == 2 && after == 1)
	}
	// operation is union
	return (before == 0 && after == 1) || (before == 1 && after == 0)
}

// computeInteractions merges the two children's sorted interaction lists
// into the list for their boolean combination. Each sorted list encodes
// alternating entering/exiting crossings of the ray through that child's
// boundary; a running inside-count is updated as crossings are consumed in
// distance order, and a crossing is emitted exactly when the combined
// inside/outside state transitions under the operation's truth table.
func (n *CsgNode) computeInteractions(isLeft, isRight []geometry.Interaction, is *[]geometry.Interaction) {
	nLeft, nRight := 0, 0
	hitsLeft, hitsRight := len(isLeft), len(isRight)

	// even-length lists start outside; difference treats the right list's
	// initial parity as inverted since the subtracted shape is complemented
	isLeftIntervalStart := hitsLeft%2 == 0
	rightParity := 0
	if n.operation == Difference {
		rightParity = 1
	}
	isRightIntervalStart := hitsRight%2 == rightParity

	counter := 0
	if !isLeftIntervalStart {
		counter++
	}
	if !isRightIntervalStart {
		counter++
	}

	for nLeft != hitsLeft || nRight != hitsRight {
		if n.operation == Intersection && (nLeft == hitsLeft || nRight == hitsRight) {
			break
		}
		if n.operation == Difference && nLeft == hitsLeft {
			break
		}

		counterBefore := counter
		if nRight == hitsRight || (nLeft != hitsLeft && isLeft[nLeft].D < isRight[nRight].D) {
			// left interaction is closer than right interaction
			if isLeftIntervalStart {
				counter++
			} else {
				counter--
			}
			isLeftIntervalStart = !isLeftIntervalStart
			if emitCrossing(n.operation, counterBefore, counter) {
				*is = append(*is, isLeft[nLeft])
			}
			nLeft++
		} else {
			// right interaction is closer than left interaction
			if isRightIntervalStart {
				counter++
			} else {
				counter--
			}
			isRightIntervalStart = !isRightIntervalStart
			if emitCrossing(n.operation, counterBefore, counter) {
				out := isRight[nRight]
				if n.operation == Difference {
					// subtraction inverts the subtracted surface
					out.Normal = out.Normal.Mul(-1)
				}
				*is = append(*is, out)
			}
			nRight++
		}
	}
}

// Intersect queries both children for their complete interaction lists and
// merges them under the boolean operation.
func (n *CsgNode) Intersect(r *geometry.Ray, is *[]geometry.Interaction, checkOcclusion, countHits, collectAll bool) int {
	if _, _, hit := n.box.IntersectRay(r); !hit {
		return 0
	}
	base := len(*is)

	// both children are queried with complete lists requested, since
	// boolean combination needs full interval information
	rLeft := *r
	var isLeft []geometry.Interaction
	hitsLeft := n.left.Intersect(&rLeft, &isLeft, false, true, collectAll)

	if hitsLeft == 0 && (n.operation == Intersection || n.operation == Difference) {
		return 0
	}

	rRight := *r
	var isRight []geometry.Interaction
	hitsRight := n.right.Intersect(&rRight, &isRight, false, true, collectAll)

	if hitsLeft == 0 && hitsRight == 0 {
		return 0
	}

	switch {
	case hitsLeft > 0 && hitsRight > 0:
		if n.operation == None {
			// plain sorted merge, no parity filtering
			*is = append(*is, isLeft...)
			*is = append(*is, isRight...)
			geometry.SortInteractions((*is)[base:])
		} else {
			n.computeInteractions(isLeft, isRight, is)
		}
	case hitsLeft > 0:
		if n.operation == Intersection {
			return 0
		}
		*is = append(*is, isLeft...)
	default:
		// union and none keep the right child's hits; intersection and
		// difference were already handled by the left-miss early exit
		if n.operation == Intersection || n.operation == Difference {
			return 0
		}
		*is = append(*is, isRight...)
	}

	hits := len(*is) - base
	if hits > 0 && !countHits {
		// list is already sorted by construction of the merge
		r.TMax = (*is)[base].D
	}
	if hits > 0 && checkOcclusion && !collectAll {
		return 1
	}
	return hits
}

// ClosestPoint queries both children and combines their signed distances
// under the boolean operation. The result degrades to a bounded distance
// whenever the conservative child bounds cannot certify that the selected
// side's closest feature is also the combined shape's closest feature.
func (n *CsgNode) ClosestPoint(s *geometry.BoundingSphere, i *geometry.Interaction) bool {
	if _, _, hit := n.box.OverlapsSphere(s); !hit {
		return false
	}

	var iLeft geometry.Interaction
	sLeft := *s
	foundLeft := n.left.ClosestPoint(&sLeft, &iLeft)

	if !foundLeft && (n.operation == Intersection || n.operation == Difference) {
		return false
	}

	var iRight geometry.Interaction
	sRight := *s
	foundRight := n.right.ClosestPoint(&sRight, &iRight)

	if !foundLeft && !foundRight {
		return false
	}

	switch {
	case foundLeft && foundRight:
		sdLeft := iLeft.SignedDistance(s.Center)
		sdRight := iRight.SignedDistance(s.Center)
		bothExact := iLeft.Info == geometry.DistanceExact && iRight.Info == geometry.DistanceExact

		switch n.operation {
		case Union:
			// min(sdLeft, sdRight)
			if sdLeft < sdRight {
				*i = iLeft
			} else {
				*i = iRight
			}
			if bothExact && sdLeft > 0 && sdRight > 0 {
				i.Info = geometry.DistanceExact
			} else {
				i.Info = geometry.DistanceBounded
			}
		case Intersection:
			// max(sdLeft, sdRight)
			if sdLeft > sdRight {
				*i = iLeft
			} else {
				*i = iRight
			}
			if bothExact && sdLeft < 0 && sdRight < 0 {
				i.Info = geometry.DistanceExact
			} else {
				i.Info = geometry.DistanceBounded
			}
		case Difference:
			// max(sdLeft, -sdRight) with the subtracted surface inverted
			iRight.Normal = iRight.Normal.Mul(-1)
			iRight.Sign *= -1
			if sdLeft > -sdRight {
				*i = iLeft
			} else {
				*i = iRight
			}
			if bothExact && sdLeft < 0 && sdRight > 0 {
				i.Info = geometry.DistanceExact
			} else {
				i.Info = geometry.DistanceBounded
			}
		default:
			// the nearer of the two by unsigned distance
			if iLeft.D < iRight.D {
				*i = iLeft
			} else {
				*i = iRight
			}
		}
	case foundLeft:
		if n.operation == Intersection {
			return false
		}
		*i = iLeft
	default:
		if n.operation == Intersection || n.operation == Difference {
			return false
		}
		*i = iRight
	}

	s.R2 = math.Min(s.R2, i.D*i.D)
	return true
}
