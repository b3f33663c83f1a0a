package scene

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"go.spatial.dev/geomaccel/accel"
)

// CsgEntry is one node of a CSG topology. Left and Right are 1-based IDs:
// IDs 1..N refer to scene instances, larger IDs to other CSG entries, so a
// child may be shared by several parents.
type CsgEntry struct {
	Operation accel.BooleanOperation
	Left      int
	Right     int
}

// ParseCSG reads a CSG topology. Each line is
//
//	nodeID operation leftID rightID
//
// with operation one of Union, Intersection, Difference or None. Blank lines
// and lines starting with '#' are skipped.
func ParseCSG(r io.Reader) (map[int]CsgEntry, error) {
	entries := map[int]CsgEntry{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 4 {
			return nil, errors.Errorf("csg line %d: expected \"nodeID op leftID rightID\", got %q", lineNo, line)
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, errors.Wrapf(err, "csg line %d: bad node id", lineNo)
		}
		op, err := accel.ParseBooleanOperation(fields[1])
		if err != nil {
			return nil, errors.Wrapf(err, "csg line %d", lineNo)
		}
		left, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, errors.Wrapf(err, "csg line %d: bad left id", lineNo)
		}
		right, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, errors.Wrapf(err, "csg line %d: bad right id", lineNo)
		}
		if _, exists := entries[id]; exists {
			return nil, errors.Errorf("csg line %d: node %d defined twice", lineNo, id)
		}
		entries[id] = CsgEntry{Operation: op, Left: left, Right: right}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.New("csg file defines no nodes")
	}
	return entries, nil
}

// assembleCsg instantiates the topology over the built instance aggregates
// and returns its root: the single entry no other entry references. Shared
// children become shared aggregates, forming a DAG rather than a tree.
func assembleCsg(entries map[int]CsgEntry, leaves []accel.Aggregate) (accel.Aggregate, error) {
	// IDs 1..len(leaves) name instances; entries must not shadow them
	for id := range entries {
		if id <= len(leaves) {
			return nil, errors.Errorf("csg node id %d collides with instance ids 1..%d", id, len(leaves))
		}
	}
	referenced := map[int]bool{}
	for _, entry := range entries {
		referenced[entry.Left] = true
		referenced[entry.Right] = true
	}
	root := 0
	for id := range entries {
		if !referenced[id] {
			if root != 0 {
				return nil, errors.Errorf("csg topology has multiple roots: %d and %d", root, id)
			}
			root = id
		}
	}
	if root == 0 {
		return nil, errors.New("csg topology has no root (reference cycle)")
	}

	memo := map[int]accel.Aggregate{}
	visiting := map[int]bool{}
	var instantiate func(id int) (accel.Aggregate, error)
	instantiate = func(id int) (accel.Aggregate, error) {
		if agg, ok := memo[id]; ok {
			return agg, nil
		}
		if id >= 1 && id <= len(leaves) {
			memo[id] = leaves[id-1]
			return leaves[id-1], nil
		}
		entry, ok := entries[id]
		if !ok {
			return nil, errors.Errorf("csg node %d is referenced but never defined", id)
		}
		if visiting[id] {
			return nil, errors.Errorf("csg node %d participates in a cycle", id)
		}
		visiting[id] = true
		defer delete(visiting, id)

		left, err := instantiate(entry.Left)
		if err != nil {
			return nil, err
		}
		right, err := instantiate(entry.Right)
		if err != nil {
			return nil, err
		}
		node, err := accel.NewCsgNode(left, right, entry.Operation)
		if err != nil {
			return nil, errors.Wrapf(err, "csg node %d", id)
		}
		memo[id] = node
		return node, nil
	}
	return instantiate(root)
}
