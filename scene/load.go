package scene

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chenzhekl/goply"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.spatial.dev/geomaccel/geometry"
)

// LoadingOption selects how polygonal data is converted to primitives.
type LoadingOption int

const (
	// LoadTriangles fan-triangulates faces.
	LoadTriangles LoadingOption = iota
	// LoadSegments converts face and polyline edges to line segments.
	LoadSegments
)

// LoadFile reads primitives from an OBJ or PLY file, dispatching on the
// extension.
func LoadFile(path string, opt LoadingOption, logger golog.Logger) ([]geometry.Primitive, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var primitives []geometry.Primitive
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj":
		primitives, err = loadOBJ(f, opt)
	case ".ply":
		primitives, err = loadPLY(f, opt)
	default:
		return nil, errors.Errorf("do not know how to load %q", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "loading %q", path)
	}
	if logger != nil {
		logger.Debugf("loaded %d primitives from %s", len(primitives), path)
	}
	return primitives, nil
}

// loadOBJ reads the v, f and l statements of a wavefront OBJ stream. Texture
// and normal indices after '/' are ignored; negative indices are relative to
// the vertices seen so far.
func loadOBJ(r io.Reader, opt LoadingOption) ([]geometry.Primitive, error) {
	var vertices []r3.Vector
	var primitives []geometry.Primitive

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, errors.Errorf("obj line %d: vertex needs 3 coordinates", lineNo)
			}
			var coords [3]float64
			for k := 0; k < 3; k++ {
				value, err := strconv.ParseFloat(fields[k+1], 64)
				if err != nil {
					return nil, errors.Wrapf(err, "obj line %d: bad vertex coordinate", lineNo)
				}
				coords[k] = value
			}
			vertices = append(vertices, r3.Vector{X: coords[0], Y: coords[1], Z: coords[2]})
		case "f":
			indices, err := objIndices(fields[1:], len(vertices), lineNo)
			if err != nil {
				return nil, err
			}
			if len(indices) < 3 {
				return nil, errors.Errorf("obj line %d: face needs at least 3 vertices", lineNo)
			}
			if opt == LoadSegments {
				for k := 0; k < len(indices); k++ {
					next := (k + 1) % len(indices)
					primitives = append(primitives, geometry.NewSegment(vertices[indices[k]], vertices[indices[next]]))
				}
			} else {
				for k := 1; k+1 < len(indices); k++ {
					primitives = append(primitives, geometry.NewTriangle(
						vertices[indices[0]], vertices[indices[k]], vertices[indices[k+1]]))
				}
			}
		case "l":
			indices, err := objIndices(fields[1:], len(vertices), lineNo)
			if err != nil {
				return nil, err
			}
			if len(indices) < 2 {
				return nil, errors.Errorf("obj line %d: polyline needs at least 2 vertices", lineNo)
			}
			for k := 0; k+1 < len(indices); k++ {
				primitives = append(primitives, geometry.NewSegment(vertices[indices[k]], vertices[indices[k+1]]))
			}
		default:
			// vt, vn, usemtl, o, g, s and friends carry no geometry we use
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return primitives, nil
}

// objIndices resolves face/polyline vertex references to zero-based indices,
// dropping any /texture/normal suffixes.
func objIndices(tokens []string, nVertices, lineNo int) ([]int, error) {
	indices := make([]int, 0, len(tokens))
	for _, token := range tokens {
		if slash := strings.IndexByte(token, '/'); slash >= 0 {
			token = token[:slash]
		}
		idx, err := strconv.Atoi(token)
		if err != nil {
			return nil, errors.Wrapf(err, "obj line %d: bad vertex reference", lineNo)
		}
		if idx < 0 {
			idx += nVertices
		} else {
			idx--
		}
		if idx < 0 || idx >= nVertices {
			return nil, errors.Errorf("obj line %d: vertex reference %s out of range", lineNo, token)
		}
		indices = append(indices, idx)
	}
	return indices, nil
}

// loadPLY reads vertices and faces from a PLY stream.
func loadPLY(r io.Reader, opt LoadingOption) ([]geometry.Primitive, error) {
	ply := goply.New(r)

	vertexElems := ply.Elements("vertex")
	vertices := make([]r3.Vector, 0, len(vertexElems))
	for _, v := range vertexElems {
		x, err := plyFloat(v["x"])
		if err != nil {
			return nil, errors.Wrap(err, "ply vertex x")
		}
		y, err := plyFloat(v["y"])
		if err != nil {
			return nil, errors.Wrap(err, "ply vertex y")
		}
		z, err := plyFloat(v["z"])
		if err != nil {
			return nil, errors.Wrap(err, "ply vertex z")
		}
		vertices = append(vertices, r3.Vector{X: x, Y: y, Z: z})
	}

	var primitives []geometry.Primitive
	for _, f := range ply.Elements("face") {
		raw, ok := f["vertex_indices"]
		if !ok {
			raw, ok = f["vertex_index"]
		}
		if !ok {
			return nil, errors.New("ply face missing vertex_indices property")
		}
		indices, err := plyIntSlice(raw)
		if err != nil {
			return nil, err
		}
		for _, idx := range indices {
			if idx < 0 || idx >= len(vertices) {
				return nil, errors.Errorf("ply face index %d out of range", idx)
			}
		}
		if len(indices) < 3 {
			return nil, errors.New("ply face needs at least 3 vertices")
		}
		if opt == LoadSegments {
			for k := 0; k < len(indices); k++ {
				next := (k + 1) % len(indices)
				primitives = append(primitives, geometry.NewSegment(vertices[indices[k]], vertices[indices[next]]))
			}
		} else {
			for k := 1; k+1 < len(indices); k++ {
				primitives = append(primitives, geometry.NewTriangle(
					vertices[indices[0]], vertices[indices[k]], vertices[indices[k+1]]))
			}
		}
	}
	return primitives, nil
}

// plyFloat converts the parser's dynamically typed scalar values; headers
// declare float, double or integer property types.
func plyFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	default:
		return 0, errors.Errorf("unexpected ply value type %T", value)
	}
}

func plyIntSlice(value interface{}) ([]int, error) {
	switch v := value.(type) {
	case []int:
		return v, nil
	case []int32:
		out := make([]int, len(v))
		for i, x := range v {
			out[i] = int(x)
		}
		return out, nil
	case []uint32:
		out := make([]int, len(v))
		for i, x := range v {
			out[i] = int(x)
		}
		return out, nil
	case []interface{}:
		out := make([]int, len(v))
		for i, x := range v {
			f, err := plyFloat(x)
			if err != nil {
				return nil, err
			}
			out[i] = int(f)
		}
		return out, nil
	default:
		return nil, errors.Errorf("unexpected ply list type %T", value)
	}
}
