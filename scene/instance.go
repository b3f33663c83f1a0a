package scene

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.spatial.dev/geomaccel/geometry"
)

// Instance places an object in the scene under an affine transform.
type Instance struct {
	Object    int
	Transform mgl64.Mat4
}

// ParseInstances reads an instance list. Each line is an object index
// optionally followed by 16 row-major floats for the transform; a bare index
// means identity. Blank lines and '#' comments are skipped.
func ParseInstances(r io.Reader, nObjects int) ([]Instance, error) {
	var instances []Instance
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 1 && len(fields) != 17 {
			return nil, errors.Errorf("instance line %d: expected object index plus optional 16 transform values", lineNo)
		}
		object, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, errors.Wrapf(err, "instance line %d: bad object index", lineNo)
		}
		if object < 0 || object >= nObjects {
			return nil, errors.Errorf("instance line %d: object %d out of range (scene has %d)", lineNo, object, nObjects)
		}
		transform := mgl64.Ident4()
		if len(fields) == 17 {
			for k := 0; k < 16; k++ {
				value, err := strconv.ParseFloat(fields[k+1], 64)
				if err != nil {
					return nil, errors.Wrapf(err, "instance line %d: bad transform value", lineNo)
				}
				transform.Set(k/4, k%4, value)
			}
		}
		instances = append(instances, Instance{Object: object, Transform: transform})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return nil, errors.New("instance file defines no instances")
	}
	return instances, nil
}

func transformPoint(m mgl64.Mat4, v r3.Vector) r3.Vector {
	out := mgl64.TransformCoordinate(mgl64.Vec3{v.X, v.Y, v.Z}, m)
	return r3.Vector{X: out.X(), Y: out.Y(), Z: out.Z()}
}

// maxColumnScale returns the largest column norm of the transform's linear
// part; it bounds how much the transform can stretch any direction.
func maxColumnScale(m mgl64.Mat4) float64 {
	scale := 0.0
	for col := 0; col < 3; col++ {
		n := math.Sqrt(m.At(0, col)*m.At(0, col) + m.At(1, col)*m.At(1, col) + m.At(2, col)*m.At(2, col))
		scale = math.Max(scale, n)
	}
	return scale
}

func transformPrimitives(primitives []geometry.Primitive, m mgl64.Mat4) ([]geometry.Primitive, error) {
	if m == mgl64.Ident4() {
		// hierarchy builds reorder their primitive slice in place, so every
		// instance needs its own backing array even under identity
		out := make([]geometry.Primitive, len(primitives))
		copy(out, primitives)
		return out, nil
	}
	out := make([]geometry.Primitive, 0, len(primitives))
	for _, p := range primitives {
		tp, err := transformPrimitive(p, m)
		if err != nil {
			return nil, err
		}
		out = append(out, tp)
	}
	return out, nil
}

func transformPrimitive(p geometry.Primitive, m mgl64.Mat4) (geometry.Primitive, error) {
	switch prim := p.(type) {
	case *geometry.Triangle:
		pts := prim.Points()
		return geometry.NewTriangle(
			transformPoint(m, pts[0]),
			transformPoint(m, pts[1]),
			transformPoint(m, pts[2]),
		), nil
	case *geometry.Segment:
		pts := prim.Points()
		return geometry.NewSegment(transformPoint(m, pts[0]), transformPoint(m, pts[1])), nil
	case *geometry.Sphere:
		// a sphere stays a sphere only under uniform scaling; the largest
		// column scale keeps the result conservative otherwise
		sp, err := geometry.NewSphere(transformPoint(m, prim.Center()), prim.Radius()*maxColumnScale(m))
		if err != nil {
			return nil, err
		}
		return sp, nil
	default:
		return nil, errors.Errorf("cannot instance primitive of type %T", p)
	}
}
