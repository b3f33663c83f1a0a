// Package scene assembles geometry into queryable aggregates: it loads
// primitives from OBJ and PLY files, applies instance transforms, parses CSG
// topology, and builds the configured acceleration structure over the
// result.
package scene

import (
	"github.com/edaniels/golog"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"go.spatial.dev/geomaccel/accel"
	"go.spatial.dev/geomaccel/geometry"
)

// BuildConfig selects the acceleration structure built over the scene.
type BuildConfig struct {
	// Accelerator is one of "baseline", "bvh" (default) or "sbvh".
	Accelerator string
	// LeafSize bounds primitives per leaf; zero selects the default.
	LeafSize int
	// Heuristic selects the sbvh partition-cost model.
	Heuristic accel.CostHeuristic
}

// Scene holds loaded objects, their instances, and an optional CSG topology
// over the instances.
type Scene struct {
	objects   [][]geometry.Primitive
	instances []Instance
	csg       map[int]CsgEntry
	logger    golog.Logger
}

// New returns an empty scene.
func New(logger golog.Logger) *Scene {
	return &Scene{logger: logger}
}

// AddObject registers a primitive list and returns its object index.
func (s *Scene) AddObject(primitives []geometry.Primitive) int {
	s.objects = append(s.objects, primitives)
	return len(s.objects) - 1
}

// SetInstances replaces the scene's instance list. Without instances every
// object is placed once with an identity transform.
func (s *Scene) SetInstances(instances []Instance) {
	s.instances = instances
}

// SetCSG installs a CSG topology whose leaf IDs reference instances 1..N in
// order.
func (s *Scene) SetCSG(entries map[int]CsgEntry) {
	s.csg = entries
}

// Build assembles the scene into a single queryable aggregate. Per-instance
// aggregates have no data dependency on one another and are built
// concurrently; the CSG combination happens after all of them finish.
func (s *Scene) Build(cfg BuildConfig) (accel.Aggregate, error) {
	if len(s.objects) == 0 {
		return nil, errors.New("scene has no objects")
	}

	instances := s.instances
	if len(instances) == 0 {
		instances = make([]Instance, len(s.objects))
		for i := range instances {
			instances[i] = Instance{Object: i, Transform: mgl64.Ident4()}
		}
	}
	for _, inst := range instances {
		if inst.Object < 0 || inst.Object >= len(s.objects) {
			return nil, errors.Errorf("instance references object %d, scene has %d", inst.Object, len(s.objects))
		}
	}

	instancePrims := make([][]geometry.Primitive, len(instances))
	for i, inst := range instances {
		prims, err := transformPrimitives(s.objects[inst.Object], inst.Transform)
		if err != nil {
			return nil, err
		}
		instancePrims[i] = prims
	}

	if len(s.csg) == 0 {
		var all []geometry.Primitive
		for _, prims := range instancePrims {
			all = append(all, prims...)
		}
		return buildAggregate(all, cfg)
	}

	// independent builds; join before the CSG nodes read their children
	leaves := make([]accel.Aggregate, len(instancePrims))
	var group errgroup.Group
	for i := range instancePrims {
		i := i
		group.Go(func() error {
			agg, err := buildAggregate(instancePrims[i], cfg)
			if err != nil {
				return err
			}
			leaves[i] = agg
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Debugf("built %d instance aggregates (%s)", len(leaves), cfg.Accelerator)
	}

	return assembleCsg(s.csg, leaves)
}

func buildAggregate(primitives []geometry.Primitive, cfg BuildConfig) (accel.Aggregate, error) {
	switch cfg.Accelerator {
	case "", "bvh":
		return accel.NewBvh(primitives, cfg.LeafSize), nil
	case "sbvh":
		return accel.NewSbvh(primitives, cfg.Heuristic, cfg.LeafSize), nil
	case "baseline":
		return accel.NewBaseline(primitives), nil
	default:
		return nil, errors.Errorf("unknown accelerator %q", cfg.Accelerator)
	}
}
