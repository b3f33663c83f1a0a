// Package main is a CLI that loads geometry files, builds an acceleration
// structure over them, and reports timing for randomized ray and
// closest-point queries.
package main

import (
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.spatial.dev/geomaccel/accel"
	"go.spatial.dev/geomaccel/geometry"
	"go.spatial.dev/geomaccel/scene"
)

var logger = golog.NewDevelopmentLogger("geomaccel")

func main() {
	app := &cli.App{
		Name:  "geomaccel",
		Usage: "build a spatial index over geometry files and benchmark queries against it",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:     "file",
				Usage:    "geometry file to load (.obj or .ply); repeatable, one object each",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "segments",
				Usage: "load polygon edges as line segments instead of triangulating",
			},
			&cli.StringFlag{
				Name:  "instances",
				Usage: "instance transform file (object index plus 16 row-major floats per line)",
			},
			&cli.StringFlag{
				Name:  "csg",
				Usage: "csg topology file combining the instances",
			},
			&cli.StringFlag{
				Name:  "accelerator",
				Usage: "baseline, bvh or sbvh",
				Value: "bvh",
			},
			&cli.IntFlag{
				Name:  "leaf-size",
				Usage: "maximum primitives per leaf",
				Value: accel.DefaultLeafSize,
			},
			&cli.StringFlag{
				Name:  "heuristic",
				Usage: "sbvh cost heuristic: LongestAxisCenter, SurfaceArea, OverlapSurfaceArea, Volume or OverlapVolume",
				Value: "SurfaceArea",
			},
			&cli.IntFlag{
				Name:  "queries",
				Usage: "number of random queries per benchmark",
				Value: 1000,
			},
			&cli.Int64Flag{
				Name:  "seed",
				Usage: "random seed for query generation",
				Value: 1,
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		logger.Fatal(err)
	}
}

func run(c *cli.Context) error {
	opt := scene.LoadTriangles
	if c.Bool("segments") {
		opt = scene.LoadSegments
	}

	sc := scene.New(logger)
	total := 0
	for _, path := range c.StringSlice("file") {
		primitives, err := scene.LoadFile(path, opt, logger)
		if err != nil {
			return err
		}
		if len(primitives) == 0 {
			return errors.Errorf("%q contains no geometry", path)
		}
		sc.AddObject(primitives)
		total += len(primitives)
	}
	logger.Infof("loaded %d objects, %d primitives", len(c.StringSlice("file")), total)

	if path := c.String("instances"); path != "" {
		f, err := os.Open(path) //nolint:gosec
		if err != nil {
			return err
		}
		instances, err := scene.ParseInstances(f, len(c.StringSlice("file")))
		f.Close() //nolint:errcheck,gosec
		if err != nil {
			return err
		}
		sc.SetInstances(instances)
		logger.Infof("placed %d instances", len(instances))
	}

	if path := c.String("csg"); path != "" {
		f, err := os.Open(path) //nolint:gosec
		if err != nil {
			return err
		}
		entries, err := scene.ParseCSG(f)
		f.Close() //nolint:errcheck,gosec
		if err != nil {
			return err
		}
		sc.SetCSG(entries)
		logger.Infof("parsed csg topology with %d nodes", len(entries))
	}

	heuristic, err := accel.ParseCostHeuristic(c.String("heuristic"))
	if err != nil {
		return err
	}
	cfg := scene.BuildConfig{
		Accelerator: c.String("accelerator"),
		LeafSize:    c.Int("leaf-size"),
		Heuristic:   heuristic,
	}

	start := time.Now()
	agg, err := sc.Build(cfg)
	if err != nil {
		return err
	}
	logger.Infof("built %s accelerator in %v", cfg.Accelerator, time.Since(start))

	benchmark(agg, c.Int("queries"), c.Int64("seed"))
	return nil
}

// benchmark fires random rays and closest-point queries sampled around the
// aggregate's bound and logs hit rates and timing.
func benchmark(agg accel.Aggregate, nQueries int, seed int64) {
	box := agg.BoundingBox()
	if box.IsEmpty() {
		logger.Warn("aggregate bound is empty, skipping queries")
		return
	}
	center := box.Centroid()
	extent := box.Extent()
	radius := math.Max(extent.X, math.Max(extent.Y, extent.Z))
	rnd := rand.New(rand.NewSource(seed)) //nolint:gosec

	samplePoint := func() r3.Vector {
		return r3.Vector{
			X: center.X + (rnd.Float64()*2-1)*radius,
			Y: center.Y + (rnd.Float64()*2-1)*radius,
			Z: center.Z + (rnd.Float64()*2-1)*radius,
		}
	}
	sampleDir := func() r3.Vector {
		for {
			v := r3.Vector{X: rnd.Float64()*2 - 1, Y: rnd.Float64()*2 - 1, Z: rnd.Float64()*2 - 1}
			if n := v.Norm(); n > 1e-6 && n <= 1 {
				return v.Mul(1 / n)
			}
		}
	}

	rayHits := 0
	start := time.Now()
	for q := 0; q < nQueries; q++ {
		r := geometry.NewRay(samplePoint(), sampleDir())
		var is []geometry.Interaction
		if agg.Intersect(r, &is, false, false, false) > 0 {
			rayHits++
		}
	}
	rayElapsed := time.Since(start)

	cpHits := 0
	start = time.Now()
	for q := 0; q < nQueries; q++ {
		s := geometry.NewBoundingSphere(samplePoint(), 0)
		var i geometry.Interaction
		if agg.ClosestPoint(s, &i) {
			cpHits++
		}
	}
	cpElapsed := time.Since(start)

	logger.Infof("ray queries: %d/%d hit, %v total (%v avg)",
		rayHits, nQueries, rayElapsed, rayElapsed/time.Duration(nQueries))
	logger.Infof("closest-point queries: %d/%d found, %v total (%v avg)",
		cpHits, nQueries, cpElapsed, cpElapsed/time.Duration(nQueries))
}
