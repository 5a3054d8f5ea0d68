package idw

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Epsilon is added to every distance before it is raised to the weighting
// power, so a grid point coinciding with a station does not divide by zero.
const Epsilon = 1e-12

// Config holds the per-run interpolation parameters.
type Config struct {
	// Power is the distance exponent. Must be > 0.
	Power float64
	// MaxDistance is the search radius in coordinate units (metres).
	MaxDistance float64
	// MinNeighbors is the number of in-range stations required to trust
	// IDW; below it the global mean is emitted. Must be >= 1.
	MinNeighbors int
	// MaxNeighbors caps the stations considered per point and is the k of
	// the nearest-neighbour query. Must be >= MinNeighbors.
	MaxNeighbors int
	// BatchSize is the number of grid points processed per batch. It only
	// bounds memory and never changes results.
	BatchSize int
	// Workers is the number of batches computed concurrently. 0 means 1.
	Workers int
}

// DefaultConfig returns the parameters used for the 5 km dry-season grid.
func DefaultConfig() Config {
	return Config{
		Power:        2,
		MaxDistance:  300 * 1000,
		MinNeighbors: 3,
		MaxNeighbors: 15,
		BatchSize:    50000,
		Workers:      1,
	}
}

// Validate reports the first invalid field as a *ConfigError.
func (c Config) Validate() error {
	switch {
	case math.IsNaN(c.Power) || math.IsInf(c.Power, 0) || c.Power <= 0:
		return &ConfigError{Field: "power", Value: c.Power, Reason: "must be a finite number > 0"}
	case math.IsNaN(c.MaxDistance) || c.MaxDistance < 0:
		return &ConfigError{Field: "max_distance", Value: c.MaxDistance, Reason: "must be >= 0"}
	case c.MinNeighbors < 1:
		return &ConfigError{Field: "min_neighbors", Value: c.MinNeighbors, Reason: "must be >= 1"}
	case c.MaxNeighbors < c.MinNeighbors:
		return &ConfigError{Field: "max_neighbors", Value: c.MaxNeighbors, Reason: fmt.Sprintf("must be >= min_neighbors (%d)", c.MinNeighbors)}
	case c.BatchSize < 1:
		return &ConfigError{Field: "batch_size", Value: c.BatchSize, Reason: "must be >= 1"}
	case c.Workers < 0:
		return &ConfigError{Field: "workers", Value: c.Workers, Reason: "must be >= 0"}
	}
	return nil
}

func (c Config) workers() int {
	if c.Workers < 1 {
		return 1
	}
	return c.Workers
}

// Engine maps grid points to IDW estimates over a fixed station set.
type Engine struct {
	cfg        Config
	index      *Index
	values     []float64
	globalMean float64

	// OnBatch, if set, is called after each batch completes with the
	// number of points finished so far and the total. With Workers > 1 it
	// is called from several goroutines.
	OnBatch func(done, total int)
}

// NewEngine validates cfg, indexes the stations and precomputes the
// fallback value. Configuration errors are reported before any index work.
func NewEngine(stations []Station, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	index, err := NewIndex(stations)
	if err != nil {
		return nil, err
	}
	values := Values(stations)
	return &Engine{
		cfg:        cfg,
		index:      index,
		values:     values,
		globalMean: stat.Mean(values, nil),
	}, nil
}

// Config returns the engine parameters.
func (e *Engine) Config() Config { return e.cfg }

// GlobalMean returns the mean of all station values, the fallback estimate.
func (e *Engine) GlobalMean() float64 { return e.globalMean }

// StationCount returns the number of indexed stations.
func (e *Engine) StationCount() int { return e.index.Len() }

// Estimate computes the value for a single grid point.
func (e *Engine) Estimate(p Point) InterpolatedValue {
	return e.estimate(e.index.Query(p, e.cfg.MaxNeighbors, e.cfg.MaxDistance))
}

func (e *Engine) estimate(neighbors []Neighbor) InterpolatedValue {
	if len(neighbors) < e.cfg.MinNeighbors {
		return InterpolatedValue{Estimate: e.globalMean, NeighborCount: 0}
	}
	dists := make([]float64, len(neighbors))
	vals := make([]float64, len(neighbors))
	for i, n := range neighbors {
		dists[i] = n.Distance
		vals[i] = e.values[n.Index]
	}
	w := Weights(dists, e.cfg.Power)
	return InterpolatedValue{Estimate: floats.Dot(w, vals), NeighborCount: len(neighbors)}
}

// Weights returns inverse distance weights 1/(d+Epsilon)^power normalised
// to sum to one. When the raw weights overflow or underflow (large powers,
// coincident points) they are recomputed relative to the nearest distance,
// which gives the same normalised result.
func Weights(distances []float64, power float64) []float64 {
	w := make([]float64, len(distances))
	if len(distances) == 0 {
		return w
	}
	for i, d := range distances {
		w[i] = 1 / math.Pow(d+Epsilon, power)
	}
	sum := floats.Sum(w)
	if sum == 0 || math.IsInf(sum, 0) || math.IsNaN(sum) {
		dmin := floats.Min(distances) + Epsilon
		for i, d := range distances {
			w[i] = math.Pow(dmin/(d+Epsilon), power)
		}
		sum = floats.Sum(w)
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

// Interpolate allocates the output and fills it with InterpolateInto.
func (e *Engine) Interpolate(ctx context.Context, points []Point) ([]InterpolatedValue, error) {
	out := make([]InterpolatedValue, len(points))
	if err := e.InterpolateInto(ctx, points, out); err != nil {
		return nil, err
	}
	return out, nil
}

// InterpolateInto writes one value per point into out, which must have the
// same length as points. Points are split into contiguous batches of
// BatchSize; each batch writes only its own range of out, so batches run
// concurrently when Workers > 1. Results do not depend on BatchSize or
// Workers. The context is checked between batches.
func (e *Engine) InterpolateInto(ctx context.Context, points []Point, out []InterpolatedValue) error {
	if len(out) != len(points) {
		return fmt.Errorf("idw: output length %d does not match %d grid points", len(out), len(points))
	}
	total := len(points)
	if total == 0 {
		return nil
	}

	var done atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.workers())
	for start := 0; start < total; start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, total)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			e.runBatch(points[start:end], out[start:end])
			n := done.Add(int64(end - start))
			if e.OnBatch != nil {
				e.OnBatch(int(n), total)
			}
			return nil
		})
	}
	return g.Wait()
}

func (e *Engine) runBatch(points []Point, out []InterpolatedValue) {
	neighbors := e.index.QueryBatch(points, e.cfg.MaxNeighbors, e.cfg.MaxDistance)
	for j := range points {
		out[j] = e.estimate(neighbors[j])
	}
}
