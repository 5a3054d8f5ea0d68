package idw

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeStations() []Station {
	return []Station{
		{Position: Point{X: 0, Y: 0}, Value: 10},
		{Position: Point{X: 100, Y: 0}, Value: 20},
		{Position: Point{X: 0, Y: 100}, Value: 30},
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	base := DefaultConfig()
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero power", func(c *Config) { c.Power = 0 }, "power"},
		{"negative power", func(c *Config) { c.Power = -1 }, "power"},
		{"nan power", func(c *Config) { c.Power = math.NaN() }, "power"},
		{"min neighbours zero", func(c *Config) { c.MinNeighbors = 0 }, "min_neighbors"},
		{"max below min", func(c *Config) { c.MinNeighbors = 4; c.MaxNeighbors = 3 }, "max_neighbors"},
		{"max equals min", func(c *Config) { c.MinNeighbors = 3; c.MaxNeighbors = 3 }, ""},
		{"negative distance", func(c *Config) { c.MaxDistance = -5 }, "max_distance"},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }, "batch_size"},
		{"negative workers", func(c *Config) { c.Workers = -1 }, "workers"},
		{"zero workers", func(c *Config) { c.Workers = 0 }, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tc.field, ce.Field)
		})
	}
}

func TestNewEngine_Errors(t *testing.T) {
	t.Parallel()

	t.Run("empty stations", func(t *testing.T) {
		t.Parallel()
		_, err := NewEngine(nil, DefaultConfig())
		assert.ErrorIs(t, err, ErrEmptyInput)
	})

	t.Run("configuration checked before stations", func(t *testing.T) {
		t.Parallel()
		cfg := DefaultConfig()
		cfg.Power = 0
		_, err := NewEngine(nil, cfg)
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
		assert.NotErrorIs(t, err, ErrEmptyInput)
	})
}

func TestEngine_ThreeStationScenario(t *testing.T) {
	t.Parallel()

	eng, err := NewEngine(threeStations(), Config{
		Power: 2, MaxDistance: 1000, MinNeighbors: 1, MaxNeighbors: 3, BatchSize: 10,
	})
	require.NoError(t, err)

	got := eng.Estimate(Point{X: 50, Y: 0})
	assert.Equal(t, 3, got.NeighborCount)
	assert.Greater(t, got.Estimate, 10.0)
	assert.Less(t, got.Estimate, 30.0)
	assert.Less(t, math.Abs(got.Estimate-15), math.Abs(got.Estimate-30))
	// d = 50, 50, sqrt(12500): weights 5/11, 5/11, 1/11.
	assert.InDelta(t, 180.0/11.0, got.Estimate, 1e-9)
}

func TestEngine_FallbackToGlobalMean(t *testing.T) {
	t.Parallel()

	t.Run("single distant station", func(t *testing.T) {
		t.Parallel()
		eng, err := NewEngine([]Station{{Position: Point{}, Value: 42}}, Config{
			Power: 2, MaxDistance: 300, MinNeighbors: 1, MaxNeighbors: 3, BatchSize: 1,
		})
		require.NoError(t, err)

		got := eng.Estimate(Point{X: 10000, Y: 0})
		assert.Equal(t, 0, got.NeighborCount)
		assert.True(t, got.IsFallback())
		assert.Equal(t, 42.0, got.Estimate)
	})

	t.Run("mean of all stations, not the neighbours", func(t *testing.T) {
		t.Parallel()
		stations := threeStations()
		stations = append(stations, Station{Position: Point{X: 1e6, Y: 1e6}, Value: 100})
		eng, err := NewEngine(stations, Config{
			Power: 2, MaxDistance: 150, MinNeighbors: 4, MaxNeighbors: 4, BatchSize: 2,
		})
		require.NoError(t, err)

		// Three stations are in range, one short of MinNeighbors.
		got := eng.Estimate(Point{X: 10, Y: 10})
		assert.Equal(t, 0, got.NeighborCount)
		assert.Equal(t, 40.0, got.Estimate)
		assert.Equal(t, 40.0, eng.GlobalMean())
	})
}

func TestEngine_CoincidentPoint(t *testing.T) {
	t.Parallel()

	for _, power := range []float64{1, 2, 3, 8, 40} {
		eng, err := NewEngine(threeStations(), Config{
			Power: power, MaxDistance: 1000, MinNeighbors: 1, MaxNeighbors: 3, BatchSize: 1,
		})
		require.NoError(t, err)

		got := eng.Estimate(Point{X: 100, Y: 0})
		require.False(t, math.IsNaN(got.Estimate), "power %g produced NaN", power)
		assert.InDelta(t, 20.0, got.Estimate, 1e-9, "power %g", power)
		assert.Equal(t, 3, got.NeighborCount)
	}
}

func TestWeights(t *testing.T) {
	t.Parallel()

	cases := [][]float64{
		{1},
		{10, 20, 30},
		{0, 5, 5},
		{0, 0},
		{1e5, 2e5, 3e5},
	}
	for _, dists := range cases {
		for _, power := range []float64{0.5, 1, 2, 3, 60} {
			w := Weights(dists, power)
			require.Len(t, w, len(dists))
			sum := 0.0
			for i, v := range w {
				assert.False(t, math.IsNaN(v), "dists=%v power=%g weight %d is NaN", dists, power, i)
				assert.GreaterOrEqual(t, v, 0.0)
				sum += v
			}
			assert.InDelta(t, 1.0, sum, 1e-12, "dists=%v power=%g", dists, power)
			for i := 1; i < len(dists); i++ {
				if dists[i] > dists[i-1] {
					assert.LessOrEqual(t, w[i], w[i-1], "farther station outweighs nearer one")
				}
			}
		}
	}

	assert.Empty(t, Weights(nil, 2))
}

func randomGrid(r *rand.Rand, n int, extent float64) []Point {
	points := make([]Point, n)
	for i := range points {
		points[i] = Point{X: r.Float64() * extent, Y: r.Float64() * extent}
	}
	return points
}

func TestEngine_ConvexCombination(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewPCG(3, 5))
	stations := randomStations(r, 60, 1e6)
	cfg := DefaultConfig()
	eng, err := NewEngine(stations, cfg)
	require.NoError(t, err)

	points := randomGrid(r, 2000, 1e6)
	got, err := eng.Interpolate(context.Background(), points)
	require.NoError(t, err)
	require.Len(t, got, len(points))

	idx, err := NewIndex(stations)
	require.NoError(t, err)

	var trusted, fallback int
	for i, v := range got {
		neighbors := idx.Query(points[i], cfg.MaxNeighbors, cfg.MaxDistance)
		if len(neighbors) < cfg.MinNeighbors {
			fallback++
			assert.Equal(t, 0, v.NeighborCount)
			assert.Equal(t, eng.GlobalMean(), v.Estimate)
			continue
		}
		trusted++
		assert.Equal(t, len(neighbors), v.NeighborCount)
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, n := range neighbors {
			lo = math.Min(lo, stations[n.Index].Value)
			hi = math.Max(hi, stations[n.Index].Value)
		}
		assert.GreaterOrEqual(t, v.Estimate, lo-1e-9)
		assert.LessOrEqual(t, v.Estimate, hi+1e-9)
	}
	assert.Positive(t, trusted)
	t.Logf("trusted=%d fallback=%d", trusted, fallback)
}

func TestEngine_BatchingInvariance(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewPCG(17, 19))
	stations := randomStations(r, 80, 2e5)
	points := randomGrid(r, 1500, 2.4e5)

	run := func(batch, workers int) []InterpolatedValue {
		cfg := Config{Power: 2, MaxDistance: 40000, MinNeighbors: 3, MaxNeighbors: 15, BatchSize: batch, Workers: workers}
		eng, err := NewEngine(stations, cfg)
		require.NoError(t, err)
		out, err := eng.Interpolate(context.Background(), points)
		require.NoError(t, err)
		return out
	}

	whole := run(len(points), 1)
	for _, tc := range []struct{ batch, workers int }{{1, 1}, {7, 1}, {64, 4}, {1, 8}, {len(points) + 10, 2}} {
		if diff := cmp.Diff(whole, run(tc.batch, tc.workers)); diff != "" {
			t.Errorf("batch=%d workers=%d differs from single batch (-whole +batched):\n%s", tc.batch, tc.workers, diff)
		}
	}
}

func TestEngine_Deterministic(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewPCG(23, 29))
	stations := randomStations(r, 30, 1e5)
	points := randomGrid(r, 500, 1e5)

	var prev []InterpolatedValue
	for i := 0; i < 3; i++ {
		eng, err := NewEngine(stations, DefaultConfig())
		require.NoError(t, err)
		out, err := eng.Interpolate(context.Background(), points)
		require.NoError(t, err)
		if prev != nil {
			assert.Empty(t, cmp.Diff(prev, out))
		}
		prev = out
	}
}

func TestEngine_InterpolateEdgeCases(t *testing.T) {
	t.Parallel()

	eng, err := NewEngine(threeStations(), DefaultConfig())
	require.NoError(t, err)

	t.Run("empty grid", func(t *testing.T) {
		out, err := eng.Interpolate(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("output length mismatch", func(t *testing.T) {
		err := eng.InterpolateInto(context.Background(), []Point{{}}, nil)
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := eng.Interpolate(ctx, []Point{{}, {X: 1}})
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	})
}

func TestEngine_OnBatch(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.BatchSize = 4
	cfg.Workers = 3
	eng, err := NewEngine(threeStations(), cfg)
	require.NoError(t, err)

	var mu sync.Mutex
	var calls []int
	eng.OnBatch = func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 10, total)
		calls = append(calls, done)
	}
	points := make([]Point, 10)
	_, err = eng.Interpolate(context.Background(), points)
	require.NoError(t, err)

	require.Len(t, calls, 3)
	assert.Contains(t, calls, 10)
}

func TestEngine_NaNStationValuesPropagate(t *testing.T) {
	t.Parallel()

	stations := threeStations()
	stations[1].Value = math.NaN()
	eng, err := NewEngine(stations, Config{Power: 2, MaxDistance: 1000, MinNeighbors: 1, MaxNeighbors: 3, BatchSize: 1})
	require.NoError(t, err)

	assert.True(t, math.IsNaN(eng.GlobalMean()))
	assert.True(t, math.IsNaN(eng.Estimate(Point{X: 50, Y: 0}).Estimate))
}
