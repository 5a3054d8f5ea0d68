package idw

import (
	"cmp"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// stationPoint is a station position carrying its original index, so that
// results survive the reordering kdtree.New performs while partitioning.
type stationPoint struct {
	X, Y  float64
	Index int
}

// Compare implements kdtree.Comparable.
func (p stationPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(stationPoint)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	default:
		panic("illegal dimension")
	}
}

// Dims implements kdtree.Comparable.
func (p stationPoint) Dims() int { return 2 }

// Distance returns the squared Euclidean distance, as kdtree expects.
func (p stationPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(stationPoint)
	dx := p.X - q.X
	dy := p.Y - q.Y
	return dx*dx + dy*dy
}

type stationPoints []stationPoint

func (p stationPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p stationPoints) Len() int                              { return len(p) }
func (p stationPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot uses median of medians so the tree shape does not depend on a
// random source.
func (p stationPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(plane{stationPoints: p, Dim: d}, kdtree.MedianOfMedians(plane{stationPoints: p, Dim: d}))
}

// plane implements kdtree.SortSlicer along one dimension.
type plane struct {
	stationPoints
	kdtree.Dim
}

func (p plane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.stationPoints[i].X < p.stationPoints[j].X
	case 1:
		return p.stationPoints[i].Y < p.stationPoints[j].Y
	default:
		panic("illegal dimension")
	}
}

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	return plane{stationPoints: p.stationPoints[start:end], Dim: p.Dim}
}

func (p plane) Swap(i, j int) {
	p.stationPoints[i], p.stationPoints[j] = p.stationPoints[j], p.stationPoints[i]
}

// Index answers k-nearest-station queries bounded by a search radius.
// It is immutable after NewIndex and safe for concurrent use.
type Index struct {
	tree *kdtree.Tree
	n    int
}

// NewIndex builds a balanced k-d tree over the station positions.
// It returns ErrEmptyInput when stations is empty.
func NewIndex(stations []Station) (*Index, error) {
	if len(stations) == 0 {
		return nil, ErrEmptyInput
	}
	pts := make(stationPoints, len(stations))
	for i, s := range stations {
		pts[i] = stationPoint{X: s.Position.X, Y: s.Position.Y, Index: i}
	}
	return &Index{tree: kdtree.New(pts, false), n: len(stations)}, nil
}

// Len returns the number of indexed stations.
func (idx *Index) Len() int {
	return idx.n
}

// Query returns up to k stations nearest to p whose distance does not
// exceed maxDistance, sorted by ascending distance and then station index.
// Fewer than k entries are returned when fewer stations are in range.
func (idx *Index) Query(p Point, k int, maxDistance float64) []Neighbor {
	if k < 1 || math.IsNaN(maxDistance) || maxDistance < 0 {
		return nil
	}

	keeper := kdtree.NewNKeeper(k)
	// The sentinel bounds the search: anything farther than the radius is
	// pruned during traversal rather than filtered afterwards. The slack
	// keeps points sitting exactly on the radius in play; the final filter
	// below is exact.
	keeper.Heap[0].Dist = maxDistance * maxDistance * (1 + 1e-9)
	idx.tree.NearestSet(keeper, stationPoint{X: p.X, Y: p.Y, Index: -1})

	out := make([]Neighbor, 0, keeper.Len())
	for _, cd := range keeper.Heap {
		sp, ok := cd.Comparable.(stationPoint)
		if !ok {
			continue // sentinel
		}
		d := math.Sqrt(cd.Dist)
		if d > maxDistance {
			continue
		}
		out = append(out, Neighbor{Distance: d, Index: sp.Index})
	}
	slices.SortFunc(out, func(a, b Neighbor) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
	return out
}

// QueryBatch runs Query for every point. Element i of the result is
// identical to Query(points[i], k, maxDistance).
func (idx *Index) QueryBatch(points []Point, k int, maxDistance float64) [][]Neighbor {
	out := make([][]Neighbor, len(points))
	for i, p := range points {
		out[i] = idx.Query(p, k, maxDistance)
	}
	return out
}
