package idw

// Point is a position in a projected planar coordinate system (metres).
type Point struct {
	X float64
	Y float64
}

// Station is a single measurement site.
type Station struct {
	Position Point
	Value    float64
}

// Neighbor is one entry of a nearest-station query: the distance from the
// query point and the index of the station in the slice the Index was
// built from.
type Neighbor struct {
	Distance float64
	Index    int
}

// InterpolatedValue is the engine output for one grid point.
// NeighborCount is zero when the estimate is the global-mean fallback.
type InterpolatedValue struct {
	Estimate      float64
	NeighborCount int
}

// IsFallback reports whether the value came from the sparse-data fallback.
func (v InterpolatedValue) IsFallback() bool {
	return v.NeighborCount == 0
}

// Values extracts the measurement values in station order.
func Values(stations []Station) []float64 {
	vals := make([]float64, len(stations))
	for i, s := range stations {
		vals[i] = s.Value
	}
	return vals
}
