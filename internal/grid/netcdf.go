package grid

import (
	"fmt"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// LoadNetCDF reads two 1-D coordinate variables from a NetCDF file and
// expands them into a grid. The coordinates must already be in the
// projection of the stations.
func LoadNetCDF(path, xVar, yVar string, srsID int32) (*Grid, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open netcdf %s: %w", path, err)
	}
	defer nc.Close()

	xs, err := axisValues(nc, xVar)
	if err != nil {
		return nil, err
	}
	ys, err := axisValues(nc, yVar)
	if err != nil {
		return nil, err
	}
	return FromAxes(xs, ys, srsID)
}

func axisValues(nc api.Group, name string) ([]float64, error) {
	vg, err := nc.GetVarGetter(name)
	if err != nil {
		return nil, fmt.Errorf("netcdf variable %q: %w", name, err)
	}
	v, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("netcdf variable %q values: %w", name, err)
	}
	switch vals := v.(type) {
	case []float64:
		return vals, nil
	case []float32:
		return widen(vals), nil
	case []int32:
		return widen(vals), nil
	case []int16:
		return widen(vals), nil
	default:
		return nil, fmt.Errorf("netcdf variable %q: unsupported type %T (want a 1-D numeric axis)", name, v)
	}
}

func widen[T float32 | int32 | int16](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
