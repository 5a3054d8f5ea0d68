package export

import (
	"fmt"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
)

// WriteNetCDF writes the result as a classic NetCDF file. A regular grid
// becomes x and y coordinate variables with valueField and neighbors laid
// out [y][x]; a point grid is written along a single "point" dimension.
func WriteNetCDF(path string, r *Result, valueField string) (err error) {
	cw, err := cdf.OpenWriter(path)
	if err != nil {
		return fmt.Errorf("create netcdf %s: %w", path, err)
	}
	defer func() {
		if cerr := cw.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close netcdf %s: %w", path, cerr)
		}
	}()

	for _, v := range netcdfVars(r, valueField) {
		if err := cw.AddVar(v.name, api.Variable{Values: v.values, Dimensions: v.dims}); err != nil {
			return fmt.Errorf("netcdf variable %s: %w", v.name, err)
		}
	}
	return nil
}

type netcdfVar struct {
	name   string
	dims   []string
	values any
}

func netcdfVars(r *Result, valueField string) []netcdfVar {
	g := r.Grid
	if !g.IsRegular() {
		n := g.Len()
		xs, ys := make([]float64, n), make([]float64, n)
		est, nb := make([]float64, n), make([]int32, n)
		for i, p := range g.Points {
			xs[i], ys[i] = p.X, p.Y
			est[i] = r.Values[i].Estimate
			nb[i] = int32(r.Values[i].NeighborCount)
		}
		dims := []string{"point"}
		return []netcdfVar{
			{"x", dims, xs},
			{"y", dims, ys},
			{valueField, dims, est},
			{"neighbors", dims, nb},
		}
	}

	est := make([][]float64, g.Rows())
	nb := make([][]int32, g.Rows())
	for row := range est {
		est[row] = make([]float64, g.Cols())
		nb[row] = make([]int32, g.Cols())
		for col := range est[row] {
			v := r.Values[row*g.Cols()+col]
			est[row][col] = v.Estimate
			nb[row][col] = int32(v.NeighborCount)
		}
	}
	dims := []string{"y", "x"}
	return []netcdfVar{
		{"x", []string{"x"}, g.Xs},
		{"y", []string{"y"}, g.Ys},
		{valueField, dims, est},
		{"neighbors", dims, nb},
	}
}
