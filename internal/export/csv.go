package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteCSV writes one row per grid point with the header
// x,y,value,neighbors. Estimates are formatted with the given decimals.
func WriteCSV(w io.Writer, r *Result, decimals int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"x", "y", "value", "neighbors"}); err != nil {
		return err
	}
	row := make([]string, 4)
	for i, p := range r.Grid.Points {
		v := r.Values[i]
		row[0] = strconv.FormatFloat(p.X, 'f', -1, 64)
		row[1] = strconv.FormatFloat(p.Y, 'f', -1, 64)
		row[2] = strconv.FormatFloat(v.Estimate, 'f', decimals, 64)
		row[3] = strconv.Itoa(v.NeighborCount)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
