package grid

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/banshee-data/climategrid/internal/gpkg"
	"github.com/banshee-data/climategrid/internal/idw"
)

// LoadGeoPackage reads the point geometries of a GeoPackage layer as an
// irregular grid, keeping the row order. An empty layer name selects the
// first feature table.
func LoadGeoPackage(ctx context.Context, path, layer string) (*Grid, error) {
	db, err := gpkg.OpenExisting(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	table, column, srsID, err := gpkg.ResolveLayer(ctx, db, layer)
	if err != nil {
		return nil, fmt.Errorf("grid %s: %w", path, err)
	}
	var points []idw.Point
	if _, err := gpkg.ReadPoints(ctx, db, table, column, "", func(p idw.Point, _ sql.NullFloat64) error {
		points = append(points, p)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("grid %s: %w", path, err)
	}
	return FromPoints(points, srsID)
}
