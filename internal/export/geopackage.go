package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/banshee-data/climategrid/internal/gpkg"
	"github.com/banshee-data/climategrid/internal/grid"
)

// GeoPackageLayer is the feature table written by WriteGeoPackage.
const GeoPackageLayer = "interpolated_grid"

// WriteGeoPackage writes one point feature per grid point with the
// rounded estimate in valueField and the neighbour count. An existing
// file at path is replaced.
func WriteGeoPackage(ctx context.Context, path string, r *Result, valueField string, decimals int) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("replace geopackage %s: %w", path, err)
	}
	db, err := gpkg.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	srsID := r.Grid.SRSID
	cols := []gpkg.Column{{Name: valueField, Type: "REAL"}, {Name: "neighbors", Type: "INTEGER"}}
	if err := gpkg.CreateFeatureTable(ctx, db, GeoPackageLayer, "geom", srsID, cols); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (geom, %s, neighbors) VALUES (?, ?, ?)",
		gpkg.QuoteIdent(GeoPackageLayer), gpkg.QuoteIdent(valueField)))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	rounded := r.Rounded(decimals)
	for i, p := range r.Grid.Points {
		v := rounded.Values[i]
		if _, err := stmt.ExecContext(ctx, gpkg.EncodePoint(srsID, p), v.Estimate, v.NeighborCount); err != nil {
			return fmt.Errorf("insert feature %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit features: %w", err)
	}

	b, err := grid.BoundsOf(r.Grid.Points)
	if err != nil {
		return err
	}
	return gpkg.SetExtent(ctx, db, GeoPackageLayer, b.MinX, b.MinY, b.MaxX, b.MaxY)
}
