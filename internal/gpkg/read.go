package gpkg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/banshee-data/climategrid/internal/idw"
)

// OpenExisting opens a GeoPackage for reading. Unlike Open it fails when
// the file is missing instead of letting SQLite create an empty database.
func OpenExisting(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open geopackage: %w", err)
	}
	return Open(path)
}

// ResolveLayer returns layer, or the first feature table when layer is
// empty, together with its geometry column and SRS id.
func ResolveLayer(ctx context.Context, db *sql.DB, layer string) (table, column string, srsID int32, err error) {
	table = layer
	if table == "" {
		if table, err = FirstFeatureTable(ctx, db); err != nil {
			return "", "", 0, err
		}
	}
	column, srsID, err = GeometryColumn(ctx, db, table)
	return table, column, srsID, err
}

// ReadPoints calls fn for every feature of table with a non-empty point
// geometry. value is NULL when valueColumn is empty or the attribute is
// NULL. It returns the number of rows skipped for a missing geometry.
func ReadPoints(ctx context.Context, db *sql.DB, table, geomColumn, valueColumn string,
	fn func(p idw.Point, value sql.NullFloat64) error) (int, error) {
	valueExpr := "NULL"
	if valueColumn != "" {
		valueExpr = QuoteIdent(valueColumn)
	}
	query := fmt.Sprintf("SELECT %s, %s FROM %s ORDER BY rowid", QuoteIdent(geomColumn), valueExpr, QuoteIdent(table))
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("query layer %s: %w", table, err)
	}
	defer rows.Close()

	skipped := 0
	for rows.Next() {
		var blob []byte
		var value sql.NullFloat64
		if err := rows.Scan(&blob, &value); err != nil {
			return skipped, fmt.Errorf("scan layer %s: %w", table, err)
		}
		if blob == nil {
			skipped++
			continue
		}
		p, _, err := DecodePoint(blob)
		if errors.Is(err, ErrEmptyGeometry) {
			skipped++
			continue
		}
		if err != nil {
			return skipped, fmt.Errorf("layer %s: %w", table, err)
		}
		if err := fn(p, value); err != nil {
			return skipped, err
		}
	}
	return skipped, rows.Err()
}
