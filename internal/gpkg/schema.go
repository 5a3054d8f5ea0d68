package gpkg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrNoFeatureTable is returned when a GeoPackage holds no feature layer.
var ErrNoFeatureTable = errors.New("gpkg: no feature table")

// applicationID is "GPKG" as a big-endian int32.
const applicationID = 0x47504B47

// Column is a non-geometry attribute of a feature table.
type Column struct {
	Name string
	Type string // SQLite type, e.g. REAL, INTEGER, TEXT
}

// Open opens a GeoPackage with the modernc SQLite driver.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open geopackage %s: %w", path, err)
	}
	return db, nil
}

const metadataSchema = `
	CREATE TABLE IF NOT EXISTS gpkg_spatial_ref_sys (
		srs_name                 TEXT NOT NULL,
		srs_id                   INTEGER PRIMARY KEY,
		organization             TEXT NOT NULL,
		organization_coordsys_id INTEGER NOT NULL,
		definition               TEXT NOT NULL,
		description              TEXT
	);
	INSERT OR IGNORE INTO gpkg_spatial_ref_sys VALUES
		('Undefined cartesian SRS', -1, 'NONE', -1, 'undefined', 'undefined cartesian coordinate reference system'),
		('Undefined geographic SRS', 0, 'NONE', 0, 'undefined', 'undefined geographic coordinate reference system');
	CREATE TABLE IF NOT EXISTS gpkg_contents (
		table_name  TEXT NOT NULL PRIMARY KEY,
		data_type   TEXT NOT NULL,
		identifier  TEXT UNIQUE,
		description TEXT DEFAULT '',
		last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		min_x       DOUBLE,
		min_y       DOUBLE,
		max_x       DOUBLE,
		max_y       DOUBLE,
		srs_id      INTEGER
	);
	CREATE TABLE IF NOT EXISTS gpkg_geometry_columns (
		table_name         TEXT NOT NULL,
		column_name        TEXT NOT NULL,
		geometry_type_name TEXT NOT NULL,
		srs_id             INTEGER NOT NULL,
		z                  TINYINT NOT NULL,
		m                  TINYINT NOT NULL,
		PRIMARY KEY (table_name, column_name)
	);
`

// CreateFeatureTable creates the GeoPackage metadata tables when missing
// and registers a new POINT feature table with an integer fid, the
// geometry column and the given attribute columns.
func CreateFeatureTable(ctx context.Context, db *sql.DB, table, geomColumn string, srsID int32, columns []Column) error {
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA application_id = %d; PRAGMA user_version = 10300;", applicationID)); err != nil {
		return fmt.Errorf("set geopackage pragmas: %w", err)
	}
	if _, err := db.ExecContext(ctx, metadataSchema); err != nil {
		return fmt.Errorf("create geopackage metadata: %w", err)
	}
	if srsID != 0 && srsID != -1 {
		if _, err := db.ExecContext(ctx,
			`INSERT OR IGNORE INTO gpkg_spatial_ref_sys VALUES (?, ?, 'NONE', ?, 'undefined', NULL)`,
			fmt.Sprintf("SRS %d", srsID), srsID, srsID,
		); err != nil {
			return fmt.Errorf("register srs %d: %w", srsID, err)
		}
	}

	defs := []string{"fid INTEGER PRIMARY KEY AUTOINCREMENT", QuoteIdent(geomColumn) + " POINT"}
	for _, c := range columns {
		defs = append(defs, QuoteIdent(c.Name)+" "+c.Type)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", QuoteIdent(table), strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("create feature table %s: %w", table, err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO gpkg_contents (table_name, data_type, identifier, srs_id) VALUES (?, 'features', ?, ?)`,
		table, table, srsID,
	); err != nil {
		return fmt.Errorf("register contents %s: %w", table, err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO gpkg_geometry_columns VALUES (?, ?, 'POINT', ?, 0, 0)`,
		table, geomColumn, srsID,
	); err != nil {
		return fmt.Errorf("register geometry column %s.%s: %w", table, geomColumn, err)
	}
	return nil
}

// SetExtent records the bounding box of a feature table in gpkg_contents.
func SetExtent(ctx context.Context, db *sql.DB, table string, minX, minY, maxX, maxY float64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE gpkg_contents SET min_x = ?, min_y = ?, max_x = ?, max_y = ? WHERE table_name = ?`,
		minX, minY, maxX, maxY, table,
	)
	return err
}

// FirstFeatureTable returns the first feature layer in gpkg_contents.
func FirstFeatureTable(ctx context.Context, db *sql.DB) (string, error) {
	var name string
	err := db.QueryRowContext(ctx,
		`SELECT table_name FROM gpkg_contents WHERE data_type = 'features' ORDER BY table_name LIMIT 1`,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoFeatureTable
	}
	if err != nil {
		return "", fmt.Errorf("list feature tables: %w", err)
	}
	return name, nil
}

// GeometryColumn returns the geometry column and SRS id of a feature table.
func GeometryColumn(ctx context.Context, db *sql.DB, table string) (string, int32, error) {
	var column string
	var srsID int32
	err := db.QueryRowContext(ctx,
		`SELECT column_name, srs_id FROM gpkg_geometry_columns WHERE table_name = ?`, table,
	).Scan(&column, &srsID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, fmt.Errorf("%w: %q", ErrNoFeatureTable, table)
	}
	if err != nil {
		return "", 0, fmt.Errorf("read geometry column of %s: %w", table, err)
	}
	return column, srsID, nil
}

// QuoteIdent quotes an SQLite identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
