// Package stations loads the weather-station observations that feed the
// interpolation engine.
package stations

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/climategrid/internal/fsutil"
	"github.com/banshee-data/climategrid/internal/gpkg"
	"github.com/banshee-data/climategrid/internal/idw"
)

// ErrNoStationsFile is returned when neither station file exists.
var ErrNoStationsFile = errors.New("stations: no station file found")

// Source is the station file chosen for a run.
type Source struct {
	Path string
	// Cleaned is false when the raw file was used because the
	// outlier-filtered one is missing.
	Cleaned bool
}

// Dataset holds the stations of one file.
type Dataset struct {
	Stations []idw.Station
	SRSID    int32
	// Skipped counts rows dropped for a missing geometry or value.
	Skipped int
}

// Options selects the attributes read from a station file.
type Options struct {
	Layer      string // GeoPackage layer; empty selects the first one
	ValueField string
	XField     string // CSV only, default "x"
	YField     string // CSV only, default "y"
}

// SelectSource prefers the cleaned station file and falls back to the raw one.
func SelectSource(fs fsutil.FileSystem, cleanPath, rawPath string) (Source, error) {
	if cleanPath != "" && fs.Exists(cleanPath) {
		return Source{Path: cleanPath, Cleaned: true}, nil
	}
	if rawPath != "" && fs.Exists(rawPath) {
		return Source{Path: rawPath}, nil
	}
	return Source{}, fmt.Errorf("%w: looked for %q and %q", ErrNoStationsFile, cleanPath, rawPath)
}

// Load reads a station file, dispatching on its extension.
func Load(ctx context.Context, fs fsutil.FileSystem, path string, opts Options) (*Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gpkg":
		return LoadGeoPackage(ctx, path, opts.Layer, opts.ValueField)
	case ".csv":
		f, err := fs.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open stations: %w", err)
		}
		defer f.Close()
		x, y := opts.XField, opts.YField
		if x == "" {
			x = "x"
		}
		if y == "" {
			y = "y"
		}
		return LoadCSV(f, x, y, opts.ValueField)
	default:
		return nil, fmt.Errorf("stations: unsupported file type %q", path)
	}
}

// LoadGeoPackage reads point stations and the valueField attribute from a
// GeoPackage layer.
func LoadGeoPackage(ctx context.Context, path, layer, valueField string) (*Dataset, error) {
	db, err := gpkg.OpenExisting(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	table, column, srsID, err := gpkg.ResolveLayer(ctx, db, layer)
	if err != nil {
		return nil, fmt.Errorf("stations %s: %w", path, err)
	}

	ds := &Dataset{SRSID: srsID}
	skipped, err := gpkg.ReadPoints(ctx, db, table, column, valueField, func(p idw.Point, v sql.NullFloat64) error {
		if !v.Valid {
			ds.Skipped++
			return nil
		}
		ds.Stations = append(ds.Stations, idw.Station{Position: p, Value: v.Float64})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("stations %s: %w", path, err)
	}
	ds.Skipped += skipped
	return ds, nil
}

// LoadCSV reads stations from a CSV file whose header names the
// coordinate and value columns. Rows with an empty field are skipped.
func LoadCSV(r io.Reader, xField, yField, valueField string) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	var idx [3]int
	for i, name := range []string{xField, yField, valueField} {
		c, ok := col[name]
		if !ok {
			return nil, fmt.Errorf("csv has no %q column", name)
		}
		idx[i] = c
	}

	ds := &Dataset{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		var vals [3]float64
		empty := false
		for i, c := range idx {
			field := strings.TrimSpace(rec[c])
			if field == "" {
				empty = true
				break
			}
			if vals[i], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, fmt.Errorf("csv line %d column %q: %w", line, header[c], err)
			}
		}
		if empty {
			ds.Skipped++
			continue
		}
		ds.Stations = append(ds.Stations, idw.Station{Position: idw.Point{X: vals[0], Y: vals[1]}, Value: vals[2]})
	}
	return ds, nil
}
